package simplify

import (
	"testing"

	"github.com/kristofer/feral/pkg/ast"
	"github.com/kristofer/feral/pkg/diag"
	"github.com/kristofer/feral/pkg/lexer"
	"github.com/kristofer/feral/pkg/parser"
)

func parseBlock(t *testing.T, src string) *ast.Block {
	t.Helper()
	l := lexer.New(0, "<test>", src, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	return blk
}

func TestFoldIntAddition(t *testing.T) {
	blk := Simplify(parseBlock(t, "let a = 2 + 3 * 4;"))
	vd := blk.Stmts[0].(*ast.VarDecl)
	lit, ok := vd.Vars[0].Default.(*ast.Simple)
	if !ok || lit.LitKind != ast.LitInt || lit.Int != 14 {
		t.Fatalf("expected folded 14, got %#v", vd.Vars[0].Default)
	}
}

func TestFoldFloatArithmetic(t *testing.T) {
	blk := Simplify(parseBlock(t, "let a = 1.5 + 2.5;"))
	vd := blk.Stmts[0].(*ast.VarDecl)
	lit := vd.Vars[0].Default.(*ast.Simple)
	if lit.LitKind != ast.LitFloat || lit.Flt != 4.0 {
		t.Fatalf("expected folded 4.0, got %#v", lit)
	}
}

func TestFoldComparison(t *testing.T) {
	blk := Simplify(parseBlock(t, "let a = 1 < 2;"))
	vd := blk.Stmts[0].(*ast.VarDecl)
	lit := vd.Vars[0].Default.(*ast.Simple)
	if lit.LitKind != ast.LitTrue {
		t.Fatalf("expected folded true, got %#v", lit)
	}
}

func TestFoldDoesNotCrossNonLiteralOperands(t *testing.T) {
	blk := Simplify(parseBlock(t, "let a = b + 1;"))
	vd := blk.Stmts[0].(*ast.VarDecl)
	if _, ok := vd.Vars[0].Default.(*ast.Expr); !ok {
		t.Fatalf("expected unfolded Expr, got %#v", vd.Vars[0].Default)
	}
}

func TestFoldDivisionByZeroNotFolded(t *testing.T) {
	blk := Simplify(parseBlock(t, "let a = 1 / 0;"))
	vd := blk.Stmts[0].(*ast.VarDecl)
	if _, ok := vd.Vars[0].Default.(*ast.Expr); !ok {
		t.Fatalf("expected unfolded Expr (division deferred to runtime), got %#v", vd.Vars[0].Default)
	}
}

func TestFoldRecursesIntoNestedBlocks(t *testing.T) {
	blk := Simplify(parseBlock(t, "let placeholder = fn() { if true { let a = 2 + 2; } };"))
	_ = blk
	// No top-level statement shape assertion needed here: the real
	// assertion is that Simplify doesn't panic walking into Cond/FnDef
	// bodies. Re-parse directly to inspect the nested fold.
	blk2 := Simplify(parseBlock(t, "if true { let a = 2 + 2; }"))
	cond := blk2.Stmts[0].(*ast.Cond)
	vd := cond.Arms[0].Body.Stmts[0].(*ast.VarDecl)
	lit := vd.Vars[0].Default.(*ast.Simple)
	if lit.Int != 4 {
		t.Fatalf("expected folded 4 inside if-block, got %#v", lit)
	}
}

func TestDeferHoistedOutOfStatements(t *testing.T) {
	blk := Simplify(parseBlock(t, `{ defer print("A"); print("B"); }`))
	inner := blk.Stmts[0].(*ast.Block)
	if len(inner.Stmts) != 1 {
		t.Fatalf("expected defer removed from Stmts, got %d statements", len(inner.Stmts))
	}
	if len(inner.Deferred) != 1 {
		t.Fatalf("expected 1 hoisted defer, got %d", len(inner.Deferred))
	}
}

func TestMultipleDefersHoistedInRegistrationOrder(t *testing.T) {
	blk := Simplify(parseBlock(t, `{ defer print("A"); defer print("B"); }`))
	inner := blk.Stmts[0].(*ast.Block)
	if len(inner.Deferred) != 2 {
		t.Fatalf("expected 2 hoisted defers, got %d", len(inner.Deferred))
	}
	first := inner.Deferred[0].(*ast.Expr)
	second := inner.Deferred[1].(*ast.Expr)
	firstArg := first.Args[0].(*ast.Simple)
	secondArg := second.Args[0].(*ast.Simple)
	if firstArg.Str != "A" || secondArg.Str != "B" {
		t.Fatalf("expected registration order A, B; got %q, %q", firstArg.Str, secondArg.Str)
	}
}

func TestSimplifyPreservesLoc(t *testing.T) {
	blk := Simplify(parseBlock(t, "let a = 1 + 1;"))
	vd := blk.Stmts[0].(*ast.VarDecl)
	lit := vd.Vars[0].Default.(*ast.Simple)
	if lit.L.Module != diag.ModuleID(0) {
		t.Fatalf("expected module preserved, got %v", lit.L.Module)
	}
}
