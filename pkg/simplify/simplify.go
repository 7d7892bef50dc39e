// Package simplify implements the AST-rewrite pass between parsing and
// codegen (component E of spec.md): constant folding over literal-only
// expressions, and defer hoisting, which moves each block's `defer`
// statements out of its statement list and into its Deferred slot so
// codegen can emit them (in reverse registration order) at that block's
// normal end. A return, break or continue that leaves the block early
// skips them.
//
// No teacher file does an AST rewrite pass (smog has no constant folding
// or defer mechanism); this is modeled as a standalone rewrite pass in
// the same single-file-per-concern style as pkg/compiler.
package simplify

import (
	"github.com/kristofer/feral/pkg/ast"
	"github.com/kristofer/feral/pkg/diag"
)

// Simplify rewrites blk in place (and recursively, every nested block it
// reaches) and returns it for chaining.
func Simplify(blk *ast.Block) *ast.Block {
	rewriteBlock(blk)
	return blk
}

// rewriteBlock folds constants in and hoists defers out of blk's
// statements, recursing into every nested construct it contains.
func rewriteBlock(blk *ast.Block) {
	if blk == nil {
		return
	}
	kept := blk.Stmts[:0]
	for _, stmt := range blk.Stmts {
		if d, ok := stmt.(*ast.Defer); ok {
			blk.Deferred = append(blk.Deferred, rewrite(d.Stmt))
			continue
		}
		kept = append(kept, rewrite(stmt))
	}
	blk.Stmts = kept
}

// rewrite folds and recurses into n, returning the (possibly replaced)
// node to install in n's former position.
func rewrite(n ast.Node) ast.Node {
	switch v := n.(type) {
	case nil:
		return nil
	case *ast.Simple:
		return v

	case *ast.Expr:
		return rewriteExpr(v)

	case *ast.Var:
		v.InExpr = rewrite(v.InExpr)
		v.Default = rewrite(v.Default)
		return v

	case *ast.FnArgs:
		for _, p := range v.Params {
			rewrite(p)
		}
		return v

	case *ast.FnSig:
		rewrite(v.Args)
		return v

	case *ast.FnDef:
		rewrite(v.Sig)
		rewriteBlock(v.Body)
		return v

	case *ast.VarDecl:
		for _, vr := range v.Vars {
			rewrite(vr)
		}
		return v

	case *ast.Cond:
		for i := range v.Arms {
			v.Arms[i].Test = rewrite(v.Arms[i].Test)
			rewriteBlock(v.Arms[i].Body)
		}
		rewriteBlock(v.Else)
		return v

	case *ast.For:
		v.Init = rewrite(v.Init)
		v.Test = rewrite(v.Test)
		v.Incr = rewrite(v.Incr)
		rewriteBlock(v.Body)
		return v

	case *ast.ForIn:
		v.Src = rewrite(v.Src)
		rewriteBlock(v.Body)
		return v

	case *ast.Ret:
		v.Value = rewrite(v.Value)
		return v

	case *ast.Continue, *ast.Break:
		return v

	case *ast.Defer:
		// Reached only for a `defer` nested inside an expression-less
		// position (shouldn't happen from the parser); fold its
		// statement but leave hoisting to the enclosing rewriteBlock.
		v.Stmt = rewrite(v.Stmt)
		return v

	case *ast.Block:
		rewriteBlock(v)
		return v

	default:
		return n
	}
}

func rewriteExpr(e *ast.Expr) ast.Node {
	e.Lhs = rewrite(e.Lhs)
	e.Rhs = rewrite(e.Rhs)
	e.Operand = rewrite(e.Operand)
	e.Else = rewrite(e.Else)
	for i := range e.Args {
		e.Args[i] = rewrite(e.Args[i])
	}
	if e.Handler != nil {
		rewriteBlock(e.Handler)
	}

	if folded := foldConstant(e); folded != nil {
		return folded
	}
	return e
}

// foldConstant evaluates e if it is a binary arithmetic/comparison/
// bitwise operator over two literal-int or literal-float operands
// (spec.md §4.3: "constant folding over literal-only expressions"),
// returning the folded literal or nil if e isn't foldable.
func foldConstant(e *ast.Expr) *ast.Simple {
	lhs, lok := e.Lhs.(*ast.Simple)
	rhs, rok := e.Rhs.(*ast.Simple)
	if !lok || !rok {
		return nil
	}
	if !isNumericLit(lhs) || !isNumericLit(rhs) {
		return nil
	}

	bothInt := lhs.LitKind == ast.LitInt && rhs.LitKind == ast.LitInt
	lf, rf := litFloat(lhs), litFloat(rhs)

	switch e.Op {
	case ast.OpAdd:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int + rhs.Int}
		}
		return &ast.Simple{L: e.L, LitKind: ast.LitFloat, Flt: lf + rf}
	case ast.OpSub:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int - rhs.Int}
		}
		return &ast.Simple{L: e.L, LitKind: ast.LitFloat, Flt: lf - rf}
	case ast.OpMul:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int * rhs.Int}
		}
		return &ast.Simple{L: e.L, LitKind: ast.LitFloat, Flt: lf * rf}
	case ast.OpDiv:
		if bothInt {
			if rhs.Int == 0 {
				return nil // deferred to a runtime RuntimeValueError, not a compile-time fold
			}
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int / rhs.Int}
		}
		if rf == 0 {
			return nil
		}
		return &ast.Simple{L: e.L, LitKind: ast.LitFloat, Flt: lf / rf}
	case ast.OpMod:
		if bothInt {
			if rhs.Int == 0 {
				return nil
			}
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int % rhs.Int}
		}
		return nil // '%' on floats is a runtime library operation, not folded here
	case ast.OpEq:
		return boolLit(e.L, bothInt && lhs.Int == rhs.Int || !bothInt && lf == rf)
	case ast.OpNe:
		return boolLit(e.L, !(bothInt && lhs.Int == rhs.Int || !bothInt && lf == rf))
	case ast.OpLt:
		return boolLit(e.L, lf < rf)
	case ast.OpGt:
		return boolLit(e.L, lf > rf)
	case ast.OpLe:
		return boolLit(e.L, lf <= rf)
	case ast.OpGe:
		return boolLit(e.L, lf >= rf)
	case ast.OpBAnd:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int & rhs.Int}
		}
	case ast.OpBOr:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int | rhs.Int}
		}
	case ast.OpBXor:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int ^ rhs.Int}
		}
	case ast.OpLShift:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int << uint64(rhs.Int)}
		}
	case ast.OpRShift:
		if bothInt {
			return &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: lhs.Int >> uint64(rhs.Int)}
		}
	}
	return nil
}

func isNumericLit(s *ast.Simple) bool {
	return s.LitKind == ast.LitInt || s.LitKind == ast.LitFloat
}

func litFloat(s *ast.Simple) float64 {
	if s.LitKind == ast.LitInt {
		return float64(s.Int)
	}
	return s.Flt
}

func boolLit(l diag.Loc, v bool) *ast.Simple {
	if v {
		return &ast.Simple{L: l, LitKind: ast.LitTrue}
	}
	return &ast.Simple{L: l, LitKind: ast.LitFalse}
}
