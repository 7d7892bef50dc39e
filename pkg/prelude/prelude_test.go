package prelude

import (
	"testing"

	"github.com/kristofer/feral/pkg/bytecode"
	"github.com/kristofer/feral/pkg/compiler"
	"github.com/kristofer/feral/pkg/lexer"
	"github.com/kristofer/feral/pkg/parser"
	"github.com/kristofer/feral/pkg/simplify"
	"github.com/kristofer/feral/pkg/value"
	"github.com/kristofer/feral/pkg/vm"
)

// runModule compiles src against a fresh VM that has already loaded the
// prelude, failing the test on any parse/compile/prelude/run error.
func runModule(t *testing.T, src string) *vm.VM {
	t.Helper()
	m := vm.New(&bytecode.Bytecode{})
	if err := Load(m); err != nil {
		t.Fatalf("prelude load error: %v", err)
	}

	l := lexer.New(0, "<test>", src, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compiler.New(0).Compile(blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if err := m.LoadModule(bc); err != nil {
		t.Fatalf("vm error for %q: %v", src, err)
	}
	return m
}

func runModuleExpectErr(t *testing.T, src string) error {
	t.Helper()
	m := vm.New(&bytecode.Bytecode{})
	if err := Load(m); err != nil {
		t.Fatalf("prelude load error: %v", err)
	}

	l := lexer.New(0, "<test>", src, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compiler.New(0).Compile(blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return m.LoadModule(bc)
}

func TestPreludeIntOperators(t *testing.T) {
	m := runModule(t, `
		let a = 3 + 4 * 2;
		let b = a - 1;
		let c = a == 11;
		let d = 7 / 2;
		let e = 7 % 2;
	`)
	if m.Globals["a"].(*value.Int).Val != 11 {
		t.Fatalf("expected a = 11, got %#v", m.Globals["a"])
	}
	if m.Globals["b"].(*value.Int).Val != 10 {
		t.Fatalf("expected b = 10, got %#v", m.Globals["b"])
	}
	if !m.Globals["c"].(*value.Bool).Val {
		t.Fatalf("expected c = true, got %#v", m.Globals["c"])
	}
	if m.Globals["d"].(*value.Int).Val != 3 {
		t.Fatalf("expected d = 3, got %#v", m.Globals["d"])
	}
	if m.Globals["e"].(*value.Int).Val != 1 {
		t.Fatalf("expected e = 1, got %#v", m.Globals["e"])
	}
}

func TestPreludeIntDivisionByZeroFails(t *testing.T) {
	if err := runModuleExpectErr(t, `let a = 1 / 0;`); err == nil {
		t.Fatalf("expected division by zero to fail")
	}
}

func TestPreludeFloatOperators(t *testing.T) {
	m := runModule(t, `
		let a = 1.5 + 2.5;
		let b = a > 3.0;
	`)
	if m.Globals["a"].(*value.Flt).Val != 4.0 {
		t.Fatalf("expected a = 4.0, got %#v", m.Globals["a"])
	}
	if !m.Globals["b"].(*value.Bool).Val {
		t.Fatalf("expected b = true, got %#v", m.Globals["b"])
	}
}

func TestPreludeStringConcatAndIndex(t *testing.T) {
	m := runModule(t, `
		let s = "foo" + "bar";
		let c = s[0];
	`)
	if m.Globals["s"].(*value.Str).Val != "foobar" {
		t.Fatalf("expected s = foobar, got %#v", m.Globals["s"])
	}
	if m.Globals["c"].(*value.Char).Val != 'f' {
		t.Fatalf("expected c = 'f', got %#v", m.Globals["c"])
	}
}

func TestPreludeVecIndexAndAssign(t *testing.T) {
	m := runModule(t, `
		let v = vec.new(1, 2, 3);
		let first = v[0];
		v[1] = 9;
	`)
	first, ok := m.Globals["first"].(*value.Int)
	if !ok || first.Val != 1 {
		t.Fatalf("expected first = 1, got %#v", m.Globals["first"])
	}
	v := m.Globals["v"].(*value.Vec)
	if v.Elems[1].(*value.Int).Val != 9 {
		t.Fatalf("expected v[1] = 9 after assignment, got %#v", v.Elems[1])
	}
}

func TestPreludeMapNewAndIndex(t *testing.T) {
	m := runModule(t, `
		let m = map.new(x: 1, y: 2);
		let x = m["x"];
		m["z"] = 3;
		let z = m["z"];
	`)
	if m.Globals["x"].(*value.Int).Val != 1 {
		t.Fatalf("expected x = 1, got %#v", m.Globals["x"])
	}
	if m.Globals["z"].(*value.Int).Val != 3 {
		t.Fatalf("expected z = 3, got %#v", m.Globals["z"])
	}
}

func TestPreludeStructuralEquality(t *testing.T) {
	m := runModule(t, `
		let a = vec.new(1, 2);
		let b = vec.new(1, 2);
		let same = a == b;
	`)
	if !m.Globals["same"].(*value.Bool).Val {
		t.Fatalf("expected structurally-equal vecs to compare equal")
	}
}

func TestPreludeStructConstruction(t *testing.T) {
	m := runModule(t, `
		let Point = struct("x", "y");
		let p = Point{x: 1, y: 2};
	`)
	p, ok := m.Globals["p"].(*value.Struct)
	if !ok {
		t.Fatalf("expected p to be a Struct, got %#v", m.Globals["p"])
	}
	if p.Attrs["x"].(*value.Int).Val != 1 || p.Attrs["y"].(*value.Int).Val != 2 {
		t.Fatalf("expected x=1, y=2, got %#v", p.Attrs)
	}
}

func TestPreludeEnumMembers(t *testing.T) {
	m := runModule(t, `
		let Color = enum("Red", "Green", "Blue");
		let r = Color.Red;
		let name = r.name;
		let ord = Color.Blue.ordinal;
	`)
	name, ok := m.Globals["name"].(*value.Str)
	if !ok || name.Val != "Red" {
		t.Fatalf("expected name = Red, got %#v", m.Globals["name"])
	}
	ord, ok := m.Globals["ord"].(*value.Int)
	if !ok || ord.Val != 2 {
		t.Fatalf("expected Blue ordinal = 2, got %#v", m.Globals["ord"])
	}
}

func TestPreludeAssertPassesOnTruthyCondition(t *testing.T) {
	runModule(t, `assert(1 == 1);`)
}

func TestPreludeAssertFailsOnFalsyCondition(t *testing.T) {
	err := runModuleExpectErr(t, `assert(1 == 2, "one is not two");`)
	if err == nil {
		t.Fatalf("expected assert(false) to fail")
	}
}

func TestPreludePrintDoesNotPanic(t *testing.T) {
	runModule(t, `print("hello", 1, true); println("world");`)
}
