package vm

import (
	"fmt"
	"testing"

	"github.com/kristofer/feral/pkg/ast"
	"github.com/kristofer/feral/pkg/bytecode"
	"github.com/kristofer/feral/pkg/compiler"
	"github.com/kristofer/feral/pkg/lexer"
	"github.com/kristofer/feral/pkg/parser"
	"github.com/kristofer/feral/pkg/simplify"
	"github.com/kristofer/feral/pkg/value"
)

// compileBlock is the lex/parse/simplify pipeline's last step, factored out
// since every test below needs its own fresh Bytecode.
func compileBlock(t *testing.T, blk *ast.Block) (*bytecode.Bytecode, error) {
	t.Helper()
	return compiler.New(0).Compile(blk)
}

// run compiles and executes src against a fresh VM with a minimal native
// arithmetic table installed (standing in for pkg/prelude, which imports
// this package and so cannot be used from its tests),
// failing the test on any parse/compile/run error.
func run(t *testing.T, src string) *VM {
	t.Helper()
	l := lexer.New(0, "<test>", src, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compileBlock(t, blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	vm := New(bc)
	registerArithmetic(vm)
	if err := vm.Run(); err != nil {
		t.Fatalf("vm error for %q: %v", src, err)
	}
	return vm
}

func runExpectErr(t *testing.T, src string) error {
	t.Helper()
	l := lexer.New(0, "<test>", src, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compileBlock(t, blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	vm := New(bc)
	registerArithmetic(vm)
	return vm.Run()
}

// registerArithmetic installs native "+"/"-"/"*"/"<"/"=="/"!=" methods on
// Int and "+"/"==" on Str, the pieces every OpMemCall in these tests lowers
// operators to, since pkg/prelude imports this package and cannot be used
// here.
func registerArithmetic(vm *VM) {
	intFn := func(f func(a, b int64) value.Value) *value.Fn {
		return value.NewNativeFn("", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			a := args[0].(*value.Int).Val
			b := args[1].(*value.Int).Val
			return f(a, b), nil
		})
	}
	vm.Types.Register(value.TypeInt, "+", intFn(func(a, b int64) value.Value { return value.NewInt(a + b) }))
	vm.Types.Register(value.TypeInt, "-", intFn(func(a, b int64) value.Value { return value.NewInt(a - b) }))
	vm.Types.Register(value.TypeInt, "*", intFn(func(a, b int64) value.Value { return value.NewInt(a * b) }))
	vm.Types.Register(value.TypeInt, "<", intFn(func(a, b int64) value.Value { return value.NewBool(a < b) }))
	vm.Types.Register(value.TypeInt, "==", intFn(func(a, b int64) value.Value { return value.NewBool(a == b) }))
	vm.Types.Register(value.TypeInt, "!=", intFn(func(a, b int64) value.Value { return value.NewBool(a != b) }))

	strFn := func(f func(a, b string) value.Value) *value.Fn {
		return value.NewNativeFn("", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			a := args[0].(*value.Str).Val
			b := args[1].(*value.Str).Val
			return f(a, b), nil
		})
	}
	vm.Types.Register(value.TypeStr, "+", strFn(func(a, b string) value.Value { return value.NewStr(a + b) }))
	vm.Types.Register(value.TypeStr, "==", strFn(func(a, b string) value.Value { return value.NewBool(a == b) }))
}

func TestRunIntArithmetic(t *testing.T) {
	vm := run(t, `let a = 3 + 4 * 2;`)
	a, ok := vm.Globals["a"].(*value.Int)
	if !ok || a.Val != 11 {
		t.Fatalf("expected a = 11, got %#v", vm.Globals["a"])
	}
}

func TestRunVariableAssignment(t *testing.T) {
	vm := run(t, `let x = 1; x = x + 1; x = x + 1;`)
	x := vm.Globals["x"].(*value.Int)
	if x.Val != 3 {
		t.Fatalf("expected x = 3, got %d", x.Val)
	}
}

func TestRunAssignmentChaining(t *testing.T) {
	vm := run(t, `let x = 1; let y = 2; x = y = 5;`)
	if vm.Globals["x"].(*value.Int).Val != 5 || vm.Globals["y"].(*value.Int).Val != 5 {
		t.Fatalf("expected x = y = 5, got x=%#v y=%#v", vm.Globals["x"], vm.Globals["y"])
	}
}

func TestRunIfElse(t *testing.T) {
	vm := run(t, `
		let x = 10;
		let result = 0;
		if x < 5 {
			result = 1;
		} else {
			result = 2;
		}
	`)
	if vm.Globals["result"].(*value.Int).Val != 2 {
		t.Fatalf("expected result = 2, got %#v", vm.Globals["result"])
	}
}

func TestRunWhileLoop(t *testing.T) {
	vm := run(t, `
		let i = 0;
		let sum = 0;
		while i != 5 {
			sum = sum + i;
			i = i + 1;
		}
	`)
	if vm.Globals["sum"].(*value.Int).Val != 10 {
		t.Fatalf("expected sum = 10, got %#v", vm.Globals["sum"])
	}
}

func TestRunForLoopBreak(t *testing.T) {
	vm := run(t, `
		let i = 0;
		let last = 0;
		for i = 0; i != 10; i = i + 1 {
			if i == 4 {
				break;
			}
			last = i;
		}
	`)
	if vm.Globals["last"].(*value.Int).Val != 3 {
		t.Fatalf("expected last = 3, got %#v", vm.Globals["last"])
	}
}

func TestRunForLoopContinue(t *testing.T) {
	vm := run(t, `
		let sum = 0;
		for let i = 0; i != 5; i = i + 1 {
			if i == 2 {
				continue;
			}
			sum = sum + i;
		}
	`)
	if vm.Globals["sum"].(*value.Int).Val != 8 {
		t.Fatalf("expected sum = 8 (0+1+3+4), got %#v", vm.Globals["sum"])
	}
}

func TestRunFunctionCallAndReturn(t *testing.T) {
	vm := run(t, `
		let add = fn(a, b) { return a + b; };
		let result = add(3, 4);
	`)
	if vm.Globals["result"].(*value.Int).Val != 7 {
		t.Fatalf("expected result = 7, got %#v", vm.Globals["result"])
	}
}

func TestRunFunctionDefaultArgument(t *testing.T) {
	vm := run(t, `
		let greet = fn(times = 2) { return times; };
		let a = greet();
		let b = greet(5);
	`)
	if vm.Globals["a"].(*value.Int).Val != 2 {
		t.Fatalf("expected a = 2, got %#v", vm.Globals["a"])
	}
	if vm.Globals["b"].(*value.Int).Val != 5 {
		t.Fatalf("expected b = 5, got %#v", vm.Globals["b"])
	}
}

func TestRunRecursion(t *testing.T) {
	vm := run(t, `
		let fact = fn(n) {
			if n == 0 {
				return 1;
			}
			return n * fact(n - 1);
		};
		let result = fact(5);
	`)
	if vm.Globals["result"].(*value.Int).Val != 120 {
		t.Fatalf("expected result = 120, got %#v", vm.Globals["result"])
	}
}

func TestRunFunctionLiteralHasNoEnclosingLocals(t *testing.T) {
	err := runExpectErr(t, `
		let outer = fn() {
			let secret = 1;
			let inner = fn() { return secret; };
			return inner();
		};
		let result = outer();
	`)
	if err == nil {
		t.Fatalf("expected an undefined-identifier error, since fn literals only see globals, not enclosing locals")
	}
}

func TestRunStructConstruction(t *testing.T) {
	l := lexer.New(0, "<test>", `let p = Point{x: 1, y: 2};`, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compileBlock(t, blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	vm := New(bc)
	vm.Globals["Point"] = value.NewStructDef(value.TypeID(1000), "Point", []string{"x", "y"})
	if err := vm.Run(); err != nil {
		t.Fatalf("vm error: %v", err)
	}

	pv, ok := vm.Globals["p"].(*value.Struct)
	if !ok {
		t.Fatalf("expected p to be a Struct, got %#v", vm.Globals["p"])
	}
	if pv.Attrs["x"].(*value.Int).Val != 1 || pv.Attrs["y"].(*value.Int).Val != 2 {
		t.Fatalf("expected x=1, y=2, got %#v", pv.Attrs)
	}
}

func TestRunMemberAssignment(t *testing.T) {
	l := lexer.New(0, "<test>", `let p = Point{x: 1, y: 2}; p.x = 9;`, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compileBlock(t, blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	vm := New(bc)
	vm.Globals["Point"] = value.NewStructDef(value.TypeID(1000), "Point", []string{"x", "y"})
	if err := vm.Run(); err != nil {
		t.Fatalf("vm error: %v", err)
	}

	pv := vm.Globals["p"].(*value.Struct)
	if pv.Attrs["x"].(*value.Int).Val != 9 {
		t.Fatalf("expected x = 9 after member assignment, got %#v", pv.Attrs["x"])
	}
}

// registerExplode installs a native "explode" global that always fails,
// standing in for a prelude-provided error-raising builtin so the or-handler
// suffix (`expr 'or' [name] Block`) has something to catch.
func registerExplode(vm *VM) {
	vm.Globals["explode"] = value.NewNativeFn("explode", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		return nil, fmt.Errorf("boom")
	})
}

func TestRunOrHandlerCatchesFailure(t *testing.T) {
	l := lexer.New(0, "<test>", `
		let result = 0;
		explode() or {
			result = 1;
		};
	`, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compileBlock(t, blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	vm := New(bc)
	registerExplode(vm)
	if err := vm.Run(); err != nil {
		t.Fatalf("vm error: %v", err)
	}
	if vm.Globals["result"].(*value.Int).Val != 1 {
		t.Fatalf("expected result = 1 (handler ran), got %#v", vm.Globals["result"])
	}
}

func TestRunOrHandlerBindsErrorName(t *testing.T) {
	l := lexer.New(0, "<test>", `
		let msg = "";
		explode() or err {
			msg = err;
		};
	`, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	blk = simplify.Simplify(blk)
	bc, err := compileBlock(t, blk)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	vm := New(bc)
	registerExplode(vm)
	if err := vm.Run(); err != nil {
		t.Fatalf("vm error: %v", err)
	}
	m, ok := vm.Globals["msg"].(*value.Str)
	if !ok || m.Val != "boom" {
		t.Fatalf("expected msg = \"boom\", got %#v", vm.Globals["msg"])
	}
}

func TestRunDeferRunsOnNormalExit(t *testing.T) {
	vm := run(t, `
		let order = "";
		let runIt = fn() {
			defer order = order + "a";
			order = order + "b";
		};
		runIt();
	`)
	o := vm.Globals["order"].(*value.Str)
	if o.Val != "ba" {
		t.Fatalf("expected \"ba\" (body then deferred), got %q", o.Val)
	}
}

func TestRunVariadicFunction(t *testing.T) {
	vm := run(t, `
		let count = fn(first, rest...) { return first; };
		let n = count(1, 2, 3);
	`)
	if vm.Globals["n"].(*value.Int).Val != 1 {
		t.Fatalf("expected n = 1, got %#v", vm.Globals["n"])
	}
}
