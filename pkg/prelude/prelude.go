// Package prelude registers the operator table and builtin namespace every
// feral module runs against before its own top-level block executes
// (spec.md §9): the arithmetic/comparison methods spec.md's opcode set
// lowers operators to (pkg/compiler's doc comment: "no arithmetic,
// subscript, or struct-call opcodes"), plus the print/struct/enum/vec/map
// builtins original_source's lib/prelude/Prelude.cpp defines.
//
// Most of this can't be written in feral itself — it needs Go's stdout,
// pkg/vm's per-instance type-id allocator, and pkg/value's concrete field
// access — so it is registered directly against a VM's Globals/Types
// rather than compiled from source. prelude.fer (embedded below) is the
// thin feral-level layer that can be: the public names (print, println,
// struct, enum, assert) are plain aliases onto the natives this package
// installs first, matching the teacher's habit of keeping the Go side
// minimal and pushing naming/composition into the scripted layer it
// bootstraps.
package prelude

import (
	"embed"
	"fmt"
	"os"
	"sort"

	"github.com/kristofer/feral/pkg/compiler"
	"github.com/kristofer/feral/pkg/lexer"
	"github.com/kristofer/feral/pkg/parser"
	"github.com/kristofer/feral/pkg/simplify"
	"github.com/kristofer/feral/pkg/value"
	"github.com/kristofer/feral/pkg/vm"
)

//go:embed prelude.fer
var source embed.FS

// Load installs the operator table and builtin globals into vm, then
// compiles and runs prelude.fer against it, so every name prelude.fer
// binds (print, println, struct, enum, assert) is live before the caller
// loads its own entry module via vm.LoadModule.
func Load(m *vm.VM) error {
	registerOperators(m)
	registerNatives(m)
	registerStdlib(m)
	registerThreads(m)

	src, err := source.ReadFile("prelude.fer")
	if err != nil {
		return fmt.Errorf("prelude: %w", err)
	}
	l := lexer.New(0, "<prelude>", string(src), nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if errs := p.Errors(); len(errs) != 0 {
		return fmt.Errorf("prelude: parse errors: %v", errs)
	}
	blk = simplify.Simplify(blk)
	bc, err := compiler.New(0).Compile(blk)
	if err != nil {
		return fmt.Errorf("prelude: compile error: %w", err)
	}
	return m.LoadModule(bc)
}

// nativeBinOp wraps a two-argument Go function as a method-table entry
// invoked via OpMemCall's uniform `recv, other` argument convention.
func nativeBinOp(f func(recv, other value.Value) (value.Value, error)) *value.Fn {
	return value.NewNativeFn("", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("operator expects exactly one operand, got %d", len(args)-1)
		}
		return f(args[0], args[1])
	})
}

func nativeUnaryOp(f func(recv value.Value) (value.Value, error)) *value.Fn {
	return value.NewNativeFn("", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("unary operator takes no operands, got %d", len(args)-1)
		}
		return f(args[0])
	})
}

// registerOperators installs the per-type method table every binary/unary
// operator, subscript, and increment/decrement in pkg/compiler's opNames/
// unaryOpNames tables lowers to (see that package's doc comment). A
// generic structural "==" / "!=" is registered against TypeNil, which
// pkg/value.TypeTable.Register treats as the All-types fallback table,
// consulted only when a type doesn't override it (Int/Flt/Str do, for
// their own equality rules).
func registerOperators(m *vm.VM) {
	t := m.Types

	intOp := func(f func(a, b int64) (value.Value, error)) *value.Fn {
		return nativeBinOp(func(recv, other value.Value) (value.Value, error) {
			a, ok := recv.(*value.Int)
			if !ok {
				return nil, fmt.Errorf("expected int receiver, got %s", recv.Type())
			}
			b, ok := other.(*value.Int)
			if !ok {
				return nil, fmt.Errorf("expected int operand, got %s", other.Type())
			}
			return f(a.Val, b.Val)
		})
	}
	t.Register(value.TypeInt, "+", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a + b), nil }))
	t.Register(value.TypeInt, "-", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a - b), nil }))
	t.Register(value.TypeInt, "*", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a * b), nil }))
	t.Register(value.TypeInt, "/", intOp(func(a, b int64) (value.Value, error) {
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return value.NewInt(a / b), nil
	}))
	t.Register(value.TypeInt, "%", intOp(func(a, b int64) (value.Value, error) {
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return value.NewInt(a % b), nil
	}))
	t.Register(value.TypeInt, "&", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a & b), nil }))
	t.Register(value.TypeInt, "|", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a | b), nil }))
	t.Register(value.TypeInt, "^", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a ^ b), nil }))
	t.Register(value.TypeInt, "<<", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a << uint(b)), nil }))
	t.Register(value.TypeInt, ">>", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a >> uint(b)), nil }))
	t.Register(value.TypeInt, "==", intOp(func(a, b int64) (value.Value, error) { return value.NewBool(a == b), nil }))
	t.Register(value.TypeInt, "!=", intOp(func(a, b int64) (value.Value, error) { return value.NewBool(a != b), nil }))
	t.Register(value.TypeInt, "<", intOp(func(a, b int64) (value.Value, error) { return value.NewBool(a < b), nil }))
	t.Register(value.TypeInt, ">", intOp(func(a, b int64) (value.Value, error) { return value.NewBool(a > b), nil }))
	t.Register(value.TypeInt, "<=", intOp(func(a, b int64) (value.Value, error) { return value.NewBool(a <= b), nil }))
	t.Register(value.TypeInt, ">=", intOp(func(a, b int64) (value.Value, error) { return value.NewBool(a >= b), nil }))
	t.Register(value.TypeInt, "u-", nativeUnaryOp(func(recv value.Value) (value.Value, error) {
		return value.NewInt(-recv.(*value.Int).Val), nil
	}))
	t.Register(value.TypeInt, "u+", nativeUnaryOp(func(recv value.Value) (value.Value, error) { return recv.Copy(), nil }))
	t.Register(value.TypeInt, "~", nativeUnaryOp(func(recv value.Value) (value.Value, error) {
		return value.NewInt(^recv.(*value.Int).Val), nil
	}))
	t.Register(value.TypeInt, "++", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a + b), nil }))
	t.Register(value.TypeInt, "--", intOp(func(a, b int64) (value.Value, error) { return value.NewInt(a - b), nil }))

	fltOp := func(f func(a, b float64) (value.Value, error)) *value.Fn {
		return nativeBinOp(func(recv, other value.Value) (value.Value, error) {
			a, ok := recv.(*value.Flt)
			if !ok {
				return nil, fmt.Errorf("expected flt receiver, got %s", recv.Type())
			}
			b, ok := other.(*value.Flt)
			if !ok {
				return nil, fmt.Errorf("expected flt operand, got %s", other.Type())
			}
			return f(a.Val, b.Val)
		})
	}
	t.Register(value.TypeFlt, "+", fltOp(func(a, b float64) (value.Value, error) { return value.NewFlt(a + b), nil }))
	t.Register(value.TypeFlt, "-", fltOp(func(a, b float64) (value.Value, error) { return value.NewFlt(a - b), nil }))
	t.Register(value.TypeFlt, "*", fltOp(func(a, b float64) (value.Value, error) { return value.NewFlt(a * b), nil }))
	t.Register(value.TypeFlt, "/", fltOp(func(a, b float64) (value.Value, error) {
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return value.NewFlt(a / b), nil
	}))
	t.Register(value.TypeFlt, "==", fltOp(func(a, b float64) (value.Value, error) { return value.NewBool(a == b), nil }))
	t.Register(value.TypeFlt, "!=", fltOp(func(a, b float64) (value.Value, error) { return value.NewBool(a != b), nil }))
	t.Register(value.TypeFlt, "<", fltOp(func(a, b float64) (value.Value, error) { return value.NewBool(a < b), nil }))
	t.Register(value.TypeFlt, ">", fltOp(func(a, b float64) (value.Value, error) { return value.NewBool(a > b), nil }))
	t.Register(value.TypeFlt, "<=", fltOp(func(a, b float64) (value.Value, error) { return value.NewBool(a <= b), nil }))
	t.Register(value.TypeFlt, ">=", fltOp(func(a, b float64) (value.Value, error) { return value.NewBool(a >= b), nil }))
	t.Register(value.TypeFlt, "u-", nativeUnaryOp(func(recv value.Value) (value.Value, error) {
		return value.NewFlt(-recv.(*value.Flt).Val), nil
	}))
	t.Register(value.TypeFlt, "u+", nativeUnaryOp(func(recv value.Value) (value.Value, error) { return recv.Copy(), nil }))

	strOp := func(f func(a, b string) (value.Value, error)) *value.Fn {
		return nativeBinOp(func(recv, other value.Value) (value.Value, error) {
			a, ok := recv.(*value.Str)
			if !ok {
				return nil, fmt.Errorf("expected str receiver, got %s", recv.Type())
			}
			b, ok := other.(*value.Str)
			if !ok {
				return nil, fmt.Errorf("expected str operand, got %s", other.Type())
			}
			return f(a.Val, b.Val)
		})
	}
	t.Register(value.TypeStr, "+", strOp(func(a, b string) (value.Value, error) { return value.NewStr(a + b), nil }))
	t.Register(value.TypeStr, "==", strOp(func(a, b string) (value.Value, error) { return value.NewBool(a == b), nil }))
	t.Register(value.TypeStr, "!=", strOp(func(a, b string) (value.Value, error) { return value.NewBool(a != b), nil }))
	t.Register(value.TypeStr, "<", strOp(func(a, b string) (value.Value, error) { return value.NewBool(a < b), nil }))
	t.Register(value.TypeStr, ">", strOp(func(a, b string) (value.Value, error) { return value.NewBool(a > b), nil }))
	t.Register(value.TypeStr, "<=", strOp(func(a, b string) (value.Value, error) { return value.NewBool(a <= b), nil }))
	t.Register(value.TypeStr, ">=", strOp(func(a, b string) (value.Value, error) { return value.NewBool(a >= b), nil }))
	t.Register(value.TypeStr, "[]", nativeBinOp(func(recv, idx value.Value) (value.Value, error) {
		s := recv.(*value.Str)
		i, ok := idx.(*value.Int)
		if !ok {
			return nil, fmt.Errorf("str index must be an int, got %s", idx.Type())
		}
		runes := []rune(s.Val)
		if i.Val < 0 || i.Val >= int64(len(runes)) {
			return nil, fmt.Errorf("str index %d out of range (len %d)", i.Val, len(runes))
		}
		return value.NewChar(runes[i.Val]), nil
	}))

	t.Register(value.TypeBool, "!", nativeUnaryOp(func(recv value.Value) (value.Value, error) {
		return value.NewBool(!recv.(*value.Bool).Val), nil
	}))
	t.Register(value.TypeBool, "==", nativeBinOp(func(recv, other value.Value) (value.Value, error) {
		return value.NewBool(recv.(*value.Bool).Val == other.(*value.Bool).Val), nil
	}))

	t.Register(value.TypeVec, "[]", nativeBinOp(func(recv, idx value.Value) (value.Value, error) {
		v := recv.(*value.Vec)
		i, ok := idx.(*value.Int)
		if !ok {
			return nil, fmt.Errorf("vec index must be an int, got %s", idx.Type())
		}
		if i.Val < 0 || i.Val >= int64(len(v.Elems)) {
			return nil, fmt.Errorf("vec index %d out of range (len %d)", i.Val, len(v.Elems))
		}
		return v.Elems[i.Val], nil
	}))
	t.Register(value.TypeVec, "[]=", value.NewNativeFn("", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("[]= expects receiver, index, value")
		}
		v := args[0].(*value.Vec)
		i, ok := args[1].(*value.Int)
		if !ok {
			return nil, fmt.Errorf("vec index must be an int, got %s", args[1].Type())
		}
		if i.Val < 0 || i.Val >= int64(len(v.Elems)) {
			return nil, fmt.Errorf("vec index %d out of range (len %d)", i.Val, len(v.Elems))
		}
		v.Elems[i.Val] = args[2]
		return args[2], nil
	}))
	t.Register(value.TypeVec, "+", nativeBinOp(func(recv, other value.Value) (value.Value, error) {
		a := recv.(*value.Vec)
		b, ok := other.(*value.Vec)
		if !ok {
			return nil, fmt.Errorf("expected vec operand, got %s", other.Type())
		}
		out := make([]value.Value, 0, len(a.Elems)+len(b.Elems))
		out = append(out, a.Elems...)
		out = append(out, b.Elems...)
		return value.NewVec(out), nil
	}))

	t.Register(value.TypeMap, "[]", nativeBinOp(func(recv, key value.Value) (value.Value, error) {
		m := recv.(*value.Map)
		k, ok := m.Get(keyString(key))
		if !ok {
			return nil, fmt.Errorf("key %q not in map", keyString(key))
		}
		return k, nil
	}))
	t.Register(value.TypeMap, "[]=", value.NewNativeFn("", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("[]= expects receiver, key, value")
		}
		m := args[0].(*value.Map)
		m.Set(keyString(args[1]), args[2])
		return args[2], nil
	}))

	// Structural equality fallback for every type that doesn't override
	// "==" / "!=" above (Vec, Map, Nil, struct instances, ...): registering
	// against TypeNil installs it in TypeTable's All bucket.
	t.Register(value.TypeNil, "==", nativeBinOp(func(recv, other value.Value) (value.Value, error) {
		return value.NewBool(valuesEqual(recv, other)), nil
	}))
	t.Register(value.TypeNil, "!=", nativeBinOp(func(recv, other value.Value) (value.Value, error) {
		return value.NewBool(!valuesEqual(recv, other)), nil
	}))
}

// valuesEqual implements the structural-equality fallback: same variant,
// same content, recursing into Vec elements and Map values.
func valuesEqual(a, b value.Value) bool {
	switch av := a.(type) {
	case *value.Nil:
		_, ok := b.(*value.Nil)
		return ok
	case *value.Bool:
		bv, ok := b.(*value.Bool)
		return ok && av.Val == bv.Val
	case *value.Int:
		bv, ok := b.(*value.Int)
		return ok && av.Val == bv.Val
	case *value.Flt:
		bv, ok := b.(*value.Flt)
		return ok && av.Val == bv.Val
	case *value.Str:
		bv, ok := b.(*value.Str)
		return ok && av.Val == bv.Val
	case *value.Char:
		bv, ok := b.(*value.Char)
		return ok && av.Val == bv.Val
	case *value.Vec:
		bv, ok := b.(*value.Vec)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !valuesEqual(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	case *value.Map:
		bv, ok := b.(*value.Map)
		if !ok || len(av.Keys) != len(bv.Keys) {
			return false
		}
		for _, k := range av.Keys {
			other, ok := bv.Get(k)
			if !ok || !valuesEqual(av.Vals[k], other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func keyString(v value.Value) string {
	if s, ok := v.(*value.Str); ok {
		return s.Val
	}
	return value.Display(v)
}

// registerNatives installs the builtin globals pkg/prelude's prelude.fer
// aliases into their public names: print/println (stdout), struct/enum
// (runtime type definitions), vec/map namespaces, and the assert failure
// primitive.
func registerNatives(m *vm.VM) {
	m.Globals["__print_native"] = value.NewNativeFn("__print_native", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = value.Display(a)
		}
		fmt.Fprint(os.Stdout, joinSpace(parts))
		return value.NewNil(), nil
	})
	m.Globals["__println_native"] = value.NewNativeFn("__println_native", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = value.Display(a)
		}
		fmt.Fprintln(os.Stdout, joinSpace(parts))
		return value.NewNil(), nil
	})
	m.Globals["__assert_fail_native"] = value.NewNativeFn("__assert_fail_native", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		msg := "assertion failed"
		if len(args) > 0 {
			if _, isNil := args[0].(*value.Nil); !isNil {
				msg = value.Display(args[0])
			}
		}
		return nil, fmt.Errorf("%s", msg)
	})

	// struct(field1, field2, ...) -> a fresh StructDef with those field
	// names, per original_source's struct_type.hpp (see DESIGN.md).
	m.Globals["__struct_native"] = value.NewNativeFn("__struct_native", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		fields := make([]string, len(args))
		for i, a := range args {
			s, ok := a.(*value.Str)
			if !ok {
				return nil, fmt.Errorf("struct() field names must be strings, got %s", a.Type())
			}
			fields[i] = s.Val
		}
		return value.NewStructDef(m.AllocTypeID(), "", fields), nil
	})

	// enum(name1, name2, ...) -> a StructDef with IsEnum set and one
	// pre-built Struct instance per name (its own "name" attribute,
	// carrying its ordinal), exposed as attributes on the def itself
	// (StructDef.GetAttr already falls through to EnumVals when IsEnum).
	m.Globals["__enum_native"] = value.NewNativeFn("__enum_native", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		def := value.NewStructDef(m.AllocTypeID(), "", []string{"name", "ordinal"})
		def.IsEnum = true
		def.EnumVals = make(map[string]value.Value, len(args))
		for i, a := range args {
			s, ok := a.(*value.Str)
			if !ok {
				return nil, fmt.Errorf("enum() member names must be strings, got %s", a.Type())
			}
			inst := value.NewStruct(def)
			inst.SetAttr("name", value.NewStr(s.Val))
			inst.SetAttr("ordinal", value.NewInt(int64(i)))
			def.EnumVals[s.Val] = inst
		}
		return def, nil
	})

	vecNamespace := value.NewModule(-1, "vec")
	vecNamespace.Globals["new"] = value.NewNativeFn("new", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		return value.NewVec(append([]value.Value{}, args...)), nil
	})
	m.Globals["vec"] = vecNamespace

	mapNamespace := value.NewModule(-1, "map")
	mapNamespace.Globals["new"] = value.NewNativeFn("new", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		mv := value.NewMap()
		keys := make([]string, 0, len(kwargs))
		for k := range kwargs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			mv.Set(k, kwargs[k])
		}
		return mv, nil
	})
	m.Globals["map"] = mapNamespace
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
