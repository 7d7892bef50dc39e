package vm

import (
	"fmt"
	"strings"

	"github.com/kristofer/feral/pkg/bytecode"
	"github.com/kristofer/feral/pkg/value"
)

// step executes a single instruction against f, returning the next program
// counter, whether that counter came from a jump (as opposed to falling
// through to pc+1), and any error. Most opcodes fall through; the jump
// family and the loop/try unwinding opcodes report jumped=true.
func (vm *VM) step(f *frame, in bytecode.Instruction, pc int) (int, bool, error) {
	switch in.Op {
	case bytecode.OpLoadData:
		return pc, false, vm.execLoadData(f, in)

	case bytecode.OpUnload:
		for i := int64(0); i < in.Data.Int; i++ {
			if _, err := f.pop(); err != nil {
				return pc, false, err
			}
		}
		return pc, false, nil

	case bytecode.OpStore:
		val, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		nameV, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		name, ok := nameV.(*value.Str)
		if !ok {
			return pc, false, fmt.Errorf("STORE target must be a name, got %s", nameV.Type())
		}
		if !f.rebind(name.Val, val, vm.Globals) {
			return pc, false, fmt.Errorf("undefined identifier: %s", name.Val)
		}
		f.push(val)
		return pc, false, nil

	case bytecode.OpCreate:
		val, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		f.layers[len(f.layers)-1][in.Data.Str] = val
		return pc, false, nil

	case bytecode.OpCreateIn:
		in2, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		val, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		if err := vm.createIn(in2, in.Data.Str, val); err != nil {
			return pc, false, err
		}
		return pc, false, nil

	case bytecode.OpPushBlock:
		for i := int64(0); i < in.Data.Int; i++ {
			layer := make(map[string]value.Value)
			if f.pendingCatchName != "" {
				layer[f.pendingCatchName] = f.pendingCatchVal
				f.pendingCatchName = ""
				f.pendingCatchVal = nil
			}
			f.layers = append(f.layers, layer)
		}
		return pc, false, nil

	case bytecode.OpPopBlock:
		for i := int64(0); i < in.Data.Int; i++ {
			if len(f.layers) == 0 {
				return pc, false, fmt.Errorf("POP_BLOCK on empty layer stack")
			}
			top := f.layers[len(f.layers)-1]
			for _, v := range top {
				v.DecRef()
			}
			f.layers = f.layers[:len(f.layers)-1]
		}
		return pc, false, nil

	case bytecode.OpPushLoop:
		f.loops = append(f.loops, len(f.layers))
		return pc, false, nil

	case bytecode.OpPopLoop:
		if len(f.loops) == 0 {
			return pc, false, fmt.Errorf("POP_LOOP with no matching PUSH_LOOP")
		}
		depth := f.loops[len(f.loops)-1]
		f.loops = f.loops[:len(f.loops)-1]
		f.truncateLayers(depth)
		return pc, false, nil

	case bytecode.OpReturn:
		if in.Data.Bool {
			v, err := f.pop()
			if err != nil {
				return pc, false, err
			}
			f.retVal = v
		} else {
			f.retVal = value.NewNil()
		}
		f.returning = true
		return pc, false, nil

	case bytecode.OpBlockTill:
		f.pendingFnStart = pc + 1
		f.pendingFnEnd = int(in.Data.Int)
		return int(in.Data.Int), true, nil

	case bytecode.OpCreateFn:
		fn, err := vm.execCreateFn(f, in)
		if err != nil {
			return pc, false, err
		}
		f.push(fn)
		return pc, false, nil

	case bytecode.OpContinue:
		if len(f.loops) == 0 {
			return pc, false, fmt.Errorf("CONTINUE outside a loop")
		}
		f.truncateLayers(f.loops[len(f.loops)-1])
		return int(in.Data.Int), true, nil

	case bytecode.OpBreak:
		if len(f.loops) == 0 {
			return pc, false, fmt.Errorf("BREAK outside a loop")
		}
		f.truncateLayers(f.loops[len(f.loops)-1])
		return int(in.Data.Int), true, nil

	case bytecode.OpJmp:
		return int(in.Data.Int), true, nil

	case bytecode.OpJmpTrue:
		v, err := f.peek()
		if err != nil {
			return pc, false, err
		}
		if value.Truthy(v) {
			return int(in.Data.Int), true, nil
		}
		return pc, false, nil

	case bytecode.OpJmpFalse:
		v, err := f.peek()
		if err != nil {
			return pc, false, err
		}
		if !value.Truthy(v) {
			return int(in.Data.Int), true, nil
		}
		return pc, false, nil

	case bytecode.OpJmpTruePop:
		v, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		if value.Truthy(v) {
			return int(in.Data.Int), true, nil
		}
		return pc, false, nil

	case bytecode.OpJmpFalsePop:
		v, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		if !value.Truthy(v) {
			return int(in.Data.Int), true, nil
		}
		return pc, false, nil

	case bytecode.OpJmpNil:
		v, err := f.peek()
		if err != nil {
			return pc, false, err
		}
		if _, isNil := v.(*value.Nil); isNil {
			if _, err := f.pop(); err != nil {
				return pc, false, err
			}
			return int(in.Data.Int), true, nil
		}
		return pc, false, nil

	case bytecode.OpPushJmp:
		f.tries = append(f.tries, tryEntry{handlerPC: int(in.Data.Int)})
		return pc, false, nil

	case bytecode.OpPushJmpName:
		if len(f.tries) == 0 {
			return pc, false, fmt.Errorf("PUSH_JMP_NAME with no open try block")
		}
		f.tries[len(f.tries)-1].name = in.Data.Str
		return pc, false, nil

	case bytecode.OpPopJmp:
		if len(f.tries) == 0 {
			return pc, false, fmt.Errorf("POP_JMP with no open try block")
		}
		f.tries = f.tries[:len(f.tries)-1]
		return pc, false, nil

	case bytecode.OpAttr:
		recv, err := f.pop()
		if err != nil {
			return pc, false, err
		}
		v, ok := vm.resolveAttr(recv, in.Data.Str)
		if !ok {
			return pc, false, fmt.Errorf("no attribute %q on %s", in.Data.Str, recv.Type())
		}
		f.push(v)
		return pc, false, nil

	case bytecode.OpCall:
		return pc, false, vm.execCall(f, in)

	case bytecode.OpMemCall:
		return pc, false, vm.execMemCall(f, in)

	default:
		return pc, false, fmt.Errorf("unimplemented opcode %s", in.Op)
	}
}

func (f *frame) truncateLayers(depth int) {
	for len(f.layers) > depth {
		top := f.layers[len(f.layers)-1]
		for _, v := range top {
			v.DecRef()
		}
		f.layers = f.layers[:len(f.layers)-1]
	}
}

func (vm *VM) execLoadData(f *frame, in bytecode.Instruction) error {
	switch in.Data.Kind {
	case bytecode.DataInt:
		f.push(value.NewInt(in.Data.Int))
	case bytecode.DataFlt:
		f.push(value.NewFlt(in.Data.Flt))
	case bytecode.DataBool:
		f.push(value.NewBool(in.Data.Bool))
	case bytecode.DataStr:
		f.push(value.NewStr(in.Data.Str))
	case bytecode.DataChar:
		r := rune(0)
		for _, c := range in.Data.Str {
			r = c
			break
		}
		f.push(value.NewChar(r))
	case bytecode.DataNil, bytecode.DataNone:
		f.push(value.NewNil())
	case bytecode.DataIden:
		v, ok := f.lookup(in.Data.Str, vm.Globals)
		if !ok {
			return fmt.Errorf("undefined identifier: %s", in.Data.Str)
		}
		if v.Flags().Has(value.LoadAsRef) {
			v.IncRef()
			f.push(v)
		} else {
			f.push(v.Copy())
		}
	default:
		return fmt.Errorf("LOAD_DATA: unhandled data kind %v", in.Data.Kind)
	}
	return nil
}

// createIn implements OpCreateIn for both of its uses: registering a type
// method (`name in Type = fn ...`, in2 a first-class TypeIDV) and plain
// attribute assignment (`obj.field = val`, in2 an AttrHolder). The target
// attribute/method name travels on the instruction itself (Data.Str), not
// the stack, since the compiler always knows it statically.
func (vm *VM) createIn(in2 value.Value, name string, val value.Value) error {
	switch t := in2.(type) {
	case *value.TypeIDV:
		fn, ok := val.(*value.Fn)
		if !ok {
			return fmt.Errorf("cannot register non-function %s as a type method", val.Type())
		}
		vm.Types.Register(t.Val, name, fn)
		return nil
	case value.AttrHolder:
		if !t.Flags().Has(value.AttrBased) {
			return fmt.Errorf("%s is not attribute-based", in2.Type())
		}
		if !t.SetAttr(name, val) {
			return fmt.Errorf("cannot set attribute on %s", in2.Type())
		}
		return nil
	default:
		return fmt.Errorf("CREATE_IN target must be a type or attribute holder, got %s", in2.Type())
	}
}

func (vm *VM) execCreateFn(f *frame, in bytecode.Instruction) (*value.Fn, error) {
	names, variadic, kwArgName := parseArgInfo(in.Data.Str)
	defaults := make([]value.Value, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		d, err := f.pop()
		if err != nil {
			return nil, err
		}
		if _, isNil := d.(*value.Nil); isNil {
			defaults[i] = nil
		} else {
			defaults[i] = d
		}
	}
	params := make([]value.Param, len(names))
	for i, n := range names {
		params[i] = value.Param{Name: n, Default: defaults[i]}
	}
	return value.NewFn("", params, variadic, kwArgName, f.pendingFnStart, f.pendingFnEnd, 0), nil
}

// parseArgInfo decodes an OpCreateFn arginfo string: comma-joined parameter
// names, with a trailing "..." token if variadic and a trailing "**name"
// token naming the kwarg collector.
func parseArgInfo(s string) (names []string, variadic bool, kwArgName string) {
	if s == "" {
		return nil, false, ""
	}
	for _, tok := range strings.Split(s, ",") {
		switch {
		case tok == "...":
			variadic = true
		case strings.HasPrefix(tok, "**"):
			kwArgName = tok[2:]
		default:
			names = append(names, tok)
		}
	}
	return names, variadic, kwArgName
}

// popCallArgs pops an OpCall/OpMemCall's arguments off f's stack per
// arginfo (one character per argument, popped in reverse since arguments
// were pushed left to right): '0' positional, '1' keyword (name pushed
// just before the value), '2' spread (a Vec to flatten into positionals).
func popCallArgs(f *frame, arginfo string) ([]value.Value, map[string]value.Value, error) {
	var rev []value.Value
	kwargs := make(map[string]value.Value)
	for i := len(arginfo) - 1; i >= 0; i-- {
		switch arginfo[i] {
		case '1':
			val, err := f.pop()
			if err != nil {
				return nil, nil, err
			}
			nameV, err := f.pop()
			if err != nil {
				return nil, nil, err
			}
			name, ok := nameV.(*value.Str)
			if !ok {
				return nil, nil, fmt.Errorf("keyword argument name must be a string, got %s", nameV.Type())
			}
			kwargs[name.Val] = val
		case '2':
			v, err := f.pop()
			if err != nil {
				return nil, nil, err
			}
			vec, ok := v.(*value.Vec)
			if !ok {
				return nil, nil, fmt.Errorf("spread argument must be a vec, got %s", v.Type())
			}
			for j := len(vec.Elems) - 1; j >= 0; j-- {
				rev = append(rev, vec.Elems[j])
			}
		default:
			val, err := f.pop()
			if err != nil {
				return nil, nil, err
			}
			rev = append(rev, val)
		}
	}
	pos := make([]value.Value, len(rev))
	for i, v := range rev {
		pos[len(rev)-1-i] = v
	}
	return pos, kwargs, nil
}

func (vm *VM) execCall(f *frame, in bytecode.Instruction) error {
	callee, err := f.pop()
	if err != nil {
		return err
	}
	args, kwargs, err := popCallArgs(f, in.Data.Str)
	if err != nil {
		return err
	}
	result, err := vm.invoke(callee, args, kwargs)
	if err != nil {
		return err
	}
	f.push(result)
	return nil
}

func (vm *VM) execMemCall(f *frame, in bytecode.Instruction) error {
	methodNameV, err := f.pop()
	if err != nil {
		return err
	}
	methodName, ok := methodNameV.(*value.Str)
	if !ok {
		return fmt.Errorf("method name must be a string, got %s", methodNameV.Type())
	}
	recv, err := f.pop()
	if err != nil {
		return err
	}
	args, kwargs, err := popCallArgs(f, in.Data.Str)
	if err != nil {
		return err
	}
	fn, ok := vm.Types.Lookup(recv, methodName.Val)
	if !ok {
		return fmt.Errorf("no method %q on type %s", methodName.Val, recv.Type())
	}
	// A namespace module's functions (vec.new, thread.spawn, ...) take only
	// the call's own arguments; every other receiver is passed as args[0].
	full := args
	if _, isModule := recv.(*value.Module); !isModule {
		full = append([]value.Value{recv}, args...)
	}
	result, err := vm.invoke(fn, full, kwargs)
	if err != nil {
		return err
	}
	f.push(result)
	return nil
}

// invoke dispatches a call to any callable value: a native or compiled Fn,
// or a StructDef being called as a constructor (spec.md §4.4's
// `Type{field: val, ...}` struct-literal sugar, lowered by the compiler to
// an ordinary OpCall against the struct's type value).
// Invoke calls any callable value (compiled Fn, native Fn, or a StructDef
// used as a constructor) from outside the interpreter loop — pkg/prelude's
// thread.spawn uses this to run a user Fn on its own goroutine, since
// spec.md §5 puts synchronization entirely in the script's hands (explicit
// mutex types) rather than having the VM itself serialize concurrent
// access to Instructions/Globals/Types.
func (vm *VM) Invoke(callee value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return vm.invoke(callee, args, kwargs)
}

func (vm *VM) invoke(callee value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	switch c := callee.(type) {
	case *value.StructDef:
		s := value.NewStruct(c)
		for name, v := range kwargs {
			s.SetAttr(name, v)
		}
		return s, nil
	case *value.Fn:
		if c.Native != nil {
			return c.Call(args, kwargs)
		}
		return vm.callCompiled(c, args, kwargs)
	default:
		return nil, fmt.Errorf("value of type %s is not callable", callee.Type())
	}
}

// callCompiled binds args/kwargs into a fresh frame per fn.Params and
// recurses into runFrame at fn.CodeStart, modeling the language's call
// stack directly on Go's.
func (vm *VM) callCompiled(fn *value.Fn, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	vm.recursionDepth++
	defer func() { vm.recursionDepth-- }()
	if vm.recursionDepth > vm.recursionLimit {
		return nil, fmt.Errorf("maximum recursion depth (%d) exceeded", vm.recursionLimit)
	}

	// A variadic signature's last Param is the rest-collector; everything
	// before it binds one positional/keyword/default slot each.
	nFixed := len(fn.Params)
	if fn.Variadic && nFixed > 0 {
		nFixed--
	}
	layer := make(map[string]value.Value)
	for i := 0; i < nFixed; i++ {
		p := fn.Params[i]
		if kv, ok := kwargs[p.Name]; ok {
			layer[p.Name] = kv
			delete(kwargs, p.Name)
			continue
		}
		if i < len(args) {
			layer[p.Name] = args[i]
			continue
		}
		if p.Default != nil {
			layer[p.Name] = p.Default
			continue
		}
		layer[p.Name] = value.NewNil()
	}
	if fn.Variadic && nFixed < len(fn.Params) {
		rest := args[min(nFixed, len(args)):]
		layer[fn.Params[nFixed].Name] = value.NewVec(append([]value.Value{}, rest...))
	}
	if fn.KwArgName != "" {
		m := value.NewMap()
		for k, v := range kwargs {
			m.Set(k, v)
		}
		layer[fn.KwArgName] = m
	}

	newFrame := &frame{layers: []map[string]value.Value{vm.Globals, layer}}
	ret, err := vm.runFrame(newFrame, fn.CodeStart, fn.CodeEnd)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return value.NewNil(), nil
	}
	return ret, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// resolveAttr implements OpAttr's broader lookup (any attribute value, not
// just methods): the receiver's own attribute bag first, then its type's
// registered method table.
func (vm *VM) resolveAttr(recv value.Value, name string) (value.Value, bool) {
	if holder, ok := recv.(value.AttrHolder); ok {
		if v, ok := holder.GetAttr(name); ok {
			return v, true
		}
	}
	if fn, ok := vm.Types.Lookup(recv, name); ok {
		return fn, true
	}
	return nil, false
}
