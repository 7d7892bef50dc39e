// Package vm implements the bytecode virtual machine (component G/H of
// spec.md): a stack-based interpreter over the 25-opcode instruction set
// pkg/compiler emits, with a per-call execution stack, a lexical variable
// scope stack, a fail stack for try/or error handling, and the function
// call protocol.
//
// Execution model:
//
// Each function call (including the module's top-level block) runs as one
// recursive invocation of runFrame, so Go's own call stack models the
// language's function-call stack directly — a compiled Fn's body is just
// another range of the same flat instruction vector, entered by jumping
// the instruction pointer to its CodeStart and returning control to the
// caller's runFrame on OpReturn.
//
// Variable resolution is two-tier, not full lexical closures: a frame's
// own scope-layer stack (pushed/popped by OpPushBlock/OpPopBlock) first,
// then the module's globals map (shared across all frames in that
// module). A function literal cannot see its enclosing function's locals,
// only globals — matching bytecode.OpLoadData's doc comment ("resolve via
// the scope stack then globals") verbatim.
//
// This generalizes the teacher's pkg/vm/vm.go opcode-dispatch switch and
// stack-based execution loop from smog's 18 Smalltalk opcodes operating on
// a constant pool to feral's 25 opcodes operating on inline Data operands,
// and folds pkg/vm/errors.go's RuntimeError/StackFrame trace-accumulation
// idea directly into pkg/diag.Diagnostic (which already carries a Trace
// []Loc for exactly this purpose) rather than keeping a second, parallel
// error type.
package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kristofer/feral/pkg/bytecode"
	"github.com/kristofer/feral/pkg/diag"
	"github.com/kristofer/feral/pkg/value"
)

// VM holds the state shared across every call frame in a module: its
// globals, its compiled instruction vector, and the process-wide
// type-method table every struct/builtin type's functions are registered
// into.
type VM struct {
	Instructions []bytecode.Instruction
	Globals      map[string]value.Value
	Types        *value.TypeTable

	// InstanceID identifies this VM (one per process, spec.md §4.9);
	// cmd/feral prints it in a debug-level log line. It has no bearing on
	// module identity, which stays the monotonic module_id spec.md §3
	// mandates.
	InstanceID uuid.UUID

	recursionDepth int
	recursionLimit int
	nextUserType   value.TypeID
}

// MaxRecursionDepth is the default ceiling on nested compiled-function
// calls before the VM reports a RuntimeValueError instead of overflowing
// the Go call stack.
const MaxRecursionDepth = 4096

// New creates a VM over bc, seeding Globals with the built-in type
// identifiers (spec.md §4.5's `IDEN in Simple` type-function registration
// target, and a `typeof`-style query result) and an empty type table.
func New(bc *bytecode.Bytecode) *VM {
	vm := &VM{
		Instructions:   bc.Instructions,
		Globals:        make(map[string]value.Value),
		Types:          value.NewTypeTable(),
		InstanceID:     uuid.New(),
		recursionLimit: MaxRecursionDepth,
		nextUserType:   value.FirstUserTypeID,
	}
	for name, tid := range map[string]value.TypeID{
		"Nil": value.TypeNil, "Bool": value.TypeBool, "Int": value.TypeInt,
		"Flt": value.TypeFlt, "Str": value.TypeStr, "Char": value.TypeChar,
		"Vec": value.TypeVec, "Map": value.TypeMap, "Fn": value.TypeFn,
	} {
		vm.Globals[name] = value.NewTypeIDV(tid)
	}
	return vm
}

// frame is the per-call execution state: its own value stack, lexical
// scope-layer stack, loop-frame depth markers, and try/fail stack.
type frame struct {
	stack  []value.Value
	layers []map[string]value.Value
	loops  []int // layer-count snapshot at each PushLoop
	tries  []tryEntry

	returning bool
	retVal    value.Value

	// pendingFnStart/End record the range of the OpBlockTill most recently
	// executed in this frame, consumed by the OpCreateFn that follows the
	// parameter-default pushes it jumps to (see DESIGN.md's Open Question
	// decisions).
	pendingFnStart int
	pendingFnEnd   int

	// pendingCatchName/Val hold an or-handler's bound error variable
	// between catch() opening the handler and the OpPushBlock that always
	// begins its compiled body (compileOrHandler always emits the handler
	// through compileBlockYield, which opens with OpPushBlock); the next OpPushBlock merges it into the
	// fresh layer it creates instead of f needing a dedicated unwind
	// instruction to release a layer of its own.
	pendingCatchName string
	pendingCatchVal  value.Value
}

type tryEntry struct {
	handlerPC int
	name      string
}

func (f *frame) push(v value.Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() (value.Value, error) {
	if len(f.stack) == 0 {
		return nil, fmt.Errorf("execution stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

func (f *frame) peek() (value.Value, error) {
	if len(f.stack) == 0 {
		return nil, fmt.Errorf("execution stack underflow")
	}
	return f.stack[len(f.stack)-1], nil
}

// lookup resolves name against f's own layers (innermost first), falling
// through to globals.
func (f *frame) lookup(name string, globals map[string]value.Value) (value.Value, bool) {
	for i := len(f.layers) - 1; i >= 0; i-- {
		if v, ok := f.layers[i][name]; ok {
			return v, true
		}
	}
	v, ok := globals[name]
	return v, ok
}

// rebind finds name's existing binding (own layers, then globals) and
// overwrites it in place. Reports false if no such binding exists.
func (f *frame) rebind(name string, v value.Value, globals map[string]value.Value) bool {
	for i := len(f.layers) - 1; i >= 0; i-- {
		if _, ok := f.layers[i][name]; ok {
			f.layers[i][name] = v
			return true
		}
	}
	if _, ok := globals[name]; ok {
		globals[name] = v
		return true
	}
	return false
}

// Run executes the module's top-level block (instructions [0, len)) with
// the module-global scope layer as its sole, shared layer.
func (vm *VM) Run() error {
	top := &frame{layers: []map[string]value.Value{vm.Globals}}
	_, err := vm.runFrame(top, 0, len(vm.Instructions))
	return err
}

// AllocTypeID mints the next runtime type id for a struct/enum definition
// created by the `struct`/`enum` prelude builtins, numbering up from
// value.FirstUserTypeID per VM instance (spec.md §3's per-process type-id
// space; each VM here is one process's worth of modules).
func (vm *VM) AllocTypeID() value.TypeID {
	id := vm.nextUserType
	vm.nextUserType++
	return id
}

// LoadModule appends bc's instructions to the VM's own instruction vector
// and runs just the appended range as a fresh top-level frame sharing
// Globals/Types with every previously loaded module — this is how
// pkg/prelude's prelude.fer and a user's entry module run in the same
// process (spec.md §9: prelude loaded before any user module). Every
// compiled bytecode blob numbers its own jump targets from zero, so they
// are rebased by the prior instruction count before appending.
func (vm *VM) LoadModule(bc *bytecode.Bytecode) error {
	return vm.LoadModuleInto(bc, vm.Globals)
}

// LoadModuleInto is LoadModule generalized to run the appended range
// against an arbitrary top-level scope layer instead of vm.Globals, so
// pkg/module can give each imported module its own globals map (spec.md
// §4.7: one ModuleValue per registered path) while every module still
// shares this VM's single Types table and instruction vector, per
// spec.md §4.9's "one global state per process".
func (vm *VM) LoadModuleInto(bc *bytecode.Bytecode, globals map[string]value.Value) error {
	offset := len(vm.Instructions)
	for _, in := range bc.Instructions {
		if hasAbsoluteTarget(in.Op) {
			in.Data.Int += int64(offset)
		}
		vm.Instructions = append(vm.Instructions, in)
	}
	top := &frame{layers: []map[string]value.Value{globals}}
	_, err := vm.runFrame(top, offset, len(vm.Instructions))
	return err
}

// hasAbsoluteTarget reports whether op's Data.Int is an absolute
// instruction index into the vector it was compiled against, and so needs
// rebasing when that vector is appended after other modules' code.
func hasAbsoluteTarget(op bytecode.Opcode) bool {
	switch op {
	case bytecode.OpBlockTill, bytecode.OpContinue, bytecode.OpBreak,
		bytecode.OpJmp, bytecode.OpJmpTrue, bytecode.OpJmpFalse,
		bytecode.OpJmpTruePop, bytecode.OpJmpFalsePop, bytecode.OpJmpNil,
		bytecode.OpPushJmp:
		return true
	default:
		return false
	}
}

// runFrame interprets instructions starting at pc against f until it falls
// off the end of the instruction vector (implicit nil result, the module
// top-level's case) or an OpReturn unwinds this frame. Nested
// compiled-function calls recurse through callCompiled -> runFrame rather
// than being handled inline in the same loop.
func (vm *VM) runFrame(f *frame, pc int, end int) (value.Value, error) {
	for pc < end {
		in := vm.Instructions[pc]
		next, jumped, err := vm.step(f, in, pc)
		if err != nil {
			wrapped := vm.wrapErr(err, in.Loc)
			if handled, resumeAt := f.catch(wrapped); handled {
				pc = resumeAt
				continue
			}
			return nil, wrapped
		}
		if f.returning {
			return f.retVal, nil
		}
		if jumped {
			pc = next
		} else {
			pc++
		}
	}
	return value.NewNil(), nil
}

// catch consults f's innermost open try block (opened by OpPushJmp, not yet
// closed by OpPopJmp). If one is open, it stashes the error as a pending
// catch binding (consumed by the handler body's own OpPushBlock; see
// pendingCatchName/Val) and reports the handler's jump target; runFrame
// resumes there instead of propagating the error to the caller,
// implementing the try/or-handler construct of spec.md §4.5.
func (f *frame) catch(err error) (bool, int) {
	if len(f.tries) == 0 {
		return false, 0
	}
	t := f.tries[len(f.tries)-1]
	f.tries = f.tries[:len(f.tries)-1]
	if t.name != "" {
		msg := err.Error()
		if d, ok := err.(*diag.Diagnostic); ok {
			msg = d.Message
		}
		f.pendingCatchName = t.name
		f.pendingCatchVal = value.NewStr(msg)
	}
	return true, t.handlerPC
}

func (vm *VM) wrapErr(err error, loc diag.Loc) error {
	if d, ok := err.(*diag.Diagnostic); ok {
		return d
	}
	return &diag.Diagnostic{Kind: diag.RuntimeValueError, Message: err.Error(), Loc: loc}
}
