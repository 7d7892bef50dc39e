// Package bytecode defines the instruction set and flat instruction
// vector that pkg/compiler emits and pkg/vm executes (components G/H of
// spec.md).
//
// Architecture:
//
// The VM is stack-based: every instruction either pushes/pops the
// execution stack or reaches into the variable scope stack, the fail
// stack, or the call frame. There are 25 opcodes total (spec.md §4.6); an
// instruction's Data carries at most one of {string, int64, float64,
// bool} plus its Loc for diagnostics.
//
// This generalizes the teacher's pkg/bytecode/bytecode.go (same
// Opcode/Instruction/Bytecode shape, same "operand meaning depends on the
// opcode" doc-comment style) from smog's 18 Smalltalk-VM opcodes to the
// language's 25 opcodes.
package bytecode

import "github.com/kristofer/feral/pkg/diag"

// Opcode represents a single bytecode instruction operation. Opcodes are
// single bytes, making them compact and fast to decode.
type Opcode byte

// The complete 25-opcode instruction set (spec.md §4.6).
const (
	// OpLoadData pushes a literal or resolves and pushes an identifier.
	// Operand: Data.Kind distinguishes the literal type, or DataIden with
	// Data.Str holding the name to resolve via the scope stack then
	// globals.
	OpLoadData Opcode = iota

	// OpUnload pops and dec-refs Data.Int values.
	OpUnload

	// OpStore pops the value (top) then the target name string, rebinds
	// that name's existing binding to the value, and pushes the value back.
	// It makes no type check against the old value and calls no on-set hook.
	OpStore

	// OpCreate pops a value and binds Data.Str in the current layer.
	OpCreate

	// OpCreateIn pops `in` then `val`. If `in` is a type value, `val` (a Fn)
	// is registered as a method of the type it names; if `in` is
	// ATTR_BASED, attribute Data.Str is set to `val`. Any other `in` is an
	// error.
	OpCreateIn

	// OpPushBlock pushes Data.Int new variable layers in the current
	// function frame.
	OpPushBlock

	// OpPopBlock pops Data.Int layers, dec-refing everything they held.
	OpPopBlock

	// OpPushLoop records the current layer depth as a loop frame.
	OpPushLoop

	// OpPopLoop pops layers back to the recorded loop-frame depth.
	OpPopLoop

	// OpReturn unwinds to the function-frame caller. If Data.Bool is
	// false, pushes nil first.
	OpReturn

	// OpBlockTill records the function body that starts right after it and
	// ends at Data.Int, then jumps to Data.Int, skipping the body.
	OpBlockTill

	// OpCreateFn pops one default value per parameter named in the arginfo
	// string in Data.Str (nil meaning no default), constructs a Fn value over
	// the body range recorded by the last OpBlockTill, and pushes it.
	OpCreateFn

	// OpContinue unwinds loop layers down to the loop frame and jumps to
	// the increment label at Data.Int.
	OpContinue

	// OpBreak unwinds loop layers down to the loop frame and jumps to the
	// post-loop label at Data.Int.
	OpBreak

	// OpJmp jumps unconditionally to Data.Int.
	OpJmp

	// OpJmpTrue peeks a boolean; jumps to Data.Int if true; does not pop.
	OpJmpTrue

	// OpJmpFalse peeks a boolean; jumps to Data.Int if false; does not
	// pop.
	OpJmpFalse

	// OpJmpTruePop is OpJmpTrue but always pops.
	OpJmpTruePop

	// OpJmpFalsePop is OpJmpFalse but always pops.
	OpJmpFalsePop

	// OpJmpNil peeks; if nil, pops and jumps to Data.Int. pkg/compiler does
	// not emit it: for-in loops end on an `!= end()` test.
	OpJmpNil

	// OpPushJmp opens a try block whose handler target is Data.Int.
	OpPushJmp

	// OpPushJmpName sets the error-variable name (Data.Str) for the most
	// recently opened try block.
	OpPushJmpName

	// OpPopJmp closes the innermost try block.
	OpPopJmp

	// OpAttr pops the receiver and pushes get_attr(Data.Str) or the
	// type-method lookup result.
	OpAttr

	// OpCall pops the callee, then its arguments, and invokes it with only
	// the call's own arguments (no receiver slot); Data.Str is the arginfo
	// string, one character per argument ('0' positional,
	// '1' keyword, '2' unpack-as-vec).
	OpCall

	// OpMemCall pops the method-name string, then the receiver, then the
	// arguments, and includes the receiver as args[0] (a namespace module
	// receiver is left out); Data.Str is the arginfo string.
	OpMemCall
)

// DataKind tags which field of Data is meaningful.
type DataKind byte

const (
	DataNone DataKind = iota
	DataInt
	DataFlt
	DataBool
	DataStr
	DataIden // identifier reference; payload in Str
	DataNil
	DataChar // single-rune payload in Str
)

// Data is an instruction's inline operand: at most one of
// {string, int64, float64, bool, nil}, per spec.md §3's
// `Variant<String,i64,f64,bool,nil>`.
type Data struct {
	Kind DataKind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
}

// Instruction is one bytecode instruction: an opcode, its inline operand,
// and the source location it was generated from.
type Instruction struct {
	Op   Opcode
	Data Data
	Loc  diag.Loc
}

// Bytecode is an ordered sequence of Instruction (spec.md §3).
type Bytecode struct {
	Instructions []Instruction
}

// String returns the opcode's mnemonic, matching the textual dump format
// of spec.md §6.5.
func (op Opcode) String() string {
	switch op {
	case OpLoadData:
		return "LOAD_DATA"
	case OpUnload:
		return "UNLOAD"
	case OpStore:
		return "STORE"
	case OpCreate:
		return "CREATE"
	case OpCreateIn:
		return "CREATE_IN"
	case OpPushBlock:
		return "PUSH_BLOCK"
	case OpPopBlock:
		return "POP_BLOCK"
	case OpPushLoop:
		return "PUSH_LOOP"
	case OpPopLoop:
		return "POP_LOOP"
	case OpReturn:
		return "RETURN"
	case OpBlockTill:
		return "BLOCK_TILL"
	case OpCreateFn:
		return "CREATE_FN"
	case OpContinue:
		return "CONTINUE"
	case OpBreak:
		return "BREAK"
	case OpJmp:
		return "JMP"
	case OpJmpTrue:
		return "JMP_TRUE"
	case OpJmpFalse:
		return "JMP_FALSE"
	case OpJmpTruePop:
		return "JMP_TRUE_POP"
	case OpJmpFalsePop:
		return "JMP_FALSE_POP"
	case OpJmpNil:
		return "JMP_NIL"
	case OpPushJmp:
		return "PUSH_JMP"
	case OpPushJmpName:
		return "PUSH_JMP_NAME"
	case OpPopJmp:
		return "POP_JMP"
	case OpAttr:
		return "ATTR"
	case OpCall:
		return "CALL"
	case OpMemCall:
		return "MEM_CALL"
	default:
		return "UNKNOWN"
	}
}

// NumOpcodes is the size of the instruction set, kept in sync with the
// const block above.
const NumOpcodes = int(OpMemCall) + 1
