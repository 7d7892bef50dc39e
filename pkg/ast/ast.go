// Package ast defines the abstract syntax tree produced by pkg/parser: a
// tagged sum over fifteen statement kinds, every node carrying its source
// Loc. Nodes are allocated with ordinary struct literals, not out of
// pkg/alloc's pool: that pool hands back untyped []byte blocks, and a Node
// carries pointers and interface fields (Lhs, Rhs, Stmts, ...), so carving
// one out of a byte arena via unsafe casts would hide live pointers from the
// garbage collector. pkg/alloc stays available for value types that are
// genuinely flat runs of bytes.
package ast

import "github.com/kristofer/feral/pkg/diag"

// Kind tags which of the fifteen node shapes a Node is.
type Kind int

const (
	KindBlock Kind = iota
	KindSimple
	KindExpr
	KindFnArgs
	KindVar
	KindFnSig
	KindFnDef
	KindVarDecl
	KindCond
	KindFor
	KindForIn
	KindRet
	KindContinue
	KindBreak
	KindDefer
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "Block"
	case KindSimple:
		return "Simple"
	case KindExpr:
		return "Expr"
	case KindFnArgs:
		return "FnArgs"
	case KindVar:
		return "Var"
	case KindFnSig:
		return "FnSig"
	case KindFnDef:
		return "FnDef"
	case KindVarDecl:
		return "VarDecl"
	case KindCond:
		return "Cond"
	case KindFor:
		return "For"
	case KindForIn:
		return "ForIn"
	case KindRet:
		return "Ret"
	case KindContinue:
		return "Continue"
	case KindBreak:
		return "Break"
	case KindDefer:
		return "Defer"
	default:
		return "?"
	}
}

// Node is implemented by every AST node.
type Node interface {
	Kind() Kind
	Loc() diag.Loc
}

// LitKind classifies what a Simple node's payload represents.
type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitChar
	LitString
	LitIden
	LitTrue
	LitFalse
	LitNil
	LitVoid
)

// Simple is a leaf: a literal value or a bare identifier reference.
type Simple struct {
	L       diag.Loc
	LitKind LitKind
	Str     string
	Int     int64
	Flt     float64
}

func (n *Simple) Kind() Kind     { return KindSimple }
func (n *Simple) Loc() diag.Loc  { return n.L }

// Op enumerates the operator/suffix shapes an Expr node can carry:
// binary and unary operators plus the parser-synthesized suffix markers
// (FNCALL/STCALL/SUBS from spec.md §4.1) and the ternary/or-handler
// compound forms.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpRoot
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpLAnd
	OpLOr
	OpLNot
	OpBAnd
	OpBOr
	OpBXor
	OpBNot
	OpLShift
	OpRShift

	OpAssign // '=' (right-associative chain, Expr15)

	OpAddAssn
	OpSubAssn
	OpMulAssn
	OpDivAssn
	OpModAssn
	OpBAndAssn
	OpBOrAssn
	OpBNotAssn
	OpBXorAssn
	OpLShiftAssn
	OpRShiftAssn
	OpNilCoalesceAssn

	OpNilCoalesce

	OpPreInc
	OpPreDec
	OpPostInc
	OpPostDec
	OpUnaryPlus
	OpUnaryMinus
	OpDeref    // '*' unary
	OpAddrOf   // '&' unary
	OpSpread   // postfix '...'

	OpTernary // cond ? then : else
	OpMember  // '.' or '->' IDEN
	OpCall    // '(' args ')'  -- FNCALL
	OpStructCall // '{' args '}' -- STCALL
	OpSubscript  // '[' expr ']' -- SUBS
	OpOrHandler  // expr 'or' [name] Block
	OpComma      // ',' chaining at Expr17
)

// Expr is every compound expression shape: binary/unary operators, calls,
// subscripts, member access, struct calls, ternaries, and or-handlers.
//
// Not every field is used by every Op: Lhs/Rhs cover binary operators,
// Operand covers unary ones, Args/ArgNames/Spread cover calls and
// subscripts, Name covers member access and the or-handler's bound
// variable, Handler covers the or-handler's block, Else covers the
// ternary's third operand.
type Expr struct {
	L       diag.Loc
	Op      Op
	Lhs     Node
	Rhs     Node
	Operand Node
	Else    Node
	Args    []Node
	ArgNames []string // parallel to Args; "" means positional
	Spread  []bool    // parallel to Args; true means unpack-as-vec ('...')
	Name    string
	Handler *Block
}

func (n *Expr) Kind() Kind    { return KindExpr }
func (n *Expr) Loc() diag.Loc { return n.L }

// Var is one binding in a VarDecl or one parameter in an FnArgs list:
// `['const'] IDEN ['in' Simple] ['=' Expr16]`.
type Var struct {
	L       diag.Loc
	Name    string
	Const   bool
	InExpr  Node // non-nil for `IDEN in Simple` (type-function registration target)
	Default Node // non-nil for a parameter/declaration default
}

func (n *Var) Kind() Kind    { return KindVar }
func (n *Var) Loc() diag.Loc { return n.L }

// FnArgs is a function parameter list: `Var { ',' Var } ['...']`. The
// last parameter, when Variadic is set, collects trailing positional
// arguments.
type FnArgs struct {
	L        diag.Loc
	Params   []*Var
	Variadic bool
	KwArgName string // non-empty if the signature declares a kwarg collector
}

func (n *FnArgs) Kind() Kind    { return KindFnArgs }
func (n *FnArgs) Loc() diag.Loc { return n.L }

// FnSig is `'fn' '(' FnArgs ')'`.
type FnSig struct {
	L    diag.Loc
	Args *FnArgs
}

func (n *FnSig) Kind() Kind    { return KindFnSig }
func (n *FnSig) Loc() diag.Loc { return n.L }

// FnDef is `FnSig Block`: a function literal, first-class like any other
// expression.
type FnDef struct {
	L    diag.Loc
	Sig  *FnSig
	Body *Block
}

func (n *FnDef) Kind() Kind    { return KindFnDef }
func (n *FnDef) Loc() diag.Loc { return n.L }

// VarDecl is `'let' Var { ',' Var }`.
type VarDecl struct {
	L    diag.Loc
	Vars []*Var
}

func (n *VarDecl) Kind() Kind    { return KindVarDecl }
func (n *VarDecl) Loc() diag.Loc { return n.L }

// CondArm is one `if`/`elif` test-and-body pair.
type CondArm struct {
	Test Node
	Body *Block
}

// Cond is `'if' Expr Block { 'elif' Expr Block } ['else' Block]`.
type Cond struct {
	L    diag.Loc
	Arms []CondArm
	Else *Block
}

func (n *Cond) Kind() Kind    { return KindCond }
func (n *Cond) Loc() diag.Loc { return n.L }

// For is a three-clause `for` loop, or (when IsWhile is set) a `while`
// loop with only Test and Body populated.
type For struct {
	L       diag.Loc
	Init    Node
	Test    Node
	Incr    Node
	Body    *Block
	IsWhile bool
}

func (n *For) Kind() Kind    { return KindFor }
func (n *For) Loc() diag.Loc { return n.L }

// ForIn is the pre-desugar `for IDEN in Expr Block` form. The parser
// produces this node so `--parse` dumps reflect source syntax; the
// simplify pass (or codegen, at the implementer's choice — here codegen)
// expands it into the literal three-clause For per spec.md §4.2 before
// any instructions are emitted for it.
type ForIn struct {
	L    diag.Loc
	Iter string
	Src  Node
	Body *Block
}

func (n *ForIn) Kind() Kind    { return KindForIn }
func (n *ForIn) Loc() diag.Loc { return n.L }

// Ret is `'return' [Expr]`.
type Ret struct {
	L     diag.Loc
	Value Node
}

func (n *Ret) Kind() Kind    { return KindRet }
func (n *Ret) Loc() diag.Loc { return n.L }

// Continue is the `continue` statement.
type Continue struct{ L diag.Loc }

func (n *Continue) Kind() Kind    { return KindContinue }
func (n *Continue) Loc() diag.Loc { return n.L }

// Break is the `break` statement.
type Break struct{ L diag.Loc }

func (n *Break) Kind() Kind    { return KindBreak }
func (n *Break) Loc() diag.Loc { return n.L }

// Defer is `'defer' Stmt`. Must not survive the simplify pass: codegen
// treats a surviving Defer node as a CodegenError (spec.md §4.4).
type Defer struct {
	L    diag.Loc
	Stmt Node
}

func (n *Defer) Kind() Kind    { return KindDefer }
func (n *Defer) Loc() diag.Loc { return n.L }

// Block is `'{' Stmt* '}'`. Top marks the root block of a module (no
// enclosing PUSH_BLOCK/POP_BLOCK pair is emitted for it).
type Block struct {
	L     diag.Loc
	Stmts []Node
	Top   bool

	// Deferred holds statements registered by Defer nodes within this
	// block, populated by the simplify pass and consumed (in reverse
	// registration order) by codegen at the block's normal end; a return,
	// break or continue that leaves the block early skips them. Empty after
	// simplify runs if the block contains no defers.
	Deferred []Node
}

func (n *Block) Kind() Kind    { return KindBlock }
func (n *Block) Loc() diag.Loc { return n.L }
