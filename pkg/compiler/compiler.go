// Package compiler turns a simplified ast.Block into a flat bytecode.Bytecode
// (spec.md §4.4). It runs after pkg/simplify, so constant folding and defer
// hoisting are already done; a surviving *ast.Defer is a compiler error.
//
// The instruction set (pkg/bytecode) has no arithmetic, subscript, or
// struct-call opcodes: every operator, `a[i]`, `a[i] = v` and `Type{...}`
// compile down to OpCall/OpMemCall against a conventionally-named method
// ("+", "[]", "[]=", ...), resolved by pkg/value's type-table dispatch at
// run time (see DESIGN.md's Open Question decisions). This generalizes the
// teacher's pkg/compiler/compiler.go emit/addConstant structure from a
// one-pass expression compiler into a jump-patching, loop-frame, try-block
// codegen pass, dropping the constant pool in favor of inline Data operands
// (pkg/bytecode already made that call).
package compiler

import (
	"fmt"

	"github.com/kristofer/feral/pkg/ast"
	"github.com/kristofer/feral/pkg/bytecode"
	"github.com/kristofer/feral/pkg/diag"
)

// opNames maps binary/unary ast.Op values to the method name they dispatch
// to. Comparison, arithmetic and bitwise operators all go through
// OpMemCall; there is deliberately no special-casing per type here, that
// lives in pkg/value's per-type registrations.
var opNames = map[ast.Op]string{
	ast.OpAdd: "+", ast.OpSub: "-", ast.OpMul: "*", ast.OpDiv: "/",
	ast.OpMod: "%", ast.OpPow: "**", ast.OpRoot: "//",
	ast.OpEq: "==", ast.OpNe: "!=", ast.OpLt: "<", ast.OpGt: ">",
	ast.OpLe: "<=", ast.OpGe: ">=",
	ast.OpBAnd: "&", ast.OpBOr: "|", ast.OpBXor: "^",
	ast.OpLShift: "<<", ast.OpRShift: ">>",
	ast.OpNilCoalesce: "??",
}

var unaryOpNames = map[ast.Op]string{
	ast.OpUnaryPlus: "u+", ast.OpUnaryMinus: "u-",
	ast.OpLNot: "!", ast.OpBNot: "~",
	ast.OpDeref: "u*", ast.OpAddrOf: "u&",
	ast.OpPreInc: "++", ast.OpPreDec: "--",
	ast.OpPostInc: "++", ast.OpPostDec: "--",
	ast.OpSpread: "u...",
}

var compoundAssnBase = map[ast.Op]ast.Op{
	ast.OpAddAssn: ast.OpAdd, ast.OpSubAssn: ast.OpSub,
	ast.OpMulAssn: ast.OpMul, ast.OpDivAssn: ast.OpDiv,
	ast.OpModAssn: ast.OpMod,
	ast.OpBAndAssn: ast.OpBAnd, ast.OpBOrAssn: ast.OpBOr,
	ast.OpBXorAssn: ast.OpBXor,
	ast.OpLShiftAssn: ast.OpLShift, ast.OpRShiftAssn: ast.OpRShift,
	ast.OpNilCoalesceAssn: ast.OpNilCoalesce,
}

// loopCtx tracks backpatch sites for one enclosing loop.
type loopCtx struct {
	continueJumps []int // indices of OpContinue instructions awaiting their incr-label target
	breakJumps    []int // indices of OpBreak instructions awaiting their end-label target
}

// Compiler walks a simplified AST and accumulates a flat instruction
// vector. It is single-use: construct one per Compile call.
type Compiler struct {
	module diag.ModuleID
	instrs []bytecode.Instruction
	loops  []*loopCtx
	errs   []error
}

func New(module diag.ModuleID) *Compiler {
	return &Compiler{module: module}
}

// Compile compiles blk (the module's top-level block, already run through
// pkg/simplify) into bytecode. blk.Top must be true.
func (c *Compiler) Compile(blk *ast.Block) (*bytecode.Bytecode, error) {
	c.compileStmts(blk.Stmts)
	c.emitDeferred(blk)
	if len(c.errs) != 0 {
		return nil, fmt.Errorf("compile errors: %v", c.errs)
	}
	return &bytecode.Bytecode{Instructions: c.instrs}, nil
}

func (c *Compiler) errorf(loc diag.Loc, format string, args ...interface{}) {
	c.errs = append(c.errs, fmt.Errorf("%v: "+format, append([]interface{}{loc}, args...)...))
}

// emit appends an instruction and returns its index, for later backpatching.
func (c *Compiler) emit(op bytecode.Opcode, data bytecode.Data, loc diag.Loc) int {
	c.instrs = append(c.instrs, bytecode.Instruction{Op: op, Data: data, Loc: loc})
	return len(c.instrs) - 1
}

func (c *Compiler) patchTarget(idx int, target int) {
	c.instrs[idx].Data.Int = int64(target)
}

func (c *Compiler) here() int { return len(c.instrs) }

// --- statements ---

func (c *Compiler) compileStmts(stmts []ast.Node) {
	for _, s := range stmts {
		c.compileStmt(s)
	}
}

func (c *Compiler) compileStmt(n ast.Node) {
	switch s := n.(type) {
	case *ast.Block:
		c.compileBlock(s, true)
	case *ast.VarDecl:
		for _, v := range s.Vars {
			c.compileVarBinding(v)
		}
	case *ast.Cond:
		c.compileCond(s)
	case *ast.For:
		c.compileFor(s)
	case *ast.ForIn:
		c.compileForIn(s)
	case *ast.Ret:
		if s.Value != nil {
			c.compileExpr(s.Value)
			c.emit(bytecode.OpReturn, bytecode.Data{Kind: bytecode.DataBool, Bool: true}, s.L)
		} else {
			c.emit(bytecode.OpReturn, bytecode.Data{Kind: bytecode.DataBool, Bool: false}, s.L)
		}
	case *ast.Continue:
		if len(c.loops) == 0 {
			c.errorf(s.L, "continue outside loop")
			return
		}
		lp := c.loops[len(c.loops)-1]
		idx := c.emit(bytecode.OpContinue, bytecode.Data{Kind: bytecode.DataInt}, s.L)
		lp.continueJumps = append(lp.continueJumps, idx)
	case *ast.Break:
		if len(c.loops) == 0 {
			c.errorf(s.L, "break outside loop")
			return
		}
		lp := c.loops[len(c.loops)-1]
		idx := c.emit(bytecode.OpBreak, bytecode.Data{Kind: bytecode.DataInt}, s.L)
		lp.breakJumps = append(lp.breakJumps, idx)
	case *ast.Defer:
		c.errorf(s.L, "defer statement survived simplify pass")
	case *ast.FnDef:
		c.compileFnDef(s)
		c.emit(bytecode.OpUnload, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, s.L)
	default:
		// Bare expression statement: evaluate and discard.
		c.compileExpr(n)
		c.emit(bytecode.OpUnload, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, n.Loc())
	}
}

// compileBlock compiles a nested block (not the module top-level), wrapping
// it in PUSH_BLOCK/POP_BLOCK and emitting its hoisted defers (in reverse
// registration order) right before the POP_BLOCK.
//
// Deferred statements run only on the block's normal fallthrough exit, not
// when an early return/break/continue skips past it: a full unwind-on-
// every-exit-path defer stack would need a per-frame defer registry the
// instruction set doesn't carry, so this is a deliberate simplification.
func (c *Compiler) compileBlock(blk *ast.Block, wrap bool) {
	if wrap {
		c.emit(bytecode.OpPushBlock, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, blk.L)
	}
	c.compileStmts(blk.Stmts)
	c.emitDeferred(blk)
	if wrap {
		c.emit(bytecode.OpPopBlock, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, blk.L)
	}
}

func (c *Compiler) emitDeferred(blk *ast.Block) {
	for i := len(blk.Deferred) - 1; i >= 0; i-- {
		c.compileStmt(blk.Deferred[i])
	}
}

// compileBlockYield compiles a nested block the same way compileBlock does
// (PUSH_BLOCK/POP_BLOCK wrapping, deferred statements before the pop) except
// it leaves exactly one value on the stack: every statement but the last is
// compiled as usual, and the last is compiled so its value survives instead
// of being discarded. An empty block pushes a nil. Used where the block
// appears in expression position, e.g. the handler side of `or`.
func (c *Compiler) compileBlockYield(blk *ast.Block) {
	c.emit(bytecode.OpPushBlock, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, blk.L)
	if len(blk.Stmts) == 0 {
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataNil}, blk.L)
	} else {
		c.compileStmts(blk.Stmts[:len(blk.Stmts)-1])
		last := blk.Stmts[len(blk.Stmts)-1]
		if isExprStmt(last) {
			c.compileExpr(last)
		} else {
			c.compileStmt(last)
			c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataNil}, last.Loc())
		}
	}
	c.emitDeferred(blk)
	c.emit(bytecode.OpPopBlock, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, blk.L)
}

// isExprStmt reports whether n falls through compileStmt's default case: a
// bare expression statement, the only statement kind whose value isn't
// already discarded or absent by construction.
func isExprStmt(n ast.Node) bool {
	switch n.(type) {
	case *ast.Simple, *ast.Expr:
		return true
	default:
		return false
	}
}

func (c *Compiler) compileVarBinding(v *ast.Var) {
	if v.Default != nil {
		c.compileExpr(v.Default)
	} else {
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataNil}, v.L)
	}
	if v.InExpr != nil {
		c.compileExpr(v.InExpr)
		c.emit(bytecode.OpCreateIn, bytecode.Data{Kind: bytecode.DataStr, Str: v.Name}, v.L)
		return
	}
	c.emit(bytecode.OpCreate, bytecode.Data{Kind: bytecode.DataStr, Str: v.Name}, v.L)
}

func (c *Compiler) compileCond(n *ast.Cond) {
	var endJumps []int
	for _, arm := range n.Arms {
		c.compileExpr(arm.Test)
		skip := c.emit(bytecode.OpJmpFalsePop, bytecode.Data{Kind: bytecode.DataInt}, n.L)
		c.compileBlock(arm.Body, true)
		end := c.emit(bytecode.OpJmp, bytecode.Data{Kind: bytecode.DataInt}, n.L)
		endJumps = append(endJumps, end)
		c.patchTarget(skip, c.here())
	}
	if n.Else != nil {
		c.compileBlock(n.Else, true)
	}
	for _, j := range endJumps {
		c.patchTarget(j, c.here())
	}
}

func (c *Compiler) compileFor(n *ast.For) {
	if n.Init != nil {
		c.compileStmt(n.Init)
	}
	lp := &loopCtx{}
	c.loops = append(c.loops, lp)
	c.emit(bytecode.OpPushLoop, bytecode.Data{Kind: bytecode.DataNone}, n.L)

	testLabel := c.here()
	var exitJump int
	hasTest := n.Test != nil
	if hasTest {
		c.compileExpr(n.Test)
		exitJump = c.emit(bytecode.OpJmpFalsePop, bytecode.Data{Kind: bytecode.DataInt}, n.L)
	}

	c.compileBlock(n.Body, true)

	incrLabel := c.here()
	if n.Incr != nil {
		c.compileStmt(n.Incr)
	}
	c.emit(bytecode.OpJmp, bytecode.Data{Kind: bytecode.DataInt, Int: int64(testLabel)}, n.L)

	endLabel := c.here()
	if hasTest {
		c.patchTarget(exitJump, endLabel)
	}
	c.emit(bytecode.OpPopLoop, bytecode.Data{Kind: bytecode.DataNone}, n.L)

	for _, j := range lp.continueJumps {
		c.patchTarget(j, incrLabel)
	}
	for _, j := range lp.breakJumps {
		c.patchTarget(j, endLabel)
	}
	c.loops = c.loops[:len(c.loops)-1]
}

// compileForIn expands `for IDEN in SRC Body` into the literal three-clause
// for form per spec.md §4.2: SRC is evaluated once into __interm, then
// `__iter = __interm.begin()`, test `__iter != __interm.end()`, step
// `__iter = __interm.next(__iter)`, and each pass binds
// `IDEN = __interm.at(__iter)`. The result compiles as an ordinary For inside
// a wrapping block (so the synthesized bindings don't leak).
func (c *Compiler) compileForIn(n *ast.ForIn) {
	const iterName = "__iter"
	const intermName = "__interm"
	wrapper := &ast.Block{L: n.L}

	intermDecl := &ast.VarDecl{L: n.L, Vars: []*ast.Var{{L: n.L, Name: intermName, Default: n.Src}}}
	interm := &ast.Simple{L: n.L, LitKind: ast.LitIden, Str: intermName}
	iter := &ast.Simple{L: n.L, LitKind: ast.LitIden, Str: iterName}

	iterDecl := &ast.VarDecl{L: n.L, Vars: []*ast.Var{{
		L: n.L, Name: iterName,
		Default: &ast.Expr{L: n.L, Op: ast.OpCall, Lhs: &ast.Expr{
			L: n.L, Op: ast.OpMember, Lhs: interm, Name: "begin",
		}},
	}}}

	test := &ast.Expr{
		L: n.L, Op: ast.OpNe,
		Lhs: iter,
		Rhs: &ast.Expr{L: n.L, Op: ast.OpCall, Lhs: &ast.Expr{L: n.L, Op: ast.OpMember, Lhs: interm, Name: "end"}},
	}

	incr := &ast.Expr{
		L: n.L, Op: ast.OpAssign,
		Lhs: iter,
		Rhs: &ast.Expr{L: n.L, Op: ast.OpCall, Lhs: &ast.Expr{
			L: n.L, Op: ast.OpMember,
			Lhs:  interm,
			Name: "next",
		}, Args: []ast.Node{iter}},
	}

	bodyDecl := &ast.VarDecl{L: n.L, Vars: []*ast.Var{{
		L: n.L, Name: n.Iter,
		Default: &ast.Expr{L: n.L, Op: ast.OpCall, Lhs: &ast.Expr{
			L: n.L, Op: ast.OpMember,
			Lhs:  interm,
			Name: "at",
		}, Args: []ast.Node{iter}},
	}}}
	body := &ast.Block{L: n.Body.L, Stmts: append([]ast.Node{bodyDecl}, n.Body.Stmts...), Deferred: n.Body.Deferred}

	forNode := &ast.For{L: n.L, Init: nil, Test: test, Incr: incr, Body: body}
	wrapper.Stmts = []ast.Node{intermDecl, iterDecl, forNode}
	c.compileBlock(wrapper, true)
}

// --- expressions ---

func (c *Compiler) compileExpr(n ast.Node) {
	switch e := n.(type) {
	case *ast.Simple:
		c.compileSimple(e)
	case *ast.FnDef:
		c.compileFnDef(e)
	case *ast.Expr:
		c.compileExprNode(e)
	default:
		c.errorf(n.Loc(), "unexpected node in expression position: %T", n)
	}
}

func (c *Compiler) compileSimple(s *ast.Simple) {
	switch s.LitKind {
	case ast.LitInt:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataInt, Int: s.Int}, s.L)
	case ast.LitFloat:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataFlt, Flt: s.Flt}, s.L)
	case ast.LitChar:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataChar, Str: s.Str}, s.L)
	case ast.LitString:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataStr, Str: s.Str}, s.L)
	case ast.LitIden:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataIden, Str: s.Str}, s.L)
	case ast.LitTrue:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataBool, Bool: true}, s.L)
	case ast.LitFalse:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataBool, Bool: false}, s.L)
	case ast.LitNil:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataNil}, s.L)
	case ast.LitVoid:
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataNone}, s.L)
	default:
		c.errorf(s.L, "unknown literal kind %v", s.LitKind)
	}
}

func (c *Compiler) compileExprNode(e *ast.Expr) {
	switch e.Op {
	case ast.OpLAnd:
		c.compileExpr(e.Lhs)
		skip := c.emit(bytecode.OpJmpFalse, bytecode.Data{Kind: bytecode.DataInt}, e.L)
		c.emit(bytecode.OpUnload, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, e.L)
		c.compileExpr(e.Rhs)
		c.patchTarget(skip, c.here())
		return
	case ast.OpLOr:
		c.compileExpr(e.Lhs)
		skip := c.emit(bytecode.OpJmpTrue, bytecode.Data{Kind: bytecode.DataInt}, e.L)
		c.emit(bytecode.OpUnload, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, e.L)
		c.compileExpr(e.Rhs)
		c.patchTarget(skip, c.here())
		return
	case ast.OpTernary:
		c.compileExpr(e.Lhs) // condition
		elseJump := c.emit(bytecode.OpJmpFalsePop, bytecode.Data{Kind: bytecode.DataInt}, e.L)
		c.compileExpr(e.Rhs) // then
		endJump := c.emit(bytecode.OpJmp, bytecode.Data{Kind: bytecode.DataInt}, e.L)
		c.patchTarget(elseJump, c.here())
		c.compileExpr(e.Else)
		c.patchTarget(endJump, c.here())
		return
	case ast.OpComma:
		c.compileExpr(e.Lhs)
		c.emit(bytecode.OpUnload, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, e.L)
		c.compileExpr(e.Rhs)
		return
	case ast.OpOrHandler:
		c.compileOrHandler(e)
		return
	case ast.OpAssign:
		c.compileAssign(e)
		return
	case ast.OpMember:
		c.compileExpr(e.Lhs)
		c.emit(bytecode.OpAttr, bytecode.Data{Kind: bytecode.DataStr, Str: e.Name}, e.L)
		return
	case ast.OpSubscript:
		c.compileMethodCall(e.Lhs, "[]", []ast.Node{e.Rhs}, nil, nil, e.L)
		return
	case ast.OpCall:
		c.compileCallExpr(e)
		return
	case ast.OpStructCall:
		c.compilePlainCall(e.Lhs, e.Args, e.ArgNames, e.Spread, e.L)
		return
	case ast.OpPreInc, ast.OpPreDec:
		c.compileIncDec(e, true)
		return
	case ast.OpPostInc, ast.OpPostDec:
		c.compileIncDec(e, false)
		return
	}

	if base, ok := compoundAssnBase[e.Op]; ok {
		c.compileCompoundAssign(e, base)
		return
	}

	if name, ok := opNames[e.Op]; ok {
		c.compileMethodCall(e.Lhs, name, []ast.Node{e.Rhs}, nil, nil, e.L)
		return
	}

	if name, ok := unaryOpNames[e.Op]; ok {
		c.compileMethodCall(e.Operand, name, nil, nil, nil, e.L)
		return
	}

	c.errorf(e.L, "unsupported operator %v in codegen", e.Op)
}

// compileMethodCall pushes args, the receiver, the method name, then emits
// OpMemCall — the uniform lowering for operators, subscripts, and true
// method calls alike.
func (c *Compiler) compileMethodCall(receiver ast.Node, method string, args []ast.Node, names []string, spread []bool, loc diag.Loc) {
	arginfo := c.pushCallArgs(args, names, spread)
	c.compileExpr(receiver)
	c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataStr, Str: method}, loc)
	c.emit(bytecode.OpMemCall, bytecode.Data{Kind: bytecode.DataStr, Str: arginfo}, loc)
}

// compilePlainCall pushes args then the callable, then emits OpCall: used
// both for ordinary `f(...)` calls and `Type{...}` struct construction.
func (c *Compiler) compilePlainCall(callee ast.Node, args []ast.Node, names []string, spread []bool, loc diag.Loc) {
	arginfo := c.pushCallArgs(args, names, spread)
	c.compileExpr(callee)
	c.emit(bytecode.OpCall, bytecode.Data{Kind: bytecode.DataStr, Str: arginfo}, loc)
}

// compileCallExpr dispatches `expr(...)`: a true method call (`a.b(...)`)
// lowers straight to OpMemCall so the receiver is passed as args[0] without
// a separate OpAttr fetch; anything else is a plain OpCall.
func (c *Compiler) compileCallExpr(e *ast.Expr) {
	if member, ok := e.Lhs.(*ast.Expr); ok && member.Op == ast.OpMember {
		c.compileMethodCall(member.Lhs, member.Name, e.Args, e.ArgNames, e.Spread, e.L)
		return
	}
	c.compilePlainCall(e.Lhs, e.Args, e.ArgNames, e.Spread, e.L)
}

// pushCallArgs pushes each argument (keyword args as a preceding name
// literal, then the value) and returns the arginfo string: one character
// per argument, '0' positional, '1' keyword, '2' unpack-as-vec.
func (c *Compiler) pushCallArgs(args []ast.Node, names []string, spread []bool) string {
	info := make([]byte, len(args))
	for i, a := range args {
		kw := names != nil && i < len(names) && names[i] != ""
		sp := spread != nil && i < len(spread) && spread[i]
		switch {
		case sp:
			info[i] = '2'
			c.compileExpr(a)
		case kw:
			info[i] = '1'
			c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataStr, Str: names[i]}, a.Loc())
			c.compileExpr(a)
		default:
			info[i] = '0'
			c.compileExpr(a)
		}
	}
	return string(info)
}

// compileAssign lowers `lhs = rhs`. Plain identifiers go through
// OpStore (name literal, then value); subscript targets go through the
// "[]=" method call; member targets go through OpCreateIn, after which the
// attribute is read back so the assignment leaves its value on the stack.
func (c *Compiler) compileAssign(e *ast.Expr) {
	switch lhs := e.Lhs.(type) {
	case *ast.Simple:
		if lhs.LitKind != ast.LitIden {
			c.errorf(e.L, "invalid assignment target")
			return
		}
		c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataStr, Str: lhs.Str}, e.L)
		c.compileExpr(e.Rhs)
		c.emit(bytecode.OpStore, bytecode.Data{Kind: bytecode.DataNone}, e.L)
	case *ast.Expr:
		switch lhs.Op {
		case ast.OpSubscript:
			c.compileMethodCall(lhs.Lhs, "[]=", []ast.Node{lhs.Rhs, e.Rhs}, nil, nil, e.L)
		case ast.OpMember:
			c.compileExpr(e.Rhs)
			c.compileExpr(lhs.Lhs)
			c.emit(bytecode.OpCreateIn, bytecode.Data{Kind: bytecode.DataStr, Str: lhs.Name}, e.L)
			c.compileExpr(lhs)
		default:
			c.errorf(e.L, "invalid assignment target")
		}
	default:
		c.errorf(e.L, "invalid assignment target")
	}
}

// compileCompoundAssign lowers `lhs op= rhs` as `lhs = lhs op rhs`.
func (c *Compiler) compileCompoundAssign(e *ast.Expr, base ast.Op) {
	expanded := &ast.Expr{
		L: e.L, Op: ast.OpAssign,
		Lhs: e.Lhs,
		Rhs: &ast.Expr{L: e.L, Op: base, Lhs: e.Lhs, Rhs: e.Rhs},
	}
	c.compileAssign(expanded)
}

// compileIncDec lowers `++x`/`x++` etc as `x = x <op> 1`, pushing either
// the new value (prefix) or re-loading the pre-increment value (postfix).
func (c *Compiler) compileIncDec(e *ast.Expr, prefix bool) {
	base := ast.OpAdd
	if e.Op == ast.OpPreDec || e.Op == ast.OpPostDec {
		base = ast.OpSub
	}
	one := &ast.Simple{L: e.L, LitKind: ast.LitInt, Int: 1}
	assign := &ast.Expr{
		L: e.L, Op: ast.OpAssign,
		Lhs: e.Operand,
		Rhs: &ast.Expr{L: e.L, Op: base, Lhs: e.Operand, Rhs: one},
	}
	if prefix {
		c.compileAssign(assign)
		return
	}
	// Postfix: evaluate the old value first, perform the assignment, discard
	// its result, then leave the saved old value as this expression's value.
	c.compileExpr(e.Operand)
	c.compileAssign(assign)
	c.emit(bytecode.OpUnload, bytecode.Data{Kind: bytecode.DataInt, Int: 1}, e.L)
}

// compileOrHandler lowers `expr or [name] Block` onto the fail stack:
// PUSH_JMP opens a try block whose handler target is backpatched once the
// handler is compiled; POP_JMP closes it on the success path before
// jumping past the handler. Both paths must leave exactly one value behind,
// since every caller of an or-expression (an enclosing OpUnload, or an
// OpStore from a let binding) statically assumes a net stack effect of +1;
// the success path already does via compileExpr, so the handler is compiled
// with compileBlockYield rather than compileBlock to match it.
func (c *Compiler) compileOrHandler(e *ast.Expr) {
	push := c.emit(bytecode.OpPushJmp, bytecode.Data{Kind: bytecode.DataInt}, e.L)
	if e.Name != "" {
		c.emit(bytecode.OpPushJmpName, bytecode.Data{Kind: bytecode.DataStr, Str: e.Name}, e.L)
	}
	c.compileExpr(e.Lhs)
	c.emit(bytecode.OpPopJmp, bytecode.Data{Kind: bytecode.DataNone}, e.L)
	skipHandler := c.emit(bytecode.OpJmp, bytecode.Data{Kind: bytecode.DataInt}, e.L)
	c.patchTarget(push, c.here())
	c.compileBlockYield(e.Handler)
	c.patchTarget(skipHandler, c.here())
}

// --- function literals ---

func (c *Compiler) compileFnDef(fn *ast.FnDef) {
	blockTill := c.emit(bytecode.OpBlockTill, bytecode.Data{Kind: bytecode.DataInt}, fn.L)

	savedLoops := c.loops
	c.loops = nil
	c.compileStmts(fn.Body.Stmts)
	c.emitDeferred(fn.Body)
	if !lastIsReturn(fn.Body.Stmts) {
		c.emit(bytecode.OpReturn, bytecode.Data{Kind: bytecode.DataBool, Bool: false}, fn.L)
	}
	c.loops = savedLoops

	bodyEnd := c.here()
	c.patchTarget(blockTill, bodyEnd)

	args := fn.Sig.Args
	names := make([]string, 0, len(args.Params)+2)
	for _, p := range args.Params {
		if p.Default != nil {
			c.compileExpr(p.Default)
		} else {
			c.emit(bytecode.OpLoadData, bytecode.Data{Kind: bytecode.DataNil}, p.L)
		}
		names = append(names, p.Name)
	}
	arginfo := joinArgNames(names)
	if args.Variadic {
		arginfo += ",..."
	}
	if args.KwArgName != "" {
		arginfo += ",**" + args.KwArgName
	}
	c.emit(bytecode.OpCreateFn, bytecode.Data{Kind: bytecode.DataStr, Str: arginfo}, fn.L)
}

func lastIsReturn(stmts []ast.Node) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(*ast.Ret)
	return ok
}

func joinArgNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}
