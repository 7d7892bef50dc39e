// Package parser implements the recursive-descent parser (component D of
// spec.md): two-token lookahead over the lexer's Lexeme stream, producing
// an ast.Node tree. Binary-operator precedence is a seventeen-level ladder
// (spec.md §4.2); the loosest level (comma-chaining) is Expr17, the
// tightest (suffix chains: call/subscript/member) is Expr01.
//
// This generalizes the teacher's pkg/parser/parser.go (same curTok/
// peekTok/nextToken two-lookahead shape, same addError error-accumulation
// style) from smog's unary/binary/keyword message-send precedence to the
// language's seventeen binary levels.
package parser

import (
	"fmt"

	"github.com/kristofer/feral/pkg/ast"
	"github.com/kristofer/feral/pkg/diag"
	"github.com/kristofer/feral/pkg/lexer"
)

// Parser turns one module's Lexeme stream into an ast.Block (the module's
// top-level block, Top set).
type Parser struct {
	module   diag.ModuleID
	lex      *lexer.Lexer
	reporter *diag.Reporter

	cur  lexer.Lexeme
	peek lexer.Lexeme

	errors []error
}

// New creates a parser reading from l, attributing diagnostics to module
// and reporting them through reporter (may be nil, in which case errors
// only accumulate in Errors()).
func New(module diag.ModuleID, l *lexer.Lexer, reporter *diag.Reporter) *Parser {
	p := &Parser{module: module, lex: l, reporter: reporter}
	p.next()
	p.next()
	return p
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []error { return p.errors }

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.Next()
}

func (p *Parser) at(k lexer.Kind) bool     { return p.cur.Kind == k }
func (p *Parser) peekAt(k lexer.Kind) bool { return p.peek.Kind == k }

func (p *Parser) expect(k lexer.Kind) lexer.Lexeme {
	tok := p.cur
	if tok.Kind != k {
		p.errorf("expected %s, got %s", k, tok.Kind)
	} else {
		p.next()
	}
	return tok
}

func (p *Parser) errorf(format string, args ...interface{}) {
	loc := p.cur.Loc
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Errorf("%s", msg))
	if p.reporter != nil {
		p.reporter.Report(diag.Errorf(diag.ParseError, loc, "%s", msg))
	}
}

// Parse parses the whole module into its top-level block.
func (p *Parser) Parse() *ast.Block {
	begin := p.cur.Loc
	blk := &ast.Block{L: begin, Top: true}
	for !p.at(lexer.EOF) {
		stmt := p.parseStmt()
		if stmt != nil {
			blk.Stmts = append(blk.Stmts, stmt)
		}
		if p.at(lexer.ILLEGAL) {
			break
		}
	}
	blk.L.End = p.cur.Loc.Begin
	return blk
}

// parseBlock parses `'{' Stmt* '}'`.
func (p *Parser) parseBlock() *ast.Block {
	begin := p.cur.Loc
	p.expect(lexer.LBRACE)
	blk := &ast.Block{L: begin}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		stmt := p.parseStmt()
		if stmt != nil {
			blk.Stmts = append(blk.Stmts, stmt)
		}
	}
	blk.L.End = p.cur.Loc.End
	p.expect(lexer.RBRACE)
	return blk
}

// parseStmt parses one Stmt alternative.
func (p *Parser) parseStmt() ast.Node {
	switch p.cur.Kind {
	case lexer.LET:
		return p.parseVarDecl()
	case lexer.IF:
		return p.parseCond()
	case lexer.FOR:
		return p.parseForOrForIn()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.RETURN:
		return p.parseReturn()
	case lexer.CONTINUE:
		n := &ast.Continue{L: p.cur.Loc}
		p.next()
		p.expect(lexer.SEMICOLON)
		return n
	case lexer.BREAK:
		n := &ast.Break{L: p.cur.Loc}
		p.next()
		p.expect(lexer.SEMICOLON)
		return n
	case lexer.DEFER:
		return p.parseDefer()
	case lexer.LBRACE:
		return p.parseBlock()
	case lexer.SEMICOLON:
		p.next()
		return nil
	default:
		e := p.parseExpr()
		p.expect(lexer.SEMICOLON)
		return e
	}
}

// parseVarDecl parses `'let' Var { ',' Var }`.
func (p *Parser) parseVarDecl() ast.Node {
	begin := p.cur.Loc
	p.expect(lexer.LET)
	vd := &ast.VarDecl{L: begin}
	vd.Vars = append(vd.Vars, p.parseVar())
	for p.at(lexer.COMMA) {
		p.next()
		vd.Vars = append(vd.Vars, p.parseVar())
	}
	p.expect(lexer.SEMICOLON)
	return vd
}

// parseVar parses `['const'] IDEN ['in' Simple] ['=' Expr16]`.
func (p *Parser) parseVar() *ast.Var {
	begin := p.cur.Loc
	v := &ast.Var{L: begin}
	if p.at(lexer.CONST) {
		v.Const = true
		p.next()
	}
	nameTok := p.expect(lexer.IDEN)
	v.Name = nameTok.Str
	if p.at(lexer.IN) {
		p.next()
		v.InExpr = p.parseSimple()
	}
	if p.at(lexer.ASSN) {
		p.next()
		v.Default = p.parseExpr16()
	}
	return v
}

// parseSimple parses a bare literal or identifier, for the 'in' clause of
// a Var (type-function registration target).
func (p *Parser) parseSimple() ast.Node {
	return p.parseLiteralOrIdent()
}

// parseFnArgs parses `'(' [Var ['...'] { ',' Var ['...'] }] ')'`: a trailing
// `...` right after a parameter's name marks it the variadic collector for
// every argument past this point, and (per spec.md §4.4) no further
// parameter may follow it.
func (p *Parser) parseFnArgs() *ast.FnArgs {
	begin := p.cur.Loc
	p.expect(lexer.LPAREN)
	args := &ast.FnArgs{L: begin}
	for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
		v := p.parseVar()
		args.Params = append(args.Params, v)
		if p.at(lexer.ELLIPSIS) {
			p.next()
			args.Variadic = true
		}
		if p.at(lexer.COMMA) {
			p.next()
			if args.Variadic {
				p.errorf("no parameter can follow a variadic parameter")
			}
			continue
		}
		break
	}
	args.L.End = p.cur.Loc.End
	p.expect(lexer.RPAREN)
	return args
}

// parseFnSig parses `'fn' '(' FnArgs ')'`.
func (p *Parser) parseFnSig() *ast.FnSig {
	begin := p.cur.Loc
	p.expect(lexer.FN)
	return &ast.FnSig{L: begin, Args: p.parseFnArgs()}
}

// parseFnDef parses `FnSig Block`, the function-literal expression form.
func (p *Parser) parseFnDef() *ast.FnDef {
	begin := p.cur.Loc
	sig := p.parseFnSig()
	body := p.parseBlock()
	return &ast.FnDef{L: begin, Sig: sig, Body: body}
}

// parseCond parses `'if' Expr15 Block { 'elif' Expr15 Block } ['else' Block]`.
func (p *Parser) parseCond() ast.Node {
	begin := p.cur.Loc
	p.expect(lexer.IF)
	c := &ast.Cond{L: begin}
	test := p.parseExpr15()
	body := p.parseBlock()
	c.Arms = append(c.Arms, ast.CondArm{Test: test, Body: body})
	for p.at(lexer.ELIF) {
		p.next()
		test := p.parseExpr15()
		body := p.parseBlock()
		c.Arms = append(c.Arms, ast.CondArm{Test: test, Body: body})
	}
	if p.at(lexer.ELSE) {
		p.next()
		c.Else = p.parseBlock()
	}
	return c
}

// parseForOrForIn disambiguates `for IDEN in Expr01 Block` from the
// three-clause `for [Init] ';' [Cond] ';' [Incr] Block`.
func (p *Parser) parseForOrForIn() ast.Node {
	begin := p.cur.Loc
	p.expect(lexer.FOR)
	if p.at(lexer.IDEN) && p.peekAt(lexer.IN) {
		name := p.cur.Str
		p.next() // IDEN
		p.next() // IN
		src := p.parseExpr01()
		body := p.parseBlock()
		return &ast.ForIn{L: begin, Iter: name, Src: src, Body: body}
	}

	f := &ast.For{L: begin}
	if !p.at(lexer.SEMICOLON) {
		if p.at(lexer.LET) {
			f.Init = p.parseVarDeclNoSemi()
		} else {
			f.Init = p.parseExpr()
		}
	}
	p.expect(lexer.SEMICOLON)
	if !p.at(lexer.SEMICOLON) {
		f.Test = p.parseExpr()
	}
	p.expect(lexer.SEMICOLON)
	if !p.at(lexer.LBRACE) {
		f.Incr = p.parseExpr()
	}
	f.Body = p.parseBlock()
	return f
}

// parseVarDeclNoSemi parses a VarDecl for a for-loop's init clause, where
// the trailing separator is the loop's own ';', not VarDecl's usual one.
func (p *Parser) parseVarDeclNoSemi() ast.Node {
	begin := p.cur.Loc
	p.expect(lexer.LET)
	vd := &ast.VarDecl{L: begin}
	vd.Vars = append(vd.Vars, p.parseVar())
	for p.at(lexer.COMMA) {
		p.next()
		vd.Vars = append(vd.Vars, p.parseVar())
	}
	return vd
}

// parseWhile parses `'while' Expr16 Block`, represented as a For with
// IsWhile set.
func (p *Parser) parseWhile() ast.Node {
	begin := p.cur.Loc
	p.expect(lexer.WHILE)
	test := p.parseExpr16()
	body := p.parseBlock()
	return &ast.For{L: begin, Test: test, Body: body, IsWhile: true}
}

// parseReturn parses `'return' [Expr]`.
func (p *Parser) parseReturn() ast.Node {
	begin := p.cur.Loc
	p.expect(lexer.RETURN)
	r := &ast.Ret{L: begin}
	if !p.at(lexer.SEMICOLON) {
		r.Value = p.parseExpr()
	}
	p.expect(lexer.SEMICOLON)
	return r
}

// parseDefer parses `'defer' Stmt`.
func (p *Parser) parseDefer() ast.Node {
	begin := p.cur.Loc
	p.expect(lexer.DEFER)
	stmt := p.parseStmt()
	return &ast.Defer{L: begin, Stmt: stmt}
}

// parseExpr parses Expr17: comma-chained Expr16s, the widest expression
// grammar (used by statement bodies, for-clauses, return values).
func (p *Parser) parseExpr() ast.Node { return p.parseExpr17() }

func (p *Parser) parseExpr17() ast.Node {
	left := p.parseExpr16()
	for p.at(lexer.COMMA) {
		loc := p.cur.Loc
		p.next()
		right := p.parseExpr16()
		left = &ast.Expr{L: loc, Op: ast.OpComma, Lhs: left, Rhs: right}
	}
	return left
}

// parseExpr16 parses the optional ternary: `Expr15 ['?' Expr15 ':' Expr15]`.
func (p *Parser) parseExpr16() ast.Node {
	cond := p.parseExpr15()
	if p.at(lexer.QUESTION) {
		loc := p.cur.Loc
		p.next()
		then := p.parseExpr15()
		p.expect(lexer.COLON)
		els := p.parseExpr15()
		return &ast.Expr{L: loc, Op: ast.OpTernary, Lhs: cond, Rhs: then, Else: els}
	}
	return cond
}

// parseExpr15 parses the right-associative plain-assignment chain:
// `Expr14 { '=' Expr14 }`.
func (p *Parser) parseExpr15() ast.Node {
	left := p.parseExpr14()
	if p.at(lexer.ASSN) {
		loc := p.cur.Loc
		p.next()
		right := p.parseExpr15()
		return &ast.Expr{L: loc, Op: ast.OpAssign, Lhs: left, Rhs: right}
	}
	return left
}

var compoundAssignOps = map[lexer.Kind]ast.Op{
	lexer.ADD_ASSN:          ast.OpAddAssn,
	lexer.SUB_ASSN:          ast.OpSubAssn,
	lexer.MUL_ASSN:          ast.OpMulAssn,
	lexer.DIV_ASSN:          ast.OpDivAssn,
	lexer.MOD_ASSN:          ast.OpModAssn,
	lexer.BAND_ASSN:         ast.OpBAndAssn,
	lexer.BOR_ASSN:          ast.OpBOrAssn,
	lexer.BNOT_ASSN:         ast.OpBNotAssn,
	lexer.BXOR_ASSN:         ast.OpBXorAssn,
	lexer.LSHIFT_ASSN:       ast.OpLShiftAssn,
	lexer.RSHIFT_ASSN:       ast.OpRShiftAssn,
	lexer.NIL_COALESCE_ASSN: ast.OpNilCoalesceAssn,
}

// parseExpr14 parses `Expr13 { (op_assn) Expr13 } ['or' [IDEN] Block]`.
func (p *Parser) parseExpr14() ast.Node {
	left := p.parseExpr13()
	for {
		op, ok := compoundAssignOps[p.cur.Kind]
		if !ok {
			break
		}
		loc := p.cur.Loc
		p.next()
		right := p.parseExpr13()
		left = &ast.Expr{L: loc, Op: op, Lhs: left, Rhs: right}
	}
	if p.at(lexer.OR) {
		loc := p.cur.Loc
		p.next()
		name := ""
		if p.at(lexer.IDEN) {
			name = p.cur.Str
			p.next()
		}
		handler := p.parseBlock()
		left = &ast.Expr{L: loc, Op: ast.OpOrHandler, Lhs: left, Name: name, Handler: handler}
	}
	return left
}

// binLevel is one left-associative precedence level of the Expr13..Expr4
// ladder: a set of token kinds mapped to their ast.Op, checked in order
// from loosest (Expr13, ||) to tightest (Expr4, */%** //).
type binLevel map[lexer.Kind]ast.Op

var binLevels = []binLevel{
	{lexer.LOR: ast.OpLOr},                                                          // Expr13
	{lexer.LAND: ast.OpLAnd},                                                        // Expr12
	{lexer.BOR: ast.OpBOr},                                                          // Expr11
	{lexer.BXOR: ast.OpBXor},                                                        // Expr10
	{lexer.BAND: ast.OpBAnd},                                                        // Expr9
	{lexer.EQ: ast.OpEq, lexer.NE: ast.OpNe},                                        // Expr8
	{lexer.LE: ast.OpLe, lexer.GE: ast.OpGe, lexer.LT: ast.OpLt, lexer.GT: ast.OpGt}, // Expr7
	{lexer.LSHIFT: ast.OpLShift, lexer.RSHIFT: ast.OpRShift},                        // Expr6
	{lexer.ADD: ast.OpAdd, lexer.SUB: ast.OpSub},                                    // Expr5
	{lexer.MUL: ast.OpMul, lexer.DIV: ast.OpDiv, lexer.MOD: ast.OpMod, lexer.POW: ast.OpPow, lexer.ROOT: ast.OpRoot}, // Expr4
}

func (p *Parser) parseExpr13() ast.Node { return p.parseBinLevel(0) }

func (p *Parser) parseBinLevel(level int) ast.Node {
	if level >= len(binLevels) {
		return p.parseUnaryPrefix()
	}
	left := p.parseBinLevel(level + 1)
	ops := binLevels[level]
	for {
		op, ok := ops[p.cur.Kind]
		if !ok {
			break
		}
		loc := p.cur.Loc
		p.next()
		right := p.parseBinLevel(level + 1)
		left = &ast.Expr{L: loc, Op: op, Lhs: left, Rhs: right}
	}
	return left
}

var prefixUnaryOps = map[lexer.Kind]ast.Op{
	lexer.INC:  ast.OpPreInc,
	lexer.DEC:  ast.OpPreDec,
	lexer.ADD:  ast.OpUnaryPlus,
	lexer.SUB:  ast.OpUnaryMinus,
	lexer.MUL:  ast.OpDeref,
	lexer.BAND: ast.OpAddrOf,
	lexer.LNOT: ast.OpLNot,
	lexer.BNOT: ast.OpBNot,
}

// parseUnaryPrefix parses Expr03: a run of prefix unary operators over
// Expr02. A prefix SUB or ADD applied directly to an integer or float
// literal folds into the literal's own sign instead of wrapping it in a
// unary-operator node (consecutive `-` prefixes collapse, per spec.md
// §4.2's literal-folding note).
func (p *Parser) parseUnaryPrefix() ast.Node {
	op, ok := prefixUnaryOps[p.cur.Kind]
	if !ok {
		return p.parsePostfix()
	}
	loc := p.cur.Loc
	p.next()
	operand := p.parseUnaryPrefix()

	if op == ast.OpUnaryMinus {
		if lit, isLit := operand.(*ast.Simple); isLit {
			switch lit.LitKind {
			case ast.LitInt:
				lit.Int = -lit.Int
				return lit
			case ast.LitFloat:
				lit.Flt = -lit.Flt
				return lit
			}
		}
	}
	if op == ast.OpUnaryPlus {
		if lit, isLit := operand.(*ast.Simple); isLit {
			switch lit.LitKind {
			case ast.LitInt, ast.LitFloat:
				return lit
			}
		}
	}
	return &ast.Expr{L: loc, Op: op, Operand: operand}
}

var postfixUnaryOps = map[lexer.Kind]ast.Op{
	lexer.INC:      ast.OpPostInc,
	lexer.DEC:      ast.OpPostDec,
	lexer.ELLIPSIS: ast.OpSpread,
}

// parsePostfix parses Expr02: `Expr01 [postfix_un]`.
func (p *Parser) parsePostfix() ast.Node {
	operand := p.parseExpr01()
	if op, ok := postfixUnaryOps[p.cur.Kind]; ok {
		loc := p.cur.Loc
		p.next()
		return &ast.Expr{L: loc, Op: op, Operand: operand}
	}
	return operand
}

// parseExpr01 parses `['@'] primary { suffix }`: an optional address-of
// sigil followed by a primary atom and a chain of subscript/call/
// struct-call/member suffixes.
func (p *Parser) parseExpr01() ast.Node {
	var atLoc *diag.Loc
	if p.at(lexer.AT) {
		loc := p.cur.Loc
		atLoc = &loc
		p.next()
	}
	n := p.parsePrimary()
	n = p.parseSuffixes(n)
	if atLoc != nil {
		n = &ast.Expr{L: *atLoc, Op: ast.OpAddrOf, Operand: n}
	}
	return n
}

func (p *Parser) parseSuffixes(n ast.Node) ast.Node {
	for {
		switch p.cur.Kind {
		case lexer.LBRACK:
			loc := p.cur.Loc
			p.next()
			idx := p.parseExpr16()
			p.expect(lexer.RBRACK)
			n = &ast.Expr{L: loc, Op: ast.OpSubscript, Lhs: n, Rhs: idx}
		case lexer.LPAREN:
			loc := p.cur.Loc
			args, names, spread := p.parseArgList(lexer.LPAREN, lexer.RPAREN)
			n = &ast.Expr{L: loc, Op: ast.OpCall, Lhs: n, Args: args, ArgNames: names, Spread: spread}
		case lexer.LBRACE:
			// A struct call is an identifier written flush against its
			// brace (`Point{x: 1}`); any other `{` after an expression, as
			// in `if x {` or `while i < n {`, opens the statement's block.
			if s, ok := n.(*ast.Simple); !ok || s.LitKind != ast.LitIden || s.L.End != p.cur.Loc.Begin {
				return n
			}
			loc := p.cur.Loc
			args, names, spread := p.parseArgList(lexer.LBRACE, lexer.RBRACE)
			n = &ast.Expr{L: loc, Op: ast.OpStructCall, Lhs: n, Args: args, ArgNames: names, Spread: spread}
		case lexer.DOT, lexer.ARROW:
			loc := p.cur.Loc
			p.next()
			name := p.expect(lexer.IDEN).Str
			n = &ast.Expr{L: loc, Op: ast.OpMember, Lhs: n, Name: name}
		default:
			return n
		}
	}
}

// parseArgList parses a parenthesized or brace-delimited comma-separated
// Expr16 argument list, recognizing a leading `name:` keyword-argument
// form and a trailing `...` spread marker per argument.
func (p *Parser) parseArgList(open, close lexer.Kind) (args []ast.Node, names []string, spread []bool) {
	p.expect(open)
	for !p.at(close) && !p.at(lexer.EOF) {
		name := ""
		if p.at(lexer.IDEN) && p.peekAt(lexer.COLON) {
			name = p.cur.Str
			p.next()
			p.next()
		}
		arg := p.parseExpr16()
		isSpread := false
		if p.at(lexer.ELLIPSIS) {
			isSpread = true
			p.next()
		} else if e, ok := arg.(*ast.Expr); ok && e.Op == ast.OpSpread {
			// parsePostfix already consumed the `...` as a postfix operator.
			isSpread = true
			arg = e.Operand
		}
		args = append(args, arg)
		names = append(names, name)
		spread = append(spread, isSpread)
		if p.at(lexer.COMMA) {
			p.next()
			continue
		}
		break
	}
	p.expect(close)
	return args, names, spread
}

// parsePrimary parses `IDEN | LITERAL | '(' Expr ')' | IDEN LITERAL |
// LITERAL IDEN`, the last two being the prefix/suffix literal sugar
// (`name"text"` and `1h`) that desugars into a call of the identifier over
// the literal. Narrowed to exactly those two token-adjacency shapes named
// by spec.md §4.2 rather than every IDEN/literal adjacency, to avoid
// misfiring on ordinary adjacent tokens the lexer's whitespace-blind
// output can't otherwise disambiguate (see DESIGN.md).
func (p *Parser) parsePrimary() ast.Node {
	switch p.cur.Kind {
	case lexer.FN:
		return p.parseFnDef()
	case lexer.LPAREN:
		p.next()
		inner := p.parseExpr()
		p.expect(lexer.RPAREN)
		return inner
	case lexer.IDEN:
		loc := p.cur.Loc
		name := p.cur.Str
		p.next()
		if p.at(lexer.STRING) || p.at(lexer.CHAR) {
			lit := p.parseLiteralOrIdent()
			return &ast.Expr{L: loc, Op: ast.OpCall, Lhs: &ast.Simple{L: loc, LitKind: ast.LitIden, Str: name}, Args: []ast.Node{lit}, ArgNames: []string{""}, Spread: []bool{false}}
		}
		return &ast.Simple{L: loc, LitKind: ast.LitIden, Str: name}
	case lexer.INT, lexer.FLOAT:
		lit := p.parseLiteralOrIdent()
		if p.at(lexer.IDEN) {
			loc := lit.Loc()
			name := p.cur.Str
			nameLoc := p.cur.Loc
			p.next()
			return &ast.Expr{L: loc, Op: ast.OpCall, Lhs: &ast.Simple{L: nameLoc, LitKind: ast.LitIden, Str: name}, Args: []ast.Node{lit}, ArgNames: []string{""}, Spread: []bool{false}}
		}
		return lit
	default:
		return p.parseLiteralOrIdent()
	}
}

// parseLiteralOrIdent parses a single literal token (INT/FLOAT/CHAR/
// STRING/TRUE/FALSE/NIL/VOID) or a bare identifier into an ast.Simple,
// reporting an error and advancing past unexpected tokens.
func (p *Parser) parseLiteralOrIdent() *ast.Simple {
	tok := p.cur
	loc := tok.Loc
	switch tok.Kind {
	case lexer.INT:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitInt, Int: tok.Int}
	case lexer.FLOAT:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitFloat, Flt: tok.Flt}
	case lexer.CHAR:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitChar, Int: tok.Int, Str: tok.Str}
	case lexer.STRING:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitString, Str: tok.Str}
	case lexer.IDEN:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitIden, Str: tok.Str}
	case lexer.TRUE:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitTrue}
	case lexer.FALSE:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitFalse}
	case lexer.NIL:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitNil}
	case lexer.VOID:
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitVoid}
	default:
		p.errorf("unexpected token %s in expression", tok.Kind)
		p.next()
		return &ast.Simple{L: loc, LitKind: ast.LitNil}
	}
}
