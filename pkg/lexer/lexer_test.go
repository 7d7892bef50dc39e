package lexer

import (
	"testing"

	"github.com/kristofer/feral/pkg/diag"
)

func lexAll(t *testing.T, src string) []Lexeme {
	t.Helper()
	l := New(0, "<test>", src, nil)
	toks := l.Lex()
	if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
		t.Fatalf("lex(%q) did not terminate with EOF: %+v", src, toks)
	}
	return toks[:len(toks)-1]
}

func kinds(toks []Lexeme) []Kind {
	out := make([]Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func assertKinds(t *testing.T, src string, want ...Kind) {
	t.Helper()
	toks := lexAll(t, src)
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("lex(%q) = %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lex(%q)[%d] = %v, want %v", src, i, got[i], want[i])
		}
	}
}

func TestKeywords(t *testing.T) {
	assertKinds(t, "let fn if elif else for in while return continue break void true false nil or const defer inline",
		LET, FN, IF, ELIF, ELSE, FOR, IN, WHILE, RETURN, CONTINUE, BREAK, VOID, TRUE, FALSE, NIL, OR, CONST, DEFER, INLINE)
}

func TestIdentifiers(t *testing.T) {
	toks := lexAll(t, "foo bar_baz x1 optional?")
	if len(toks) != 4 {
		t.Fatalf("want 4 idents, got %d: %+v", len(toks), toks)
	}
	for _, tok := range toks {
		if tok.Kind != IDEN {
			t.Fatalf("expected IDEN, got %v", tok.Kind)
		}
	}
	if toks[3].Str != "optional?" {
		t.Fatalf("want trailing ? folded into identifier, got %q", toks[3].Str)
	}
}

func TestIntLiterals(t *testing.T) {
	cases := []struct {
		src  string
		want int64
	}{
		{"0", 0},
		{"42", 42},
		{"0x2A", 42},
		{"0b101010", 42},
		{"052", 42}, // octal
	}
	for _, c := range cases {
		toks := lexAll(t, c.src)
		if len(toks) != 1 || toks[0].Kind != INT {
			t.Fatalf("lex(%q): want single INT, got %+v", c.src, toks)
		}
		if toks[0].Int != c.want {
			t.Fatalf("lex(%q).Int = %d, want %d", c.src, toks[0].Int, c.want)
		}
	}
}

func TestFloatLiterals(t *testing.T) {
	toks := lexAll(t, "3.14")
	if len(toks) != 1 || toks[0].Kind != FLOAT {
		t.Fatalf("want single FLOAT, got %+v", toks)
	}
	if toks[0].Flt < 3.139 || toks[0].Flt > 3.141 {
		t.Fatalf("Flt = %v, want ~3.14", toks[0].Flt)
	}
}

func TestStringLiteral(t *testing.T) {
	toks := lexAll(t, `"hello world"`)
	if len(toks) != 1 || toks[0].Kind != STRING {
		t.Fatalf("want single STRING, got %+v", toks)
	}
	if toks[0].Str != "hello world" {
		t.Fatalf("Str = %q", toks[0].Str)
	}
}

func TestStringEscapedQuoteNotTerminator(t *testing.T) {
	toks := lexAll(t, `"a\"b"`)
	if len(toks) != 1 || toks[0].Kind != STRING {
		t.Fatalf("want single STRING spanning the escaped quote, got %+v", toks)
	}
	if toks[0].Str != `a\"b` {
		t.Fatalf("Str = %q", toks[0].Str)
	}
}

func TestCharLiteral(t *testing.T) {
	toks := lexAll(t, `'a'`)
	if len(toks) != 1 || toks[0].Kind != CHAR {
		t.Fatalf("want single CHAR, got %+v", toks)
	}
	if toks[0].Int != int64('a') {
		t.Fatalf("Int = %d, want %d", toks[0].Int, 'a')
	}
}

func TestStringAtom(t *testing.T) {
	toks := lexAll(t, ".foo")
	if len(toks) != 1 || toks[0].Kind != STRING || toks[0].Str != "foo" {
		t.Fatalf("want STRING(foo), got %+v", toks)
	}
}

func TestOperators(t *testing.T) {
	assertKinds(t, "+ - * / % ** // == != < > <= >= && || ! & | ^ ~ << >> ?? ++ -- ...",
		ADD, SUB, MUL, DIV, MOD, POW, ROOT, EQ, NE, LT, GT, LE, GE, LAND, LOR, LNOT,
		BAND, BOR, BXOR, BNOT, LSHIFT, RSHIFT, NIL_COALESCE, INC, DEC, ELLIPSIS)
}

func TestAssignmentOperators(t *testing.T) {
	assertKinds(t, "= += -= *= /= %= &= |= ~= ^= <<= >>= ??=",
		ASSN, ADD_ASSN, SUB_ASSN, MUL_ASSN, DIV_ASSN, MOD_ASSN, BAND_ASSN, BOR_ASSN,
		BNOT_ASSN, BXOR_ASSN, LSHIFT_ASSN, RSHIFT_ASSN, NIL_COALESCE_ASSN)
}

func TestSeparators(t *testing.T) {
	assertKinds(t, ". -> [ ] ( ) { } , ; : ? @",
		DOT, ARROW, LBRACK, RBRACK, LPAREN, RPAREN, LBRACE, RBRACE, COMMA, SEMICOLON, COLON, QUESTION, AT)
}

func TestLineComment(t *testing.T) {
	assertKinds(t, "1 # this is a comment\n2", INT, INT)
}

func TestNestedBlockComment(t *testing.T) {
	assertKinds(t, "1 /* outer /* inner */ still outer */ 2", INT, INT)
}

func TestUnterminatedStringReportsAndStops(t *testing.T) {
	l := New(0, "<test>", `"unterminated`, nil)
	toks := l.Lex()
	last := toks[len(toks)-1]
	if last.Kind != ILLEGAL {
		t.Fatalf("want ILLEGAL at eof, got %v", last.Kind)
	}
}

func TestMagicSrcPath(t *testing.T) {
	l := New(0, "/tmp/prog.fer", "__SRC_PATH__", nil)
	toks := l.Lex()
	if toks[0].Kind != STRING || toks[0].Str != "/tmp/prog.fer" {
		t.Fatalf("want STRING(/tmp/prog.fer), got %+v", toks[0])
	}
}

func TestMagicSrcDir(t *testing.T) {
	l := New(0, "/tmp/sub/prog.fer", "__SRC_DIR__", nil)
	toks := l.Lex()
	if toks[0].Kind != STRING || toks[0].Str != "/tmp/sub" {
		t.Fatalf("want STRING(/tmp/sub), got %+v", toks[0])
	}
}

func TestLocTracksModule(t *testing.T) {
	l := New(diag.ModuleID(3), "<test>", "1", nil)
	toks := l.Lex()
	if toks[0].Loc.Module != 3 {
		t.Fatalf("Loc.Module = %d, want 3", toks[0].Loc.Module)
	}
}
