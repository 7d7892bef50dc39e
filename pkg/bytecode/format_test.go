package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kristofer/feral/pkg/diag"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &Bytecode{
		Instructions: []Instruction{
			{Op: OpLoadData, Data: Data{Kind: DataInt, Int: 42}, Loc: diag.Loc{Module: 1, Begin: 0, End: 2}},
			{Op: OpCreate, Data: Data{Kind: DataStr, Str: "x"}, Loc: diag.Loc{Module: 1, Begin: 3, End: 4}},
			{Op: OpLoadData, Data: Data{Kind: DataIden, Str: "x"}},
			{Op: OpReturn, Data: Data{Kind: DataBool, Bool: true}},
		},
	}

	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(decoded.Instructions) != len(original.Instructions) {
		t.Fatalf("instruction count mismatch: got %d, want %d", len(decoded.Instructions), len(original.Instructions))
	}
	for i, instr := range decoded.Instructions {
		want := original.Instructions[i]
		if instr.Op != want.Op || instr.Data != want.Data || instr.Loc != want.Loc {
			t.Errorf("instruction %d mismatch: got %+v, want %+v", i, instr, want)
		}
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0})
	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected error for invalid magic number")
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{
		byte(MagicNumber), byte(MagicNumber >> 8), byte(MagicNumber >> 16), byte(MagicNumber >> 24),
		99, 0, 0, 0,
	})
	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestEmptyBytecodeRoundTrip(t *testing.T) {
	original := &Bytecode{}
	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Instructions) != 0 {
		t.Errorf("want 0 instructions, got %d", len(decoded.Instructions))
	}
}

func TestDisassembleFormat(t *testing.T) {
	bc := &Bytecode{
		Instructions: []Instruction{
			{Op: OpLoadData, Data: Data{Kind: DataInt, Int: 42}},
			{Op: OpCreate, Data: Data{Kind: DataStr, Str: "x"}},
			{Op: OpLoadData, Data: Data{Kind: DataIden, Str: "x"}},
			{Op: OpReturn, Data: Data{Kind: DataBool, Bool: true}},
		},
	}
	out := Disassemble(bc)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("want 4 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "LOAD_DATA") || !strings.Contains(lines[0], "[int]") || !strings.Contains(lines[0], "42") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[0], "0 ") {
		t.Errorf("line 0 missing leading index: %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "3 ") {
		t.Errorf("line 3 missing leading index: %q", lines[3])
	}
}

func TestUnicodeStringOperand(t *testing.T) {
	original := &Bytecode{
		Instructions: []Instruction{
			{Op: OpLoadData, Data: Data{Kind: DataStr, Str: "Hello, 世界 🎉"}},
		},
	}
	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Instructions[0].Data.Str != "Hello, 世界 🎉" {
		t.Errorf("got %q", decoded.Instructions[0].Data.Str)
	}
}
