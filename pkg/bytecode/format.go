// Package bytecode: serialization and human-readable disassembly of
// compiled bytecode, the `.fbc` file format and the `--ir` dump.
//
// Binary Format Layout:
//
//   [Header]
//     Magic Number (4 bytes): "FERL" (0x4645524C)
//     Version (4 bytes): format version (currently 1)
//
//   [Instructions Section]
//     Count (4 bytes)
//     For each instruction:
//       Opcode (1 byte)
//       Data.Kind (1 byte)
//       Data (variable, per Kind): int64 | float64 | bool(1 byte) | string(4-byte length + bytes) | nothing
//       Loc.Module (2 bytes), Loc.Begin (8 bytes), Loc.End (8 bytes)
//
// Same header-then-section layout and binary.Write/Read style as a typical
// bytecode serializer, with an inline-operand instruction shape instead of a
// separate constant pool: functions and struct defs are ordinary Values
// created by opcodes at run time, not constant-pool entries.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/kristofer/feral/pkg/alloc"
	"github.com/kristofer/feral/pkg/diag"
)

// scratch serves the staging buffers readString copies each decoded
// string's bytes out of before converting them to a Go string; those
// buffers are flat runs of bytes with no lifetime beyond the copy, which is
// exactly what pkg/alloc's pool is for.
var scratch = alloc.New()

const (
	// MagicNumber is the file signature for .fbc files: "FERL"
	MagicNumber uint32 = 0x4645524C

	// FormatVersion is the current bytecode format version.
	FormatVersion uint32 = 1
)

// Encode serializes bc to w in the .fbc binary format.
func Encode(bc *Bytecode, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	count := uint32(len(bc.Instructions))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return fmt.Errorf("write instruction count: %w", err)
	}
	for i, instr := range bc.Instructions {
		if err := writeInstruction(w, instr); err != nil {
			return fmt.Errorf("write instruction %d: %w", i, err)
		}
	}
	return nil
}

// Decode reads a Bytecode previously written by Encode.
func Decode(r io.Reader) (*Bytecode, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("invalid magic number: 0x%08X (expected 0x%08X)", magic, MagicNumber)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported bytecode version: %d (expected %d)", version, FormatVersion)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read instruction count: %w", err)
	}
	instrs := make([]Instruction, count)
	for i := uint32(0); i < count; i++ {
		instr, err := readInstruction(r)
		if err != nil {
			return nil, fmt.Errorf("read instruction %d: %w", i, err)
		}
		instrs[i] = instr
	}
	return &Bytecode{Instructions: instrs}, nil
}

func writeInstruction(w io.Writer, instr Instruction) error {
	if err := binary.Write(w, binary.LittleEndian, byte(instr.Op)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byte(instr.Data.Kind)); err != nil {
		return err
	}
	switch instr.Data.Kind {
	case DataInt:
		if err := binary.Write(w, binary.LittleEndian, instr.Data.Int); err != nil {
			return err
		}
	case DataFlt:
		if err := binary.Write(w, binary.LittleEndian, instr.Data.Flt); err != nil {
			return err
		}
	case DataBool:
		var b byte
		if instr.Data.Bool {
			b = 1
		}
		if err := binary.Write(w, binary.LittleEndian, b); err != nil {
			return err
		}
	case DataStr, DataIden, DataChar:
		if err := writeString(w, instr.Data.Str); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(instr.Loc.Module)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, instr.Loc.Begin); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, instr.Loc.End)
}

func readInstruction(r io.Reader) (Instruction, error) {
	var op, kind byte
	if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
		return Instruction{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return Instruction{}, err
	}
	data := Data{Kind: DataKind(kind)}
	switch data.Kind {
	case DataInt:
		if err := binary.Read(r, binary.LittleEndian, &data.Int); err != nil {
			return Instruction{}, err
		}
	case DataFlt:
		if err := binary.Read(r, binary.LittleEndian, &data.Flt); err != nil {
			return Instruction{}, err
		}
	case DataBool:
		var b byte
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return Instruction{}, err
		}
		data.Bool = b != 0
	case DataStr, DataIden, DataChar:
		s, err := readString(r)
		if err != nil {
			return Instruction{}, err
		}
		data.Str = s
	}
	var module uint16
	var begin, end uint64
	if err := binary.Read(r, binary.LittleEndian, &module); err != nil {
		return Instruction{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &begin); err != nil {
		return Instruction{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &end); err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Op:   Opcode(op),
		Data: data,
		Loc:  diag.Loc{Module: diag.ModuleID(module), Begin: begin, End: end},
	}, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := scratch.Alloc(int(length))
	if _, err := io.ReadFull(r, buf); err != nil {
		scratch.Free(buf)
		return "", err
	}
	s := string(buf)
	scratch.Free(buf)
	return s, nil
}

// Disassemble renders bc in the textual dump format of spec.md §6.5: per
// instruction, left-aligned index, opcode mnemonic, bracketed data-type
// tag, value.
//
//	0     LOAD_DATA     [int]  42
//	1     CREATE        [str]  x
func Disassemble(bc *Bytecode) string {
	var b strings.Builder
	for i, instr := range bc.Instructions {
		fmt.Fprintf(&b, "%-5d %-13s %s\n", i, instr.Op.String(), dataTag(instr.Data))
	}
	return b.String()
}

func dataTag(d Data) string {
	switch d.Kind {
	case DataInt:
		return fmt.Sprintf("[int]  %d", d.Int)
	case DataFlt:
		return fmt.Sprintf("[flt]  %g", d.Flt)
	case DataBool:
		return fmt.Sprintf("[bool] %t", d.Bool)
	case DataStr:
		return fmt.Sprintf("[str]  %s", d.Str)
	case DataIden:
		return fmt.Sprintf("[iden] %s", d.Str)
	case DataChar:
		return fmt.Sprintf("[char] %s", d.Str)
	case DataNil:
		return "[nil]"
	default:
		return ""
	}
}
