// Package diag implements the source-location-aware error reporter
// (component B of spec.md). It renders diagnostics the way every stage of
// the pipeline — lexer, parser, simplifier, codegen, and the VM itself —
// reports failures: `path (line:col): Failure: <message>` followed by the
// offending source line and a caret under the column, or the same shape
// with `Warning:` for non-fatal diagnostics.
//
// This generalizes the teacher's pkg/vm/errors.go (RuntimeError +
// StackFrame + Error() string trace formatting) from "one VM's runtime
// trace" to "every stage's Loc-addressed diagnostic", and adds the
// error-kind taxonomy from spec.md §7.
package diag

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ModuleID identifies a module for Loc purposes. All-ones (InvalidModule)
// marks an invalid/synthetic location per spec.md §3.
type ModuleID uint16

// InvalidModule is the sentinel "no module" id.
const InvalidModule ModuleID = 0xFFFF

// Loc is a compact source location: a module id plus a byte-offset range
// into that module's source.
type Loc struct {
	Module ModuleID
	Begin  uint64
	End    uint64
}

// Invalid reports whether l refers to no real source position.
func (l Loc) Invalid() bool { return l.Module == InvalidModule }

// Kind enumerates the error taxonomy of spec.md §7.
type Kind int

const (
	IoError Kind = iota
	LexError
	ParseError
	SimplifyError
	CodegenError
	RuntimeTypeError
	RuntimeValueError
	ImportError
	ThreadError
	UserError
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case LexError:
		return "LexError"
	case ParseError:
		return "ParseError"
	case SimplifyError:
		return "SimplifyError"
	case CodegenError:
		return "CodegenError"
	case RuntimeTypeError:
		return "RuntimeTypeError"
	case RuntimeValueError:
		return "RuntimeValueError"
	case ImportError:
		return "ImportError"
	case ThreadError:
		return "ThreadError"
	case UserError:
		return "UserError"
	default:
		return "Error"
	}
}

// Severity distinguishes fatal diagnostics from warnings.
type Severity int

const (
	SeverityFailure Severity = iota
	SeverityWarning
)

// Diagnostic is one reported problem: a kind, a message, a location, a
// severity, and — for runtime errors unwound through nested calls — the
// accumulated trace of frames.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Loc      Loc
	Severity Severity
	Trace    []Loc // accumulated during unwinding, leaf-first
}

func (d *Diagnostic) Error() string { return d.Message }

// WithFrame returns a copy of d with loc appended to its trace. Used while
// unwinding the call stack so the reporter can print every frame.
func (d *Diagnostic) WithFrame(loc Loc) *Diagnostic {
	cp := *d
	cp.Trace = append(append([]Loc{}, d.Trace...), loc)
	return &cp
}

// Source holds one module's path and byte contents, enough to render a
// line/column and a caret snippet from a Loc.
type Source struct {
	Path string
	Code []byte
}

// Handler receives fully formatted diagnostics. The default handler prints
// to stdout or stderr (per -e/--logerr) with color when attached to a
// terminal; it may be replaced via Reporter.SetHandler, matching spec.md
// §7's "handler may be replaced with a user-supplied callable".
type Handler func(d *Diagnostic, rendered string)

// Reporter renders diagnostics against registered module sources.
type Reporter struct {
	sources map[ModuleID]*Source
	handler Handler
	toStderr bool
	noColor  bool
}

// New creates a reporter. By default failures go to stdout and warnings to
// stdout as well; call SetLogErr(true) to send everything to stderr
// (spec.md §6.1's -e/--logerr).
func New() *Reporter {
	r := &Reporter{sources: make(map[ModuleID]*Source)}
	r.handler = r.defaultHandler
	return r
}

// SetLogErr routes all reporter output to stderr instead of stdout.
func (r *Reporter) SetLogErr(v bool) { r.toStderr = v }

// SetNoColor forces plain-text rendering regardless of tty detection.
func (r *Reporter) SetNoColor(v bool) { r.noColor = v }

// SetHandler replaces the diagnostic handler.
func (r *Reporter) SetHandler(h Handler) { r.handler = h }

// RegisterSource associates source bytes and a path with a module id so
// later diagnostics against that module can render a line/column snippet.
func (r *Reporter) RegisterSource(id ModuleID, path string, code []byte) {
	r.sources[id] = &Source{Path: path, Code: code}
}

// Report formats and dispatches a diagnostic through the active handler.
func (r *Reporter) Report(d *Diagnostic) {
	r.handler(d, r.Render(d))
}

func (r *Reporter) defaultHandler(d *Diagnostic, rendered string) {
	out := os.Stdout
	if r.toStderr {
		out = os.Stderr
	}
	fmt.Fprintln(out, rendered)
}

// lineCol converts a byte offset in code to a 1-based (line, column).
func lineCol(code []byte, offset uint64) (line, col int) {
	line, col = 1, 1
	for i := uint64(0); i < offset && int(i) < len(code); i++ {
		if code[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

// sourceLine returns the full text of the line containing offset.
func sourceLine(code []byte, offset uint64) string {
	if int(offset) > len(code) {
		offset = uint64(len(code))
	}
	start := int(offset)
	for start > 0 && code[start-1] != '\n' {
		start--
	}
	end := int(offset)
	for end < len(code) && code[end] != '\n' {
		end++
	}
	return string(code[start:end])
}

// Render produces the full text of a diagnostic: header line, source
// snippet, and caret, followed by any accumulated trace frames.
//
// Shape (spec.md §7): `path (line:col): Failure: <message>` or
// `... Warning: ...`, then the source line, then a caret under the column.
func (r *Reporter) Render(d *Diagnostic) string {
	label := "Failure"
	colorFn := color.New(color.FgRed, color.Bold).SprintFunc()
	if d.Severity == SeverityWarning {
		label = "Warning"
		colorFn = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	useColor := !r.noColor && isatty.IsTerminal(os.Stdout.Fd())

	var b strings.Builder
	src, haveSrc := r.sources[d.Loc.Module]
	path := "<unknown>"
	line, col := 0, 0
	if haveSrc {
		path = src.Path
		line, col = lineCol(src.Code, d.Loc.Begin)
	}

	header := fmt.Sprintf("%s (%d:%d): %s: %s", path, line, col, label, d.Message)
	if useColor {
		header = fmt.Sprintf("%s (%d:%d): %s: %s", path, line, col, colorFn(label), d.Message)
	}
	b.WriteString(header)

	if haveSrc && line > 0 {
		text := sourceLine(src.Code, d.Loc.Begin)
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n")
		if col > 0 {
			b.WriteString(strings.Repeat(" ", col-1))
		}
		b.WriteString("^")
	}

	for i := len(d.Trace) - 1; i >= 0; i-- {
		frame := d.Trace[i]
		fpath := "<unknown>"
		fline, fcol := 0, 0
		if fs, ok := r.sources[frame.Module]; ok {
			fpath = fs.Path
			fline, fcol = lineCol(fs.Code, frame.Begin)
		}
		b.WriteString(fmt.Sprintf("\n  at %s (%d:%d)", fpath, fline, fcol))
	}

	return b.String()
}

// Errorf constructs a failure diagnostic of the given kind.
func Errorf(kind Kind, loc Loc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

// Warningf constructs a warning diagnostic.
func Warningf(loc Loc, format string, args ...interface{}) *Diagnostic {
	d := Errorf(UserError, loc, format, args...)
	d.Severity = SeverityWarning
	return d
}
