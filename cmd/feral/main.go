// Command feral is the runtime's CLI entry point: `feral [options] <file>
// [program-args...]` (spec.md §6.1), plus an interactive REPL when no
// file is given.
//
// This replaces the teacher's hand-rolled os.Args[1] switch
// (cmd/smog/main.go's runFile/runREPL/compileFile/disassembleFile) with
// github.com/urfave/cli/v2's flag parsing, generalized to feral's flag
// set and module pipeline; the REPL keeps the teacher's persistent-VM,
// line-buffered shape but reads lines through github.com/peterh/liner
// instead of a raw bufio.Scanner, for history and basic editing.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/kristofer/feral/pkg/bytecode"
	"github.com/kristofer/feral/pkg/compiler"
	"github.com/kristofer/feral/pkg/diag"
	"github.com/kristofer/feral/pkg/lexer"
	"github.com/kristofer/feral/pkg/module"
	"github.com/kristofer/feral/pkg/parser"
	"github.com/kristofer/feral/pkg/prelude"
	"github.com/kristofer/feral/pkg/simplify"
	"github.com/kristofer/feral/pkg/value"
	"github.com/kristofer/feral/pkg/vm"
)

const version = "0.1.0"

// runOpts collects the flags of spec.md §6.1 that change what a run does
// short of full execution.
type runOpts struct {
	lex      bool
	parse    bool
	optparse bool
	ir       bool
	dry      bool
	logerr   bool
	verbose  bool
	trace    bool
}

func main() {
	app := &cli.App{
		Name:                 "feral",
		Usage:                "run a feral program",
		Version:              version,
		UsageText:            "feral [options] <file> [program-args...]",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "lex", Aliases: []string{"l"}, Usage: "dump tokens and stop"},
			&cli.BoolFlag{Name: "parse", Aliases: []string{"p"}, Usage: "dump AST and stop"},
			&cli.BoolFlag{Name: "optparse", Aliases: []string{"P"}, Usage: "dump simplified AST and stop"},
			&cli.BoolFlag{Name: "ir", Aliases: []string{"i"}, Usage: "dump generated bytecode"},
			&cli.BoolFlag{Name: "dry", Aliases: []string{"d"}, Usage: "compile only; skip execution"},
			&cli.BoolFlag{Name: "logerr", Aliases: []string{"e"}, Usage: "send logs to stderr"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "raise log level"},
			&cli.BoolFlag{Name: "trace", Aliases: []string{"T"}, Usage: "raise log level further, to debug"},
		},
		Action: func(c *cli.Context) error {
			args := c.Args().Slice()
			if len(args) == 0 {
				runREPL()
				return nil
			}
			opts := runOpts{
				lex:      c.Bool("lex"),
				parse:    c.Bool("parse"),
				optparse: c.Bool("optparse"),
				ir:       c.Bool("ir"),
				dry:      c.Bool("dry"),
				logerr:   c.Bool("logerr"),
				verbose:  c.Bool("verbose"),
				trace:    c.Bool("trace"),
			}
			return runFile(args[0], args[1:], opts)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(opts runOpts) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case opts.trace:
		level = slog.LevelDebug
	case opts.verbose:
		level = slog.LevelInfo
	}
	out := os.Stdout
	if opts.logerr {
		out = os.Stderr
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// runFile lexes, parses, simplifies, and compiles path, honoring the
// dump-and-stop flags of spec.md §6.1 in pipeline order, then (absent
// -d/--dry) runs it to completion with the prelude loaded and
// program-args bound.
func runFile(path string, programArgs []string, opts runOpts) error {
	logger := newLogger(opts)

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	reporter := diag.New()
	reporter.SetLogErr(opts.logerr)
	reporter.RegisterSource(0, path, src)

	l := lexer.New(0, path, string(src), reporter)
	if opts.lex {
		dumpTokens(l.Lex())
		return nil
	}

	p := parser.New(0, lexer.New(0, path, string(src), reporter), reporter)
	blk := p.Parse()
	if errs := p.Errors(); len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("parse failed: %d error(s)", len(errs))
	}
	if opts.parse {
		spew.Dump(blk)
		return nil
	}

	simplified := simplify.Simplify(blk)
	if opts.optparse {
		spew.Dump(simplified)
		return nil
	}

	bc, err := compiler.New(0).Compile(simplified)
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}
	if opts.ir {
		dumpBytecode(bc)
	}
	if opts.dry {
		return nil
	}

	m := vm.New(&bytecode.Bytecode{})
	logger.Debug("vm instance", "id", m.InstanceID.String())
	if err := prelude.Load(m); err != nil {
		return fmt.Errorf("loading prelude: %w", err)
	}

	reg, err := module.New(m, 128)
	if err != nil {
		return fmt.Errorf("creating module registry: %w", err)
	}

	argVals := make([]value.Value, len(programArgs))
	for i, a := range programArgs {
		argVals[i] = value.NewStr(a)
	}
	m.Globals["args"] = value.NewVec(argVals)

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, err := reg.LoadPath(abs); err != nil {
		return fmt.Errorf("running %s: %w", path, err)
	}
	return nil
}

// dumpTokens renders l's lexemes as a table, per SPEC_FULL.md's wiring of
// tablewriter to -l/--lex.
func dumpTokens(toks []lexer.Lexeme) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "kind", "text"})
	for i, t := range toks {
		table.Append([]string{fmt.Sprintf("%d", i), t.Kind.String(), t.Str})
	}
	table.Render()
}

// dumpBytecode renders bc in the textual format of spec.md §6.5: index,
// opcode mnemonic, bracketed data-type tag, value.
func dumpBytecode(bc *bytecode.Bytecode) {
	for i, in := range bc.Instructions {
		tag, val := dataTagAndValue(in.Data)
		fmt.Printf("%-5d %-14s [%-4s] %s\n", i, in.Op, tag, val)
	}
}

func dataTagAndValue(d bytecode.Data) (tag, val string) {
	switch d.Kind {
	case bytecode.DataInt:
		return "int", fmt.Sprintf("%d", d.Int)
	case bytecode.DataFlt:
		return "flt", fmt.Sprintf("%g", d.Flt)
	case bytecode.DataBool:
		return "bool", fmt.Sprintf("%t", d.Bool)
	case bytecode.DataStr:
		return "str", d.Str
	case bytecode.DataIden:
		return "iden", d.Str
	case bytecode.DataChar:
		return "char", d.Str
	case bytecode.DataNil:
		return "nil", ""
	default:
		return "", ""
	}
}

// runREPL starts an interactive session over a persistent VM and module
// registry so declarations from one line remain visible to the next,
// matching the teacher's runREPL shape (persistent VM/compiler across
// evaluations) but reading lines through liner instead of bufio.Scanner.
func runREPL() {
	fmt.Printf("feral %s\n", version)
	fmt.Println("Type ':help' for help, ':quit' or ':exit' to exit")
	fmt.Println()

	m := vm.New(&bytecode.Bytecode{})
	if err := prelude.Load(m); err != nil {
		fmt.Fprintf(os.Stderr, "loading prelude: %v\n", err)
		os.Exit(1)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	var buf strings.Builder
	for {
		prompt := "feral> "
		if buf.Len() > 0 {
			prompt = "  ...> "
		}
		text, err := line.Prompt(prompt)
		if err != nil {
			fmt.Println()
			return
		}
		line.AppendHistory(text)

		if buf.Len() == 0 {
			switch strings.TrimSpace(text) {
			case ":quit", ":exit":
				return
			case ":help":
				printREPLHelp()
				continue
			case "":
				continue
			}
		}

		buf.WriteString(text)
		buf.WriteString("\n")

		input := strings.TrimSpace(buf.String())
		if !strings.HasSuffix(input, ";") && !strings.HasSuffix(input, "}") {
			continue
		}
		buf.Reset()

		evalREPLLine(m, input)
	}
}

func evalREPLLine(m *vm.VM, src string) {
	l := lexer.New(0, "<repl>", src, nil)
	p := parser.New(0, l, nil)
	blk := p.Parse()
	if errs := p.Errors(); len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return
	}
	blk = simplify.Simplify(blk)
	bc, err := compiler.New(0).Compile(blk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
		return
	}
	if err := m.LoadModule(bc); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
	}
}

func printREPLHelp() {
	fmt.Println("  :help          show this help")
	fmt.Println("  :quit, :exit   leave the REPL")
	fmt.Println("  otherwise, enter a feral statement terminated by ';' or '}'")
}
