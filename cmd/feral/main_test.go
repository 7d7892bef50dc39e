package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kristofer/feral/pkg/bytecode"
)

func writeProgram(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestRunFileDryRunSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "a.fer", `let x = 1 + 2;`)

	if err := runFile(path, nil, runOpts{dry: true}); err != nil {
		t.Fatalf("runFile(dry): %v", err)
	}
}

func TestRunFileLexStopsBeforeCompile(t *testing.T) {
	dir := t.TempDir()
	// Deliberately invalid syntax: if -l truly stops at the lexer, this
	// still succeeds since lexing never validates grammar.
	path := writeProgram(t, dir, "a.fer", `let let let`)

	if err := runFile(path, nil, runOpts{lex: true}); err != nil {
		t.Fatalf("runFile(lex): %v", err)
	}
}

func TestRunFileExecutesProgram(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "a.fer", `let x = 1; assert(x == 1);`)

	if err := runFile(path, nil, runOpts{}); err != nil {
		t.Fatalf("runFile: %v", err)
	}
}

func TestRunFileBindsProgramArgs(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "a.fer", `assert(args[0] == "hello");`)

	if err := runFile(path, []string{"hello"}, runOpts{}); err != nil {
		t.Fatalf("runFile with program args: %v", err)
	}
}

func TestRunFileReportsRuntimeFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "a.fer", `assert(1 == 2);`)

	if err := runFile(path, nil, runOpts{}); err == nil {
		t.Fatalf("expected a failing assert to surface as an error")
	}
}

func TestDataTagAndValue(t *testing.T) {
	tag, val := dataTagAndValue(bytecode.Data{Kind: bytecode.DataInt, Int: 42})
	if tag != "int" || val != "42" {
		t.Fatalf("expected (int, 42), got (%s, %s)", tag, val)
	}

	tag, val = dataTagAndValue(bytecode.Data{Kind: bytecode.DataStr, Str: "hi"})
	if tag != "str" || val != "hi" {
		t.Fatalf("expected (str, hi), got (%s, %s)", tag, val)
	}

	tag, _ = dataTagAndValue(bytecode.Data{Kind: bytecode.DataNil})
	if tag != "nil" {
		t.Fatalf("expected nil tag, got %s", tag)
	}
}
