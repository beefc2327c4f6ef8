package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/knight/internal/env"
	"github.com/chazu/knight/internal/knerr"
	"github.com/chazu/knight/internal/lexer"
	"github.com/chazu/knight/internal/link"
	"github.com/chazu/knight/internal/parser"
)

// runProgram lexes, parses, links, and runs src against a fresh
// Environment, capturing everything written to stdout.
func runProgram(t *testing.T, src, stdin string) (stdout string, exitCode int, err error) {
	t.Helper()
	toks, lexErr := lexer.Tokenize(src)
	if lexErr != nil {
		return "", 0, lexErr
	}
	e := env.New()
	blocks, parseErr := parser.Parse(toks, e)
	if parseErr != nil {
		return "", 0, parseErr
	}
	lk := link.New()
	entry, linkErr := lk.Link(blocks)
	if linkErr != nil {
		return "", 0, linkErr
	}
	var out bytes.Buffer
	m := New(lk, e, Options{Stdin: strings.NewReader(stdin), Stdout: &out})
	code, runErr := m.Run(entry)
	return out.String(), code, runErr
}

func TestOutputBasic(t *testing.T) {
	out, code, err := runProgram(t, "O 1", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "1\n" || code != 0 {
		t.Fatalf("got (%q, %d), want (\"1\\n\", 0)", out, code)
	}
}

func TestOutputTrailingBackslashSuppressesNewline(t *testing.T) {
	out, _, err := runProgram(t, `O "no newline\"`, "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "no newline" {
		t.Fatalf("got %q, want %q", out, "no newline")
	}
}

func TestVariableAssignThenReadRoundTrips(t *testing.T) {
	out, _, err := runProgram(t, "O ; = v 3 v", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "3\n" {
		t.Fatalf("got %q, want %q", out, "3\n")
	}
}

func TestAndShortCircuitsTheRHS(t *testing.T) {
	out, _, err := runProgram(t, "; = x 1 ; & F (= x 2) O x", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "1\n" {
		t.Fatalf("AND evaluated its RHS despite a falsy LHS: got %q, want %q", out, "1\n")
	}
}

func TestOrShortCircuitsTheRHS(t *testing.T) {
	out, _, err := runProgram(t, "; = x 1 ; | T (= x 2) O x", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "1\n" {
		t.Fatalf("OR evaluated its RHS despite a truthy LHS: got %q, want %q", out, "1\n")
	}
}

// The argument-caching rule: in `+ x (= x 2)`, x's pre-assignment value
// must be read before the RHS's side effect runs.
func TestArgumentEvaluationOrderSurvivesMutation(t *testing.T) {
	out, _, err := runProgram(t, "; = x 1 O + x (= x 2)", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "3\n" {
		t.Fatalf("got %q, want %q (lhs should see x's value before the rhs assignment)", out, "3\n")
	}
}

func TestBlockBodyNotExecutedUntilCalled(t *testing.T) {
	_, _, err := runProgram(t, "; B (= z 1) O z", "")
	kerr, ok := err.(*knerr.Error)
	if !ok || kerr.Cat != knerr.Undefined {
		t.Fatalf("expected an Undefined error (z never assigned, since the block was never called), got %v", err)
	}
}

func TestCallExecutesTheBlockExactlyOnce(t *testing.T) {
	out, _, err := runProgram(t, "; = n 0 ; = blk B(= n (+ n 1)) ; C blk O n", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "1\n" {
		t.Fatalf("got %q, want %q (one CALL should run the block body exactly once)", out, "1\n")
	}
}

func TestEvalCompilesAndRunsASourceString(t *testing.T) {
	out, _, err := runProgram(t, "O E '+ 1 2'", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "3\n" {
		t.Fatalf("got %q, want %q", out, "3\n")
	}
}

func TestGetExtractsASubstring(t *testing.T) {
	out, _, err := runProgram(t, `O G "hello world" 6 5`, "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "world\n" {
		t.Fatalf("got %q, want %q", out, "world\n")
	}
}

func TestGetOutOfBoundsIsATypeError(t *testing.T) {
	_, _, err := runProgram(t, `O G "hi" 0 5`, "")
	kerr, ok := err.(*knerr.Error)
	if !ok || kerr.Cat != knerr.Type {
		t.Fatalf("expected a Type error for out-of-bounds GET, got %v", err)
	}
}

func TestDivideByZeroIsARuntimeUndefinedError(t *testing.T) {
	_, _, err := runProgram(t, "O / 1 0", "")
	kerr, ok := err.(*knerr.Error)
	if !ok || kerr.Cat != knerr.Undefined {
		t.Fatalf("expected an Undefined error for division by zero, got %v", err)
	}
}

func TestQuitSetsTheProcessExitCode(t *testing.T) {
	_, code, err := runProgram(t, "Q 7", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
}

func TestPromptReadsOneLineFromStdin(t *testing.T) {
	out, _, err := runProgram(t, "O P", "hello\nignored\n")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "hello\n" {
		t.Fatalf("got %q, want %q", out, "hello\n")
	}
}

func TestWhileLoopsUntilConditionIsFalse(t *testing.T) {
	out, _, err := runProgram(t, "; = i 0 W (< i 3) ; O i (= i (+ i 1))", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "0\n1\n2\n" {
		t.Fatalf("got %q, want %q", out, "0\n1\n2\n")
	}
}

func TestIfSelectsOneBranch(t *testing.T) {
	out, _, err := runProgram(t, "O I T 1 2", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "1\n" {
		t.Fatalf("got %q, want %q", out, "1\n")
	}

	out, _, err = runProgram(t, "O I F 1 2", "")
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out != "2\n" {
		t.Fatalf("got %q, want %q", out, "2\n")
	}
}
