package link

import (
	"testing"

	"github.com/chazu/knight/internal/env"
	"github.com/chazu/knight/internal/ir"
	"github.com/chazu/knight/internal/lexer"
	"github.com/chazu/knight/internal/parser"
)

func linkSource(t *testing.T, src string) (*Linker, int) {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	blocks, err := parser.Parse(toks, env.New())
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	lk := New()
	entry, err := lk.Link(blocks)
	if err != nil {
		t.Fatalf("Link(%q): %v", src, err)
	}
	return lk, entry
}

func TestLinkEntryPrecededByBlockData(t *testing.T) {
	lk, entry := linkSource(t, "OUTPUT 1")
	if entry < 1 {
		t.Fatalf("entry = %d, want >= 1 (room for a preceding BlockData cell)", entry)
	}
	pre := lk.Code[entry-1]
	if pre.IsOp {
		t.Fatalf("code[entry-1] is an opcode cell, want a BlockData operand cell: %+v", pre)
	}
}

func TestLinkStripsLabelMarkers(t *testing.T) {
	lk, _ := linkSource(t, "W 1 (OUTPUT 1)")
	for _, cp := range lk.Code {
		if cp.IsOp && cp.Op == ir.LabelOp {
			t.Fatalf("flattened code still contains a LabelOp cell: %+v", lk.Code)
		}
	}
}

func TestLinkResolvesForwardJumpTargets(t *testing.T) {
	lk, _ := linkSource(t, "I 1 (OUTPUT 1) (OUTPUT 2)")
	for i, cp := range lk.Code {
		if !cp.IsOp && cp.Label.Cat == ir.JumpTarget {
			if cp.Label.Id < 0 || cp.Label.Id >= len(lk.Code) {
				t.Fatalf("jump target at cell %d resolved out of range: %d", i, cp.Label.Id)
			}
		}
	}
}

func TestLinkAppendsSubsequentFragmentsAfterExistingCode(t *testing.T) {
	lk, _ := linkSource(t, "OUTPUT 1")
	priorLen := len(lk.Code)

	toks, err := lexer.Tokenize("OUTPUT 2")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	blocks, err := parser.Parse(toks, env.New())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	entry2, err := lk.Link(blocks)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if entry2 < priorLen {
		t.Fatalf("second fragment's entry %d overlaps the first fragment (len %d)", entry2, priorLen)
	}
	if len(lk.Positions) != len(lk.Code) {
		t.Fatalf("Positions (%d) and Code (%d) length mismatch", len(lk.Positions), len(lk.Code))
	}
}
