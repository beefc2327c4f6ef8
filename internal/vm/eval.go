package vm

import (
	"github.com/chazu/knight/internal/ir"
	"github.com/chazu/knight/internal/lexer"
	"github.com/chazu/knight/internal/parser"
)

// execEval lexes, parses, and links the argument string on a cache
// miss, splices the result onto the live bytecode, and pushes a frame
// into it exactly like CALL would. The cache is keyed by source text and
// never evicted — the underlying bytecode only ever grows.
func (m *VM) execEval(ip int) (newIP int, err error) {
	arg, err := m.load(m.arg(ip, 1))
	if err != nil {
		return 0, err
	}
	src := arg.ToString().String()
	result := m.arg(ip, 0)
	returnAddr := ip + 1 + ir.Eval.OperandCount()

	entry, cached := m.evalCache[src]
	if !cached {
		toks, err := lexer.Tokenize(src)
		if err != nil {
			return 0, err
		}
		blocks, err := parser.Parse(toks, m.env)
		if err != nil {
			return 0, err
		}
		entry, err = m.lk.Link(blocks)
		if err != nil {
			return 0, err
		}
		m.evalCache[src] = entry
	}

	n, err := m.blockParamCount(entry)
	if err != nil {
		return 0, err
	}
	m.env.PushFrame(returnAddr, result, n)

	if m.hist != nil {
		m.evalSeq++
		m.hist.RecordEval(m.evalSeq, src, entry, cached)
	}

	return entry, nil
}
