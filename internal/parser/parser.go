// Package parser implements a single forward sweep over the lexer's
// token stream: an explicit stack of partially-built AST frames, each
// frame accumulating its fixed arity of already-emitted children before
// folding into an Operation sequence and feeding its own result up to
// its parent frame.
//
// There is no recursive-descent call tree and no intermediate AST nodes
// outlive a single frame's lifetime — each frame is discarded the moment
// its emitter runs, which is what lets Parse run over an arbitrarily deep
// expression without growing the Go call stack.
package parser

import (
	"github.com/chazu/knight/internal/env"
	"github.com/chazu/knight/internal/ir"
	"github.com/chazu/knight/internal/knerr"
	"github.com/chazu/knight/internal/lexer"
)

// Emitted is a fully-built sub-expression: the instructions needed to
// compute it, and the label its value ends up in.
type Emitted struct {
	Instructions []ir.Operation
	Result       ir.Label
}

type funcDef struct {
	arity int
	kind  string
}

var funcTable = map[string]funcDef{
	"T": {0, "true"}, "F": {0, "false"}, "N": {0, "null"},
	"P": {0, "prompt"}, "R": {0, "random"},

	"E": {1, "eval"}, "B": {1, "block"}, "C": {1, "call"}, "`": {1, "shell"},
	"Q": {1, "quit"}, "!": {1, "negate"}, "L": {1, "length"},
	"D": {1, "dump"}, "O": {1, "output"},

	"+": {2, "plus"}, "-": {2, "minus"}, "*": {2, "mul"}, "/": {2, "div"},
	"%": {2, "mod"}, "^": {2, "pow"}, "<": {2, "lt"}, ">": {2, "gt"},
	"?": {2, "eq"}, "|": {2, "or"}, "&": {2, "and"}, ";": {2, "seq"},
	"=": {2, "assign"}, "W": {2, "while"},

	"I": {3, "if"}, "G": {3, "get"},

	"S": {4, "substitute"},
}

var binOp = map[string]ir.Opcode{
	"plus": ir.Plus, "minus": ir.Minus, "mul": ir.Multiplies, "div": ir.Divides,
	"mod": ir.Modulus, "pow": ir.Exponent, "lt": ir.Less, "gt": ir.Greater, "eq": ir.Equals,
}

var unaryOp = map[string]ir.Opcode{
	"eval": ir.Eval, "call": ir.Call, "shell": ir.Shell, "negate": ir.Negate, "length": ir.Length,
}

var statementOp = map[string]ir.Opcode{
	"quit": ir.Quit, "dump": ir.Dump, "output": ir.Output,
}

// frame is one open AST node awaiting its remaining children.
type frame struct {
	kind     string
	pos      knerr.Position
	children []Emitted
	arity    int
}

// parser carries the state threaded through a single Parse call: the
// explicit frame stack, the finished-block list, a stack of per-block
// temporary counters (pushed/popped around each BLOCK body), and a
// jump-label counter shared by every block in the program.
type parser struct {
	env  *env.Environment
	toks []lexer.Token
	pos  int

	stack []frame
	done  bool
	final Emitted

	blocks   []ir.Block
	temps    []int
	jumpNext int
}

// Parse consumes toks (as produced by lexer.Tokenize) and returns the
// completed program: a Block slice with the top-level program at index 0
// (added last, once everything else is known), ready for the linker.
func Parse(toks []lexer.Token, e *env.Environment) ([]ir.Block, error) {
	p := &parser{env: e, toks: toks}
	p.temps = append(p.temps, 0)

	for p.pos < len(p.toks) {
		if p.done {
			return nil, knerr.Parsef(p.toks[p.pos].Pos, "trailing tokens after a complete expression")
		}
		tok := p.toks[p.pos]
		p.pos++
		if err := p.consume(tok); err != nil {
			return nil, err
		}
	}
	if !p.done {
		pos := knerr.Position{}
		if len(p.toks) > 0 {
			pos = p.toks[len(p.toks)-1].Pos
		}
		return nil, knerr.Parsef(pos, "unexpected end of input: expression truncated")
	}

	n := p.temps[len(p.temps)-1]
	entry := p.newJumpLabel()
	ops := make([]ir.Operation, 0, len(p.final.Instructions)+3)
	ops = append(ops, op(ir.BlockData, ir.ConstLabel(n)))
	ops = append(ops, op(ir.LabelOp, entry))
	ops = append(ops, p.final.Instructions...)
	ops = append(ops, op(ir.Return, p.final.Result))
	top := ir.Block{Ops: ops}

	blocks := make([]ir.Block, 0, len(p.blocks)+1)
	blocks = append(blocks, top)
	blocks = append(blocks, p.blocks...)
	return blocks, nil
}

func (p *parser) newTemp() ir.Label {
	top := len(p.temps) - 1
	id := p.temps[top]
	p.temps[top]++
	return ir.TemporaryLabel(id)
}

func (p *parser) newJumpLabel() ir.Label {
	id := p.jumpNext
	p.jumpNext++
	return ir.JumpTargetLabel(id)
}

func op(code ir.Opcode, args ...ir.Label) ir.Operation {
	return opAt(knerr.Position{}, code, args...)
}

func opAt(pos knerr.Position, code ir.Opcode, args ...ir.Label) ir.Operation {
	var o ir.Operation
	o.Op = code
	o.Pos = pos
	for i, a := range args {
		o.Args[i] = a
	}
	return o
}

// consume classifies one token: arity-0 forms (literals, identifiers, and
// the zero-argument function letters) resolve to an Emitted immediately;
// anything else opens a new frame awaiting its children.
func (p *parser) consume(tok lexer.Token) error {
	switch tok.Kind {
	case lexer.NumberLit:
		return p.feed(Emitted{Result: ir.ConstLabel(int(tok.Num))})
	case lexer.StringLit:
		return p.feed(Emitted{Result: p.env.InternString(tok.Text)})
	case lexer.Identifier:
		return p.feed(Emitted{Result: p.env.InternVariable(tok.Text)})
	case lexer.Function:
		def, ok := funcTable[tok.Text]
		if !ok {
			return knerr.Parsef(tok.Pos, "unknown function letter %q", tok.Text)
		}
		if def.arity == 0 {
			e, err := p.emitArity0(def.kind, tok.Pos)
			if err != nil {
				return err
			}
			return p.feed(e)
		}
		if def.kind == "block" {
			p.temps = append(p.temps, 0)
		}
		p.stack = append(p.stack, frame{kind: def.kind, pos: tok.Pos, arity: def.arity})
		return nil
	default:
		return knerr.Internalf("unhandled token kind %v", tok.Kind)
	}
}

// feed delivers a completed Emitted to the current frame (or finishes the
// program, if the stack is empty), looping to absorb any cascade of
// frames that become complete as a result.
func (p *parser) feed(e Emitted) error {
	for {
		if len(p.stack) == 0 {
			p.final = e
			p.done = true
			return nil
		}
		top := &p.stack[len(p.stack)-1]
		top.children = append(top.children, e)
		if len(top.children) < top.arity {
			return nil
		}
		fr := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		next, err := p.emit(fr)
		if err != nil {
			return err
		}
		e = next
	}
}

func (p *parser) emitArity0(kind string, pos knerr.Position) (Emitted, error) {
	switch kind {
	case "true":
		return Emitted{Result: ir.LiteralLabel(ir.LitTrue)}, nil
	case "false":
		return Emitted{Result: ir.LiteralLabel(ir.LitFalse)}, nil
	case "null":
		return Emitted{Result: ir.LiteralLabel(ir.LitNull)}, nil
	case "prompt":
		r := p.newTemp()
		return Emitted{Instructions: []ir.Operation{op(ir.Prompt, r)}, Result: r}, nil
	case "random":
		r := p.newTemp()
		return Emitted{Instructions: []ir.Operation{op(ir.Random, r)}, Result: r}, nil
	default:
		return Emitted{}, knerr.Internalf("emitArity0: unknown kind %q", kind)
	}
}

// cacheVar protects a label that was produced by a Variable read against
// being clobbered by a side effect in a later-evaluated sibling operand:
// if its result reads a mutable variable slot, it's copied into a fresh
// temporary on the spot, preserving left-to-right evaluation order. Anything else —
// a literal, a constant, or a value already sitting in a temporary — is
// immune to later mutation and is passed through untouched.
func (p *parser) cacheVar(e Emitted, instrs *[]ir.Operation) ir.Label {
	*instrs = append(*instrs, e.Instructions...)
	if e.Result.Cat != ir.Variable {
		return e.Result
	}
	t := p.newTemp()
	*instrs = append(*instrs, op(ir.Assign, t, e.Result))
	return t
}

func (p *parser) emit(fr frame) (Emitted, error) {
	c := fr.children
	switch fr.kind {
	case "eval", "call", "shell", "negate", "length":
		var instrs []ir.Operation
		instrs = append(instrs, c[0].Instructions...)
		r := p.newTemp()
		instrs = append(instrs, opAt(fr.pos, unaryOp[fr.kind], r, c[0].Result))
		return Emitted{Instructions: instrs, Result: r}, nil

	case "quit", "dump", "output":
		var instrs []ir.Operation
		instrs = append(instrs, c[0].Instructions...)
		instrs = append(instrs, op(statementOp[fr.kind], c[0].Result))
		return Emitted{Instructions: instrs, Result: ir.LiteralLabel(ir.LitNull)}, nil

	case "block":
		n := p.temps[len(p.temps)-1]
		p.temps = p.temps[:len(p.temps)-1]
		entry := p.newJumpLabel()
		ops := make([]ir.Operation, 0, len(c[0].Instructions)+3)
		ops = append(ops, op(ir.BlockData, ir.ConstLabel(n)))
		ops = append(ops, op(ir.LabelOp, entry))
		ops = append(ops, c[0].Instructions...)
		ops = append(ops, op(ir.Return, c[0].Result))
		p.blocks = append(p.blocks, ir.Block{Ops: ops})
		return Emitted{Result: entry}, nil

	case "plus", "minus", "mul", "div", "mod", "pow", "lt", "gt", "eq":
		var instrs []ir.Operation
		lhs := p.cacheVar(c[0], &instrs)
		instrs = append(instrs, c[1].Instructions...)
		rhs := c[1].Result
		r := p.newTemp()
		instrs = append(instrs, opAt(fr.pos, binOp[fr.kind], r, lhs, rhs))
		return Emitted{Instructions: instrs, Result: r}, nil

	case "seq":
		instrs := append(append([]ir.Operation{}, c[0].Instructions...), c[1].Instructions...)
		return Emitted{Instructions: instrs, Result: c[1].Result}, nil

	case "assign":
		if c[0].Result.Cat != ir.Variable {
			return Emitted{}, knerr.Parsef(fr.pos, "ASSIGN's first argument must be an identifier")
		}
		instrs := append([]ir.Operation{}, c[1].Instructions...)
		instrs = append(instrs, op(ir.Assign, c[0].Result, c[1].Result))
		return Emitted{Instructions: instrs, Result: c[0].Result}, nil

	case "or", "and":
		var instrs []ir.Operation
		instrs = append(instrs, c[0].Instructions...)
		r := p.newTemp()
		instrs = append(instrs, op(ir.Assign, r, c[0].Result))
		finish := p.newJumpLabel()
		if fr.kind == "or" {
			instrs = append(instrs, op(ir.JumpIf, finish, r))
		} else {
			instrs = append(instrs, op(ir.JumpIfNot, finish, r))
		}
		instrs = append(instrs, c[1].Instructions...)
		instrs = append(instrs, op(ir.Assign, r, c[1].Result))
		instrs = append(instrs, op(ir.LabelOp, finish))
		return Emitted{Instructions: instrs, Result: r}, nil

	case "while":
		start := p.newJumpLabel()
		finish := p.newJumpLabel()
		var instrs []ir.Operation
		instrs = append(instrs, op(ir.LabelOp, start))
		instrs = append(instrs, c[0].Instructions...)
		instrs = append(instrs, op(ir.JumpIfNot, finish, c[0].Result))
		instrs = append(instrs, c[1].Instructions...)
		instrs = append(instrs, op(ir.Jump, start))
		instrs = append(instrs, op(ir.LabelOp, finish))
		return Emitted{Instructions: instrs, Result: ir.LiteralLabel(ir.LitNull)}, nil

	case "if":
		no := p.newJumpLabel()
		end := p.newJumpLabel()
		r := p.newTemp()
		var instrs []ir.Operation
		instrs = append(instrs, c[0].Instructions...)
		instrs = append(instrs, op(ir.JumpIfNot, no, c[0].Result))
		instrs = append(instrs, c[1].Instructions...)
		instrs = append(instrs, op(ir.Assign, r, c[1].Result))
		instrs = append(instrs, op(ir.Jump, end))
		instrs = append(instrs, op(ir.LabelOp, no))
		instrs = append(instrs, c[2].Instructions...)
		instrs = append(instrs, op(ir.Assign, r, c[2].Result))
		instrs = append(instrs, op(ir.LabelOp, end))
		return Emitted{Instructions: instrs, Result: r}, nil

	case "get":
		var instrs []ir.Operation
		str := p.cacheVar(c[0], &instrs)
		posL := p.cacheVar(c[1], &instrs)
		instrs = append(instrs, c[2].Instructions...)
		length := c[2].Result
		r := p.newTemp()
		instrs = append(instrs, opAt(fr.pos, ir.Get, r, str, posL, length))
		return Emitted{Instructions: instrs, Result: r}, nil

	case "substitute":
		var instrs []ir.Operation
		str := p.cacheVar(c[0], &instrs)
		posL := p.cacheVar(c[1], &instrs)
		length := p.cacheVar(c[2], &instrs)
		instrs = append(instrs, c[3].Instructions...)
		repl := c[3].Result
		r := p.newTemp()
		instrs = append(instrs, opAt(fr.pos, ir.Substitute, r, str, posL, length, repl))
		return Emitted{Instructions: instrs, Result: r}, nil

	default:
		return Emitted{}, knerr.Internalf("emit: unhandled frame kind %q", fr.kind)
	}
}
