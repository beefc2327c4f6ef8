// Package vm implements the dispatch loop and per-opcode handlers: a
// flat instruction pointer walking the Linker's CodePoint array, reading
// operands directly out of Environment-addressed labels rather than an
// expression stack — the label taxonomy already gives every
// intermediate value a home, so there is nothing left for an operand
// stack to do.
package vm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/knight/internal/env"
	"github.com/chazu/knight/internal/history"
	"github.com/chazu/knight/internal/ir"
	"github.com/chazu/knight/internal/knerr"
	"github.com/chazu/knight/internal/link"
	"github.com/chazu/knight/internal/shell"
	"github.com/chazu/knight/internal/value"
)

// Options configures a VM's I/O and optional ambient collaborators.
type Options struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Shell   shell.Runner
	Rand    *rand.Rand
	Debug   bool
	Log     commonlog.Logger
	History *history.Store
}

// VM holds the mutable execution state threaded through the dispatch
// loop: the linker's code array (which EVAL may grow mid-run), the
// environment, and the ambient collaborators from Options.
type VM struct {
	lk  *link.Linker
	env *env.Environment

	shell  shell.Runner
	stdin  *bufio.Reader
	stdout *bufio.Writer
	rng    *rand.Rand
	debug  bool
	log    commonlog.Logger
	hist   *history.Store

	evalCache map[string]int
	evalSeq   int
}

func New(lk *link.Linker, e *env.Environment, opts Options) *VM {
	if opts.Stdin == nil {
		opts.Stdin = strings.NewReader("")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Shell == nil {
		opts.Shell = shell.New()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return &VM{
		lk:        lk,
		env:       e,
		shell:     opts.Shell,
		stdin:     bufio.NewReader(opts.Stdin),
		stdout:    bufio.NewWriter(opts.Stdout),
		rng:       opts.Rand,
		debug:     opts.Debug,
		log:       opts.Log,
		hist:      opts.History,
		evalCache: make(map[string]int),
	}
}

// Run starts the top-level program at entry (the offset Link returned
// for the program's own blocks) and runs until Quit terminates it.
//
// Start-up appends a synthetic `Quit, #retval` after the program's own
// code, pushes an initial frame whose return address is that
// instruction and whose result label is the reserved `#retval` variable,
// then jumps straight to entry. The top-level block's own Return — same
// handler as any CALL's — pops that frame, stores its value into
// `#retval`, and lands on the synthetic Quit, so start-up needs no
// special-cased termination path in the dispatch loop itself.
func (m *VM) Run(entry int) (exitCode int, err error) {
	retval := m.env.InternVariable("#retval")
	quitAddr := len(m.lk.Code)
	m.lk.Code = append(m.lk.Code, ir.OpPoint(ir.Quit), ir.LabelPoint(retval))
	m.lk.Positions = append(m.lk.Positions, knerr.Position{}, knerr.Position{})

	n, err := m.blockParamCount(entry)
	if err != nil {
		return 1, err
	}
	m.env.PushFrame(quitAddr, retval, n)
	return m.loop(entry)
}

func (m *VM) blockParamCount(entry int) (int, error) {
	if entry < 1 || entry-1 >= len(m.lk.Code) {
		return 0, knerr.Internalf("vm: entry %d has no preceding BlockData", entry)
	}
	return m.lk.Code[entry-1].Label.Id, nil
}

func (m *VM) arg(ip, i int) ir.Label { return m.lk.Code[ip+1+i].Label }

func (m *VM) pos(ip int) knerr.Position {
	if ip < len(m.lk.Positions) {
		return m.lk.Positions[ip]
	}
	return knerr.Position{}
}

func (m *VM) load(l ir.Label) (value.Value, error) { return m.env.Load(l, knerr.Position{}) }

func (m *VM) store(l ir.Label, v value.Value) error { return m.env.Store(l, v) }

// loop is the dispatch loop proper. Every case either falls through to
// the trailing `ip += 1 + operandCount` or sets ip itself and `continue`s
// — Jump, JumpIf/JumpIfNot, Call, Return, and Eval all redirect control
// flow and skip the default advance.
func (m *VM) loop(ip int) (int, error) {
	for {
		cp := m.lk.Code[ip]
		if !cp.IsOp {
			return 1, knerr.Internalf("vm: instruction pointer %d lands on a label cell", ip)
		}
		op := cp.Op

		if m.debug && m.log != nil {
			m.log.Debugf("ip=%d op=%s", ip, op)
		}

		switch op {
		case ir.NoOp:
			// advance below

		case ir.Call:
			result := m.arg(ip, 0)
			v, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			addr, err := v.ToBlockEntry(m.pos(ip))
			if err != nil {
				return 1, err
			}
			n, err := m.blockParamCount(addr)
			if err != nil {
				return 1, err
			}
			m.env.PushFrame(ip+1+op.OperandCount(), result, n)
			ip = addr
			continue

		case ir.Return:
			v, err := m.load(m.arg(ip, 0))
			if err != nil {
				return 1, err
			}
			returnAddr, result := m.env.PopFrame()
			if err := m.store(result, v); err != nil {
				return 1, err
			}
			ip = returnAddr
			continue

		case ir.Jump:
			ip = m.arg(ip, 0).Id
			continue

		case ir.JumpIf:
			cond, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			if cond.ToBool() {
				ip = m.arg(ip, 0).Id
			} else {
				ip += 1 + op.OperandCount()
			}
			continue

		case ir.JumpIfNot:
			cond, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			if !cond.ToBool() {
				ip = m.arg(ip, 0).Id
			} else {
				ip += 1 + op.OperandCount()
			}
			continue

		case ir.Plus, ir.Minus, ir.Multiplies, ir.Divides, ir.Modulus, ir.Exponent:
			lhs, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			rhs, err := m.load(m.arg(ip, 2))
			if err != nil {
				return 1, err
			}
			result, err := arith(op, lhs, rhs, m.pos(ip))
			if err != nil {
				return 1, err
			}
			if err := m.store(m.arg(ip, 0), result); err != nil {
				return 1, err
			}

		case ir.Negate:
			arg, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			if err := m.store(m.arg(ip, 0), value.Bool(!arg.ToBool())); err != nil {
				return 1, err
			}

		case ir.Less, ir.Greater:
			lhs, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			rhs, err := m.load(m.arg(ip, 2))
			if err != nil {
				return 1, err
			}
			cmp, err := compare(lhs, rhs, m.pos(ip))
			if err != nil {
				return 1, err
			}
			var result bool
			if op == ir.Less {
				result = cmp < 0
			} else {
				result = cmp > 0
			}
			if err := m.store(m.arg(ip, 0), value.Bool(result)); err != nil {
				return 1, err
			}

		case ir.Equals:
			lhs, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			rhs, err := m.load(m.arg(ip, 2))
			if err != nil {
				return 1, err
			}
			if err := m.store(m.arg(ip, 0), value.Bool(value.Equal(lhs, rhs))); err != nil {
				return 1, err
			}

		case ir.Length:
			arg, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			if err := m.store(m.arg(ip, 0), value.Number(int64(arg.ToString().Len()))); err != nil {
				return 1, err
			}

		case ir.Get:
			if err := m.execGet(ip); err != nil {
				return 1, err
			}

		case ir.Substitute:
			if err := m.execSubstitute(ip); err != nil {
				return 1, err
			}

		case ir.Assign:
			v, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			if err := m.store(m.arg(ip, 0), v); err != nil {
				return 1, err
			}

		case ir.Prompt:
			v, err := m.execPrompt()
			if err != nil {
				return 1, err
			}
			if err := m.store(m.arg(ip, 0), v); err != nil {
				return 1, err
			}

		case ir.Output:
			arg, err := m.load(m.arg(ip, 0))
			if err != nil {
				return 1, err
			}
			if err := m.execOutput(arg); err != nil {
				return 1, err
			}

		case ir.Random:
			if err := m.store(m.arg(ip, 0), value.Number(m.rng.Int63())); err != nil {
				return 1, err
			}

		case ir.Shell:
			arg, err := m.load(m.arg(ip, 1))
			if err != nil {
				return 1, err
			}
			out, err := m.shell.Run(context.Background(), arg.ToString().String())
			if err != nil {
				return 1, err
			}
			if err := m.store(m.arg(ip, 0), value.String(value.RCStringFromString(out))); err != nil {
				return 1, err
			}

		case ir.Quit:
			arg, err := m.load(m.arg(ip, 0))
			if err != nil {
				return 1, err
			}
			m.stdout.Flush()
			code := int(arg.ToNumber())
			if m.hist != nil {
				m.hist.RecordRun(code)
			}
			return code, nil

		case ir.Dump:
			arg, err := m.load(m.arg(ip, 0))
			if err != nil {
				return 1, err
			}
			fmt.Fprintln(m.stdout, arg.Dump())
			m.stdout.Flush()

		case ir.Eval:
			newIP, err := m.execEval(ip)
			if err != nil {
				return 1, err
			}
			ip = newIP
			continue

		default:
			return 1, knerr.Internalf("vm: unhandled opcode %s at ip=%d", op, ip)
		}

		ip += 1 + op.OperandCount()
	}
}

func arith(op ir.Opcode, lhs, rhs value.Value, pos knerr.Position) (value.Value, error) {
	switch op {
	case ir.Plus:
		switch lhs.Kind() {
		case value.KindNumber:
			return value.Number(lhs.AsNumber() + rhs.ToNumber()), nil
		case value.KindString:
			return value.String(lhs.AsString().Concat(rhs.ToString())), nil
		default:
			return value.Value{}, knerr.Typef(pos, "PLUS: unsupported left operand type %s", lhs.Kind())
		}
	case ir.Multiplies:
		switch lhs.Kind() {
		case value.KindNumber:
			return value.Number(lhs.AsNumber() * rhs.ToNumber()), nil
		case value.KindString:
			n := rhs.ToNumber()
			if n < 0 {
				return value.Value{}, knerr.Typef(pos, "MULTIPLIES: negative repeat count %d", n)
			}
			return value.String(lhs.AsString().Repeat(n)), nil
		default:
			return value.Value{}, knerr.Typef(pos, "MULTIPLIES: unsupported left operand type %s", lhs.Kind())
		}
	case ir.Minus, ir.Divides, ir.Modulus, ir.Exponent:
		a, b := lhs.ToNumber(), rhs.ToNumber()
		switch op {
		case ir.Minus:
			return value.Number(a - b), nil
		case ir.Divides:
			if b == 0 {
				return value.Value{}, knerr.Undefinedf(pos, "DIVIDES: division by zero")
			}
			return value.Number(a / b), nil
		case ir.Modulus:
			if b == 0 {
				return value.Value{}, knerr.Undefinedf(pos, "MODULUS: modulus by zero")
			}
			return value.Number(a % b), nil
		default: // Exponent
			return value.Number(ipow(a, b)), nil
		}
	default:
		return value.Value{}, knerr.Internalf("arith: unhandled opcode %s", op)
	}
}

func ipow(base, exp int64) int64 {
	if exp < 0 {
		switch base {
		case 1:
			return 1
		case -1:
			if exp%2 == 0 {
				return 1
			}
			return -1
		default:
			return 0
		}
	}
	result := int64(1)
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

// compare implements the Less/Greater coercion rule: the LHS kind picks
// the comparison domain and the RHS coerces into it.
func compare(lhs, rhs value.Value, pos knerr.Position) (int, error) {
	switch lhs.Kind() {
	case value.KindNumber:
		a, b := lhs.AsNumber(), rhs.ToNumber()
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		default:
			return 0, nil
		}
	case value.KindString:
		a, b := lhs.AsString(), rhs.ToString()
		if a.Equal(b) {
			return 0, nil
		}
		if a.Less(b) {
			return -1, nil
		}
		return 1, nil
	case value.KindBoolean:
		a, b := lhs.AsBool(), rhs.ToBool()
		if a == b {
			return 0, nil
		}
		if !a && b {
			return -1, nil
		}
		return 1, nil
	default:
		return 0, knerr.Typef(pos, "comparison: unsupported left operand type %s", lhs.Kind())
	}
}

func (m *VM) execGet(ip int) error {
	str, err := m.load(m.arg(ip, 1))
	if err != nil {
		return err
	}
	posV, err := m.load(m.arg(ip, 2))
	if err != nil {
		return err
	}
	lenV, err := m.load(m.arg(ip, 3))
	if err != nil {
		return err
	}
	s := str.ToString()
	pos, length := int(posV.ToNumber()), int(lenV.ToNumber())
	if pos < 0 || length < 0 || pos+length > s.Len() {
		return knerr.Typef(m.pos(ip), "GET: bounds [%d,%d) exceed string of length %d", pos, pos+length, s.Len())
	}
	return m.store(m.arg(ip, 0), value.String(s.Substr(pos, length)))
}

func (m *VM) execSubstitute(ip int) error {
	str, err := m.load(m.arg(ip, 1))
	if err != nil {
		return err
	}
	posV, err := m.load(m.arg(ip, 2))
	if err != nil {
		return err
	}
	lenV, err := m.load(m.arg(ip, 3))
	if err != nil {
		return err
	}
	repl, err := m.load(m.arg(ip, 4))
	if err != nil {
		return err
	}
	s := str.ToString()
	pos, length := int(posV.ToNumber()), int(lenV.ToNumber())
	if pos < 0 || length < 0 || pos+length > s.Len() {
		return knerr.Typef(m.pos(ip), "SUBSTITUTE: bounds [%d,%d) exceed string of length %d", pos, pos+length, s.Len())
	}
	return m.store(m.arg(ip, 0), value.String(s.Replace(pos, length, repl.ToString())))
}

func (m *VM) execPrompt() (value.Value, error) {
	line, err := m.stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return value.Value{}, knerr.Internalf("PROMPT: reading stdin: %v", err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return value.String(value.RCStringFromString(line)), nil
}

func (m *VM) execOutput(arg value.Value) error {
	s := arg.ToString().Bytes()
	if len(s) > 0 && s[len(s)-1] == '\\' {
		if _, err := m.stdout.Write(s[:len(s)-1]); err != nil {
			return err
		}
	} else {
		if _, err := m.stdout.Write(s); err != nil {
			return err
		}
		if err := m.stdout.WriteByte('\n'); err != nil {
			return err
		}
	}
	return m.stdout.Flush()
}
