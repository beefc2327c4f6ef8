// Package env implements the interpreter's Environment: the variable
// table, literal pool, temporary stack, and call-frame stack.
//
// Environment is a plain struct with no package-level state, created
// once by the CLI and threaded explicitly through parsing and execution
// (including every EVAL re-entry, so variables and literals
// interned by evaluated code are visible to, and share ids with, the
// rest of the program) rather than kept as a global singleton.
package env

import (
	"github.com/chazu/knight/internal/ir"
	"github.com/chazu/knight/internal/knerr"
	"github.com/chazu/knight/internal/value"
)

// Environment holds every piece of mutable interpreter state that is not
// part of the bytecode itself.
type Environment struct {
	varNames []string
	varIds   map[string]int
	varVals  []value.Value
	varSet   []bool

	litVals   []value.Value
	litStrMap map[string]int

	temps    []value.Value
	tempsSet []bool

	frames []frame
}

type frame struct {
	returnAddr int
	result     ir.Label
	numTemps   int
}

// New creates an Environment with the literal pool pre-seeded: id 0 =
// null, 1 = true, 2 = false.
func New() *Environment {
	e := &Environment{
		varIds:    make(map[string]int),
		litStrMap: make(map[string]int),
	}
	e.litVals = append(e.litVals, value.Null, value.Bool(true), value.Bool(false))
	return e
}

// InternVariable inserts name if new and returns a stable Variable label.
// Names "NULL"/"TRUE"/"FALSE" are ordinary identifiers here — the lexer
// already routes the uppercase function letters T/F/N to separate
// tokens, so there is no collision to guard against.
func (e *Environment) InternVariable(name string) ir.Label {
	if id, ok := e.varIds[name]; ok {
		return ir.VariableLabel(id)
	}
	id := len(e.varNames)
	e.varIds[name] = id
	e.varNames = append(e.varNames, name)
	e.varVals = append(e.varVals, value.Value{})
	e.varSet = append(e.varSet, false)
	return ir.VariableLabel(id)
}

// InternString deduplicates string literals by content and returns a
// Literal label.
func (e *Environment) InternString(s string) ir.Label {
	if id, ok := e.litStrMap[s]; ok {
		return ir.LiteralLabel(id)
	}
	id := len(e.litVals)
	e.litStrMap[s] = id
	e.litVals = append(e.litVals, value.String(value.RCStringFromString(s)))
	return ir.LiteralLabel(id)
}

// PushFrame reserves n temporary slots and pushes a call frame.
func (e *Environment) PushFrame(returnAddr int, result ir.Label, n int) {
	e.frames = append(e.frames, frame{returnAddr: returnAddr, result: result, numTemps: n})
	e.temps = append(e.temps, make([]value.Value, n)...)
	e.tempsSet = append(e.tempsSet, make([]bool, n)...)
}

// PopFrame truncates the temporary vector by the popped frame's size and
// returns its return address and result label.
func (e *Environment) PopFrame() (returnAddr int, result ir.Label) {
	top := e.frames[len(e.frames)-1]
	e.frames = e.frames[:len(e.frames)-1]
	e.temps = e.temps[:len(e.temps)-top.numTemps]
	e.tempsSet = e.tempsSet[:len(e.tempsSet)-top.numTemps]
	return top.returnAddr, top.result
}

func (e *Environment) tempIndex(id int) int {
	top := e.frames[len(e.frames)-1]
	return len(e.temps) - top.numTemps + id
}

// Load reads the value bound to a label. Reading an unassigned
// variable is a runtime-undefined error; reading an unassigned temporary
// is an internal invariant violation (the emitter guarantees
// write-before-read for temporaries).
func (e *Environment) Load(l ir.Label, pos knerr.Position) (value.Value, error) {
	switch l.Cat {
	case ir.Constant:
		return value.Number(int64(l.Id)), nil
	case ir.Literal:
		return e.litVals[l.Id], nil
	case ir.Variable:
		if !e.varSet[l.Id] {
			return value.Value{}, knerr.Undefinedf(pos, "variable %q used before assignment", e.varNames[l.Id])
		}
		return e.varVals[l.Id], nil
	case ir.Temporary:
		idx := e.tempIndex(l.Id)
		if !e.tempsSet[idx] {
			return value.Value{}, knerr.Internalf("read of unassigned temporary %d", l.Id)
		}
		return e.temps[idx], nil
	case ir.JumpTarget:
		// Only reachable post-link, where the linker has already rewritten
		// Id from a symbolic jump-label id to an absolute code offset — a
		// BLOCK literal's result flows through exactly this way.
		return value.Block(l.Id), nil
	default:
		return value.Value{}, knerr.Internalf("load: invalid label category %v", l.Cat)
	}
}

// Store writes a value to a Variable or Temporary label; built-in
// literal ids and constants are immutable and cannot be stored to.
func (e *Environment) Store(l ir.Label, v value.Value) error {
	switch l.Cat {
	case ir.Variable:
		e.varVals[l.Id] = v
		e.varSet[l.Id] = true
		return nil
	case ir.Temporary:
		idx := e.tempIndex(l.Id)
		e.temps[idx] = v
		e.tempsSet[idx] = true
		return nil
	default:
		return knerr.Internalf("store: label category %v is immutable", l.Cat)
	}
}

// VariableNames returns the interned variable table, in id order —
// exposed for the CBOR environment snapshot.
func (e *Environment) VariableNames() []string { return e.varNames }

// VariableValue returns the value currently bound to variable id (or the
// zero Value and false if never assigned).
func (e *Environment) VariableValue(id int) (value.Value, bool) {
	return e.varVals[id], e.varSet[id]
}

// LiteralPool returns the full literal pool, in id order.
func (e *Environment) LiteralPool() []value.Value { return e.litVals }

// FrameDepth reports the current call-stack depth.
func (e *Environment) FrameDepth() int { return len(e.frames) }
