package ir

import "github.com/chazu/knight/internal/knerr"

// Operation is an opcode plus up to five label operands. Unused operand
// slots are left as the zero Label and never read, since each opcode's
// handler only ever touches OperandCount()-many of them.
type Operation struct {
	Op   Opcode
	Args [5]Label
	Pos  knerr.Position
}

func (o Operation) Operand(i int) Label { return o.Args[i] }

// Block is an ordered sequence of operations. By construction its first
// operation is always BlockData(n) and its second is Label(entry); it
// always ends with Return.
type Block struct {
	Ops []Operation
}

// CodePoint is the flat representation the linker produces: each cell is
// either an opcode or a label. IsOp distinguishes the two; a cell never
// carries both.
type CodePoint struct {
	IsOp  bool
	Op    Opcode
	Label Label
}

func OpPoint(op Opcode) CodePoint       { return CodePoint{IsOp: true, Op: op} }
func LabelPoint(l Label) CodePoint      { return CodePoint{IsOp: false, Label: l} }
