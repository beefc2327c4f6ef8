// Package link flattens a parser's Block list into the single,
// append-only CodePoint array the VM executes, resolving every symbolic
// JumpTarget label to an absolute array offset along the way.
//
// A Linker is long-lived across the life of one interpreter run: the
// first Link call lays down the program's own blocks starting at offset
// 0, and each subsequent EVAL re-entry calls Link again with the freshly
// parsed blocks for the evaluated source, which are appended after
// everything already there. Jump-target ids are local to a single
// Parse/Link pair (the parser restarts its counter at zero every time),
// so label resolution itself never needs to span calls — only the
// underlying code array does.
package link

import (
	"github.com/chazu/knight/internal/ir"
	"github.com/chazu/knight/internal/knerr"
)

// Linker owns the flattened, append-only bytecode array. Positions
// parallels Code index-for-index: Positions[ip] is the source range of
// the operation whose opcode cell sits at ip, used by the VM to annotate
// runtime type/undefined errors; entries at operand cells are unused.
type Linker struct {
	Code      []ir.CodePoint
	Positions []knerr.Position
}

func New() *Linker {
	return &Linker{}
}

// Link flattens blocks (with blocks[0] as the fragment's own top-level
// block, per parser.Parse's contract) onto the end of the running Code
// array and returns the absolute offset of blocks[0]'s entry point.
//
// Two passes over the fragment being linked: the first walks every
// block's operations in order, stripping LABEL markers out of the
// emitted stream and recording each one's jump-target id against the
// offset of the real instruction that follows it; the second rewrites
// every JumpTarget-categorized operand — both literal jump targets and
// BLOCK literals flowing through as values — from its symbolic id to
// the absolute offset the first pass discovered. Forward references
// (an `if`'s else branch, a `while`'s exit, a block called before its
// own definition is reached) are why this can't resolve in one pass.
func (lk *Linker) Link(blocks []ir.Block) (entry int, err error) {
	if len(blocks) == 0 {
		return 0, knerr.Internalf("link: empty block list")
	}
	base := len(lk.Code)
	labelOffsets := make(map[int]int)
	var flat []ir.CodePoint
	var positions []knerr.Position
	cursor := base

	for _, blk := range blocks {
		for _, o := range blk.Ops {
			if o.Op == ir.LabelOp {
				labelOffsets[o.Args[0].Id] = cursor
				continue
			}
			flat = append(flat, ir.OpPoint(o.Op))
			positions = append(positions, o.Pos)
			cursor++
			for k := 0; k < o.Op.OperandCount(); k++ {
				flat = append(flat, ir.LabelPoint(o.Args[k]))
				positions = append(positions, knerr.Position{})
				cursor++
			}
		}
	}

	for i := range flat {
		if flat[i].IsOp || flat[i].Label.Cat != ir.JumpTarget {
			continue
		}
		resolved, ok := labelOffsets[flat[i].Label.Id]
		if !ok {
			return 0, knerr.Internalf("link: unresolved jump target %d", flat[i].Label.Id)
		}
		flat[i].Label.Id = resolved
	}

	if len(blocks[0].Ops) < 2 || blocks[0].Ops[0].Op != ir.BlockData || blocks[0].Ops[1].Op != ir.LabelOp {
		return 0, knerr.Internalf("link: malformed top block, expected BlockData then LABEL")
	}
	entryID := blocks[0].Ops[1].Args[0].Id
	entryOffset, ok := labelOffsets[entryID]
	if !ok {
		return 0, knerr.Internalf("link: entry label %d never defined", entryID)
	}

	lk.Code = append(lk.Code, flat...)
	lk.Positions = append(lk.Positions, positions...)
	return entryOffset, nil
}
