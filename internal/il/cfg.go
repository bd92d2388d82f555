package il

import "sort"

// BasicBlock represents a sequence of instructions with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts (inclusive)
	End     int    // index into FuncCFG.Insts (exclusive)
	Succs   []Succ // successor edges
	Preds   []int  // predecessor block IDs, one per incoming edge
	IsEntry bool   // method entry or exception handler entry
	IsTerm  bool   // ends with ret/throw or an unconditional branch out of the method
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken/true, "F" = fallthrough/false
}

// FuncCFG is a per-method control flow graph.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  Instructions

	blockOf []int // instruction index → block ID
}

// BuildCFG constructs a control flow graph from a method's instruction stream.
// entries lists extra entry offsets (exception handler and filter starts);
// those blocks are reached from outside the normal edges.
// The algorithm:
//  1. Find block leaders: index 0, entries, branch targets, instructions after terminators.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction.
func BuildCFG(name string, insts Instructions, entries ...int) FuncCFG {
	if len(insts) == 0 {
		return FuncCFG{Name: name, Insts: insts}
	}

	// Pass 1: Identify block leaders.
	leaders := map[int]bool{0: true}
	external := map[int]bool{0: true}
	for _, off := range entries {
		if idx, ok := insts.IndexOf(off); ok {
			leaders[idx] = true
			external[idx] = true
		}
	}
	for i, inst := range insts {
		bi := DecodeBranch(inst)
		if bi == nil {
			continue
		}
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		for _, t := range bi.Targets {
			if idx, ok := insts.IndexOf(t); ok {
				leaders[idx] = true
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: Partition into blocks.
	blocks := make([]BasicBlock, len(sorted))
	blockOf := make([]int, len(insts))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{
			ID:      i,
			Start:   start,
			End:     end,
			IsEntry: external[start],
		}
		leaderToBlock[start] = i
		for j := start; j < end; j++ {
			blockOf[j] = i
		}
	}

	// Pass 3: Compute successors.
	for i := range blocks {
		blk := &blocks[i]
		last := insts[blk.End-1]
		bi := DecodeBranch(last)

		if bi == nil {
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			}
			continue
		}
		if bi.IsRet {
			blk.IsTerm = true
			continue
		}

		taken := ""
		if bi.Cond {
			taken = "T"
		}
		resolved := 0
		for _, t := range bi.Targets {
			if idx, ok := insts.IndexOf(t); ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: leaderToBlock[idx], Cond: taken})
				resolved++
			}
		}
		if bi.Cond {
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		} else if resolved == 0 {
			// Branch outside the method body.
			blk.IsTerm = true
		}
	}

	for i := range blocks {
		for _, s := range blocks[i].Succs {
			blocks[s.BlockID].Preds = append(blocks[s.BlockID].Preds, i)
		}
	}

	return FuncCFG{
		Name:    name,
		Blocks:  blocks,
		Insts:   insts,
		blockOf: blockOf,
	}
}

// BlockOf returns the block containing instruction index i.
func (g *FuncCFG) BlockOf(i int) *BasicBlock {
	if i < 0 || i >= len(g.blockOf) {
		return nil
	}
	return &g.Blocks[g.blockOf[i]]
}

// StraightLine reports whether the stack state on entry to instruction i is
// exactly the state after instruction i-1: i is not a block leader, or its
// block is reached only from the block ending at i-1.
func (g *FuncCFG) StraightLine(i int) bool {
	if i <= 0 || i >= len(g.blockOf) {
		return false
	}
	blk := &g.Blocks[g.blockOf[i]]
	if blk.Start != i {
		return true
	}
	if blk.IsEntry || len(blk.Preds) == 0 {
		return false
	}
	prev := g.blockOf[i-1]
	for _, p := range blk.Preds {
		if p != prev {
			return false
		}
	}
	return true
}
