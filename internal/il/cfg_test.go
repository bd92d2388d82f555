package il

import "testing"

// mustDecode decodes raw instructions or fails the test.
func mustDecode(t *testing.T, raw []Raw) Instructions {
	t.Helper()
	insts, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return insts
}

func TestBuildCFG_Linear(t *testing.T) {
	insts := mustDecode(t, []Raw{
		{Offset: 0, Code: Nop},
		{Offset: 1, Code: Nop},
		{Offset: 2, Code: Ret},
	})
	cfg := BuildCFG("linear", insts)
	if len(cfg.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(cfg.Blocks))
	}
	blk := cfg.Blocks[0]
	if blk.Start != 0 || blk.End != 3 {
		t.Errorf("block range = [%d,%d), want [0,3)", blk.Start, blk.End)
	}
	if !blk.IsTerm {
		t.Error("block should be terminal (ret)")
	}
	if len(blk.Succs) != 0 {
		t.Errorf("succs = %d, want 0", len(blk.Succs))
	}
	if !cfg.StraightLine(1) || !cfg.StraightLine(2) {
		t.Error("instructions inside one block should be straight-line")
	}
}

func TestBuildCFG_ConditionalBranch(t *testing.T) {
	//   IL_0000: brtrue.s IL_0005
	//   IL_0002: nop          (fallthrough)
	//   IL_0003: ret
	//   IL_0004: nop
	//   IL_0005: ret          (branch target)
	insts := mustDecode(t, []Raw{
		{Offset: 0, Code: BrtrueS, Operand: 5},
		{Offset: 2, Code: Nop},
		{Offset: 3, Code: Ret},
		{Offset: 4, Code: Nop},
		{Offset: 5, Code: Ret},
	})
	cfg := BuildCFG("cond", insts)

	// Leaders: 0 (entry), 1 (after brtrue), 3 (after ret), 4 (target)
	if len(cfg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(cfg.Blocks))
	}

	b0 := cfg.Blocks[0]
	if len(b0.Succs) != 2 {
		t.Fatalf("block 0 succs = %d, want 2", len(b0.Succs))
	}
	var hasT, hasF bool
	for _, s := range b0.Succs {
		if s.Cond == "T" && s.BlockID == 3 {
			hasT = true
		}
		if s.Cond == "F" && s.BlockID == 1 {
			hasF = true
		}
	}
	if !hasT {
		t.Errorf("block 0 missing T→block3, succs=%+v", b0.Succs)
	}
	if !hasF {
		t.Errorf("block 0 missing F→block1, succs=%+v", b0.Succs)
	}
	if !cfg.Blocks[1].IsTerm || !cfg.Blocks[3].IsTerm {
		t.Error("blocks 1 and 3 should be terminal (ret)")
	}

	// Fallthrough-only successor keeps the straight line; the dead nop
	// after ret and the branch target do not.
	if !cfg.StraightLine(1) {
		t.Error("index 1 is reached only by fallthrough")
	}
	if cfg.StraightLine(3) {
		t.Error("index 3 follows ret")
	}
	if cfg.StraightLine(4) {
		t.Error("index 4 is a branch target")
	}
}

func TestBuildCFG_UnconditionalBranch(t *testing.T) {
	//   IL_0000: br.s IL_0003
	//   IL_0002: nop          (dead code)
	//   IL_0003: ret          (branch target)
	insts := mustDecode(t, []Raw{
		{Offset: 0, Code: BrS, Operand: 3},
		{Offset: 2, Code: Nop},
		{Offset: 3, Code: Ret},
	})
	cfg := BuildCFG("uncond", insts)

	if len(cfg.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(cfg.Blocks))
	}
	b0 := cfg.Blocks[0]
	if len(b0.Succs) != 1 {
		t.Fatalf("block 0 succs = %d, want 1", len(b0.Succs))
	}
	if b0.Succs[0].BlockID != 2 || b0.Succs[0].Cond != "" {
		t.Errorf("block 0 succ = {%d, %q}, want {2, \"\"}", b0.Succs[0].BlockID, b0.Succs[0].Cond)
	}
	if got := cfg.Blocks[2].Preds; len(got) != 2 {
		t.Errorf("block 2 preds = %v, want two (branch and dead fallthrough)", got)
	}
}

func TestBuildCFG_BackEdge(t *testing.T) {
	//   IL_0000: ldc.i4.0
	//   IL_0001: stloc.0
	//   IL_0002: ldloc.0      (loop head)
	//   IL_0003: ldc.i4.1
	//   IL_0004: add
	//   IL_0005: stloc.0
	//   IL_0006: ldloc.0
	//   IL_0007: ldc.i4.s 10
	//   IL_0009: blt.s IL_0002
	//   IL_000b: ret
	insts := mustDecode(t, []Raw{
		{Offset: 0, Code: LdcI40},
		{Offset: 1, Code: Stloc0},
		{Offset: 2, Code: Ldloc0},
		{Offset: 3, Code: LdcI41},
		{Offset: 4, Code: Add},
		{Offset: 5, Code: Stloc0},
		{Offset: 6, Code: Ldloc0},
		{Offset: 7, Code: LdcI4S, Operand: 10},
		{Offset: 9, Code: BltS, Operand: 2},
		{Offset: 11, Code: Ret},
	})
	cfg := BuildCFG("loop", insts)
	if len(cfg.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(cfg.Blocks))
	}
	if cfg.StraightLine(2) {
		t.Error("loop head has two predecessors")
	}
	if blk := cfg.BlockOf(5); blk == nil || blk.ID != 1 {
		t.Errorf("BlockOf(5) = %+v, want block 1", blk)
	}
}

func TestBuildCFG_HandlerEntry(t *testing.T) {
	insts := mustDecode(t, []Raw{
		{Offset: 0, Code: Nop},
		{Offset: 1, Code: LeaveS, Operand: 6},
		{Offset: 3, Code: Pop}, // catch handler entry
		{Offset: 4, Code: LeaveS, Operand: 6},
		{Offset: 6, Code: Ret},
	})
	cfg := BuildCFG("handler", insts, 3)
	blk := cfg.BlockOf(2)
	if blk == nil || !blk.IsEntry {
		t.Fatalf("handler block = %+v, want entry", blk)
	}
	if cfg.StraightLine(2) {
		t.Error("handler entry must not be straight-line")
	}
}

func TestBuildCFG_Empty(t *testing.T) {
	cfg := BuildCFG("empty", nil)
	if len(cfg.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(cfg.Blocks))
	}
	if cfg.StraightLine(0) {
		t.Error("empty method has no straight-line instructions")
	}
}
