package il

// Branch detection over decoded instructions. These functions identify
// basic-block terminators and extract branch targets.

// BranchInfo describes a block-terminating instruction.
type BranchInfo struct {
	Targets []int // absolute target offsets (empty for ret/throw)
	Cond    bool  // true if control may also fall through
	IsRet   bool  // true for ret, throw, rethrow, endfinally, endfilter, jmp
}

// DecodeBranch returns the branch description of inst, or nil if inst does
// not end a basic block. Calls are not terminators: they return to the next
// instruction.
func DecodeBranch(inst Instruction) *BranchInfo {
	switch v := inst.(type) {
	case *Branch:
		return &BranchInfo{Targets: []int{v.Target}}
	case *ConditionalBranch:
		return &BranchInfo{Targets: []int{v.Target}, Cond: true}
	case *SwitchBranch:
		return &BranchInfo{Targets: v.Targets, Cond: true}
	case *Return, *ThrowInst:
		return &BranchInfo{IsRet: true}
	}
	if !FallsThrough(inst) {
		return &BranchInfo{IsRet: true}
	}
	return nil
}

// IsBranchTerminator reports whether inst terminates a basic block.
func IsBranchTerminator(inst Instruction) bool {
	return DecodeBranch(inst) != nil
}
