package il

// StackEffect returns how many values inst pops and pushes. ok is false when
// the effect cannot be determined statically: codes outside the opcode
// table, calli, and ret (whose pop depends on the enclosing method).
func StackEffect(inst Instruction) (pop, push int, ok bool) {
	switch v := inst.(type) {
	case *CallInst:
		pop = v.Target.ArgCount()
		// callvirt always takes a receiver, whatever the reference says.
		if v.Virtual && !v.Target.HasThis {
			pop++
		}
		if v.Target.Returns() {
			push = 1
		}
		return pop, push, true
	case *NewObject:
		return len(v.Ctor.Params), 1, true
	}
	info, known := inst.Header().Code.Info()
	if !known || info.Pop == Varies || info.Push == Varies {
		return 0, 0, false
	}
	return info.Pop, info.Push, true
}

// FallsThrough reports whether control can continue to the next
// instruction in stream order.
func FallsThrough(inst Instruction) bool {
	info, known := inst.Header().Code.Info()
	if !known {
		return true
	}
	switch info.Flow {
	case FlowBranch, FlowReturn, FlowThrow:
		return false
	}
	return true
}
