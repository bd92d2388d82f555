// Package stack resolves which instruction produced a value on the CIL
// evaluation stack.
package stack

import "cilscan/internal/il"

// maxHops bounds Value's walk through dup and local-variable copies.
const maxHops = 16

// Tracker answers producer queries over one method's instructions.
// It walks backward with a depth counter and only follows the single
// straight-line predecessor chain: any merge point (branch target, handler
// entry, code after an unconditional transfer) or instruction with an unknown
// stack effect ends the walk unresolved.
type Tracker struct {
	insts il.Instructions
	cfg   il.FuncCFG
}

// New builds a tracker. entries are exception-handler, filter and try start
// offsets; they are treated as merge points.
func New(insts il.Instructions, entries ...int) *Tracker {
	return &Tracker{
		insts: insts,
		cfg:   il.BuildCFG("", insts, entries...),
	}
}

// Instructions returns the sequence the tracker was built over.
func (t *Tracker) Instructions() il.Instructions { return t.insts }

// Producer returns the index of the instruction that pushed the value at
// stack position arg (0 = top) on entry to consumer. ok is false when the
// producer cannot be proven; the index is then -1.
func (t *Tracker) Producer(consumer, arg int) (int, bool) {
	if consumer <= 0 || consumer >= len(t.insts) || arg < 0 {
		return -1, false
	}
	depth := arg
	for i := consumer - 1; i >= 0; i-- {
		if !t.cfg.StraightLine(i + 1) {
			return -1, false
		}
		pop, push, ok := il.StackEffect(t.insts[i])
		if !ok {
			return -1, false
		}
		if push > depth {
			return i, true
		}
		depth += pop - push
	}
	return -1, false
}

// Value is Producer followed through value-preserving copies: dup, and
// ldloc N back to the stloc N that last wrote the local on the straight-line
// path. The result is the instruction that originally computed the value.
func (t *Tracker) Value(consumer, arg int) (int, bool) {
	p, ok := t.Producer(consumer, arg)
	for hops := 0; ok; hops++ {
		if hops == maxHops {
			return -1, false
		}
		switch v := t.insts[p].(type) {
		case *il.Other:
			if v.Code == il.Dup {
				p, ok = t.Producer(p, 0)
				continue
			}
		case *il.LoadLocal:
			if v.Address {
				break
			}
			st, found := t.lastStore(p, v.Variable)
			if !found {
				return -1, false
			}
			p, ok = t.Producer(st, 0)
			continue
		}
		return p, true
	}
	return -1, false
}

// lastStore finds the stloc of variable that reaches load along the
// straight-line chain. Taking the local's address on the way makes the
// store unreliable.
func (t *Tracker) lastStore(load, variable int) (int, bool) {
	for i := load - 1; i >= 0; i-- {
		if !t.cfg.StraightLine(i + 1) {
			return -1, false
		}
		switch v := t.insts[i].(type) {
		case *il.StoreLocal:
			if v.Variable == variable {
				return i, true
			}
		case *il.LoadLocal:
			if v.Address && v.Variable == variable {
				return -1, false
			}
		}
	}
	return -1, false
}
