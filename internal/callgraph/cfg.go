package callgraph

import (
	"fmt"
	"strings"

	"github.com/zboralski/lattice"

	"cilscan/internal/il"
)

// BuildCFG constructs a lattice.CFGGraph from decoded methods. Each
// FuncInfo is converted with il.BuildCFG then mapped to lattice types.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := BuildFuncCFG(f)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds a single-method lattice.FuncCFG. It also returns the
// number of basic blocks so callers can drop trivial methods.
func BuildFuncCFG(f FuncInfo) (*lattice.FuncCFG, int) {
	icfg := il.BuildCFG(f.Name, f.Insts, f.Entries...)
	return convertFuncCFG(&icfg), len(icfg.Blocks)
}

// BuildSignalFuncCFG builds a single-block summary of a method: each
// interesting callee and each string literal once, in stream order.
func BuildSignalFuncCFG(f FuncInfo) *lattice.FuncCFG {
	seen := make(map[string]bool)
	var calls []lattice.CallSite
	for _, inst := range f.Insts {
		label := ""
		if c, ok := callee(inst); ok && isInterestingCallee(inst) {
			label = c
		} else if s, ok := inst.(*il.LoadString); ok {
			label = stringLabel(s.Value)
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		calls = append(calls, lattice.CallSite{Offset: len(calls), Callee: label})
	}

	lcfg := &lattice.FuncCFG{Name: f.Name}
	if len(calls) > 0 {
		lcfg.Blocks = append(lcfg.Blocks, &lattice.BasicBlock{
			ID:    0,
			Start: 0,
			End:   1,
			Term:  true,
			Calls: calls,
		})
	}
	return lcfg
}

// isInterestingCallee drops calls that every method makes: base
// constructors and compiler helpers.
func isInterestingCallee(inst il.Instruction) bool {
	var ref il.MethodRef
	switch v := inst.(type) {
	case *il.CallInst:
		ref = v.Target
	case *il.NewObject:
		ref = v.Ctor
	default:
		return false
	}
	switch {
	case ref.DeclaringType == "System.Object":
		return false
	case strings.HasPrefix(ref.DeclaringType, "System.Runtime.CompilerServices."):
		return false
	case strings.HasPrefix(ref.Name, "get_") || strings.HasPrefix(ref.Name, "set_"):
		return false
	}
	return true
}

func stringLabel(s string) string {
	if len(s) > 50 {
		s = s[:47] + "..."
	}
	return fmt.Sprintf("%q", s)
}

// convertFuncCFG maps an il.FuncCFG to a lattice.FuncCFG. Calls and string
// literals are attached to the block that contains them, keyed by
// instruction index.
func convertFuncCFG(icfg *il.FuncCFG) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: icfg.Name}
	for _, ib := range icfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    ib.ID,
			Start: ib.Start,
			End:   ib.End,
			Term:  ib.IsTerm,
		}
		for _, s := range ib.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: s.BlockID,
				Cond:    s.Cond,
			})
		}
		for idx := ib.Start; idx < ib.End && idx < len(icfg.Insts); idx++ {
			inst := icfg.Insts[idx]
			if c, ok := callee(inst); ok {
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: c})
			} else if s, ok := inst.(*il.LoadString); ok {
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: stringLabel(s.Value)})
			}
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
