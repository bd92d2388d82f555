// Package callgraph builds call graphs and control flow graphs of a module
// in lattice form, plus the inputs of the string signal graph.
package callgraph

import (
	"github.com/tliron/commonlog"
	"github.com/zboralski/lattice"

	"cilscan/internal/il"
	"cilscan/internal/metadata"
	"cilscan/internal/signal"
)

var log = commonlog.GetLogger("cilscan.callgraph")

// FuncInfo holds the data needed to build call graph and CFG for one method.
type FuncInfo struct {
	Name    string
	Owner   string // declaring type
	Insts   il.Instructions
	Entries []int // exception handler entry offsets
}

// Collect decodes every method body of mod. Methods whose body cannot be
// read or decoded are logged and counted in skipped.
func Collect(mod *metadata.Module) (funcs []FuncInfo, skipped int) {
	mod.Index()
	for _, t := range mod.Types {
		if t.External {
			continue
		}
		for _, m := range t.Methods {
			if m.Body == nil {
				continue
			}
			raw, err := m.Body.RawInstructions()
			var insts il.Instructions
			if err == nil {
				insts, err = il.Decode(raw)
			}
			if err != nil {
				log.Warningf("skipping %s: %s", m.FullName(), err)
				skipped++
				continue
			}
			funcs = append(funcs, FuncInfo{
				Name:    m.FullName(),
				Owner:   t.FullName,
				Insts:   insts,
				Entries: m.Body.Entries(),
			})
		}
	}
	return funcs, skipped
}

// callee returns the target of a call or newobj.
func callee(inst il.Instruction) (string, bool) {
	switch v := inst.(type) {
	case *il.CallInst:
		return v.Target.String(), true
	case *il.NewObject:
		return v.Ctor.String(), true
	}
	return "", false
}

// BuildCallGraph constructs a lattice.Graph from decoded methods. Each
// method becomes a node; each call or newobj becomes an edge to the target's
// full name.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, inst := range f.Insts {
			if c, ok := callee(inst); ok {
				g.Edges = append(g.Edges, lattice.Edge{Caller: f.Name, Callee: c})
			}
		}
	}
	g.Dedup()
	return g
}

// SignalInputs extracts the methods, call edges and string literals the
// signal graph is built from.
func SignalInputs(funcs []FuncInfo) ([]signal.Func, []signal.Edge, []signal.StringRef) {
	var (
		sf    []signal.Func
		edges []signal.Edge
		refs  []signal.StringRef
	)
	for _, f := range funcs {
		sf = append(sf, signal.Func{Name: f.Name, Owner: f.Owner, Size: len(f.Insts)})
		for _, inst := range f.Insts {
			if c, ok := callee(inst); ok {
				edges = append(edges, signal.Edge{From: f.Name, To: c})
			}
			if s, ok := inst.(*il.LoadString); ok {
				refs = append(refs, signal.StringRef{Func: f.Name, Offset: s.Offset, Value: s.Value})
			}
		}
	}
	return sf, edges, refs
}
