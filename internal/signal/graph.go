package signal

import (
	"sort"
)

// Roles of a method in the signal graph.
const (
	RoleSignal  = "signal"  // holds a classified string literal
	RoleContext = "context" // within k call hops of a signal method
)

// Func is a method considered for the signal graph.
type Func struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
	Size  int    `json:"size"` // instruction count
}

// StringRef is an ldstr in a method.
type StringRef struct {
	Func   string `json:"func"`
	Offset int    `json:"offset"`
	Value  string `json:"value"`
}

// Edge is a call from one method to another.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ClassifiedStringRef is a string reference with its signal categories.
type ClassifiedStringRef struct {
	StringRef
	Categories []string `json:"categories,omitempty"`
}

// SignalFunc is a method in the signal graph.
type SignalFunc struct {
	Func
	StringRefs   []ClassifiedStringRef `json:"string_refs,omitempty"`
	Categories   []string              `json:"categories"`
	Severity     string                `json:"severity,omitempty"`
	Role         string                `json:"role"` // RoleSignal, RoleContext or empty
	IsEntryPoint bool                  `json:"is_entry_point,omitempty"`
}

// SignalGraph is the complete signal graph.
type SignalGraph struct {
	Funcs []SignalFunc `json:"funcs"`
	Edges []Edge       `json:"edges"`
	Stats SignalStats  `json:"stats"`
}

// SignalStats holds summary statistics.
type SignalStats struct {
	TotalFuncs     int            `json:"total_funcs"`
	SignalFuncs    int            `json:"signal_funcs"`
	ContextFuncs   int            `json:"context_funcs"`
	TotalEdges     int            `json:"total_edges"`
	StringRefCount int            `json:"string_ref_count"`
	Categories     map[string]int `json:"categories"` // methods per category
}

// BuildSignalGraph marks methods holding classified string literals as
// signal methods and every method within k call hops of one (either
// direction) as context. Entry points are methods with no incoming edge.
func BuildSignalGraph(funcs []Func, edges []Edge, refs []StringRef, k int) *SignalGraph {
	b := graphBuilder{
		hits:    make(map[string]*hit),
		callees: make(map[string][]string),
		callers: make(map[string][]string),
		context: make(map[string]bool),
	}
	b.classify(refs)
	b.link(edges)
	b.expand(k)

	catCounts := make(map[string]int)
	for _, h := range b.hits {
		for _, c := range h.categories {
			catCounts[c]++
		}
	}
	return &SignalGraph{
		Funcs: b.assemble(funcs),
		Edges: b.edges,
		Stats: SignalStats{
			TotalFuncs:     len(funcs),
			SignalFuncs:    len(b.hits),
			ContextFuncs:   len(b.context),
			TotalEdges:     len(b.edges),
			StringRefCount: len(refs),
			Categories:     catCounts,
		},
	}
}

// hit is the classified literals of one signal method.
type hit struct {
	refs       []ClassifiedStringRef
	categories []string // sorted, unique
}

type graphBuilder struct {
	hits    map[string]*hit
	edges   []Edge
	callees map[string][]string
	callers map[string][]string
	context map[string]bool
}

func (b *graphBuilder) classify(refs []StringRef) {
	for _, sr := range refs {
		cats := ClassifyString(sr.Value)
		if len(cats) == 0 {
			continue
		}
		h, ok := b.hits[sr.Func]
		if !ok {
			h = &hit{}
			b.hits[sr.Func] = h
		}
		h.refs = append(h.refs, ClassifiedStringRef{StringRef: sr, Categories: cats})
		for _, c := range cats {
			i := sort.SearchStrings(h.categories, c)
			if i < len(h.categories) && h.categories[i] == c {
				continue
			}
			h.categories = append(h.categories, "")
			copy(h.categories[i+1:], h.categories[i:])
			h.categories[i] = c
		}
	}
}

// link dedupes edges and indexes them both ways. Edges to an unnamed
// callee are dropped.
func (b *graphBuilder) link(edges []Edge) {
	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if e.To == "" || seen[e] {
			continue
		}
		seen[e] = true
		b.edges = append(b.edges, e)
		b.callees[e.From] = append(b.callees[e.From], e.To)
		b.callers[e.To] = append(b.callers[e.To], e.From)
	}
}

// expand marks every method within k hops of a signal method as context.
func (b *graphBuilder) expand(k int) {
	visited := make(map[string]bool, len(b.hits))
	var frontier []string
	for name := range b.hits {
		visited[name] = true
		frontier = append(frontier, name)
	}
	for depth := 0; depth < k && len(frontier) > 0; depth++ {
		var next []string
		for _, name := range frontier {
			for _, adj := range [][]string{b.callees[name], b.callers[name]} {
				for _, n := range adj {
					if visited[n] {
						continue
					}
					visited[n] = true
					b.context[n] = true
					next = append(next, n)
				}
			}
		}
		frontier = next
	}
}

var (
	roleRank     = map[string]int{RoleSignal: 0, RoleContext: 1, "": 2}
	severityRank = map[string]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2, "": 3}
)

// assemble orders signal methods first, then context, then the rest.
// Within signal methods entry points come first, then severity, then the
// number of categories.
func (b *graphBuilder) assemble(funcs []Func) []SignalFunc {
	out := make([]SignalFunc, 0, len(funcs))
	for _, f := range funcs {
		sf := SignalFunc{Func: f, IsEntryPoint: len(b.callers[f.Name]) == 0}
		if h, ok := b.hits[f.Name]; ok {
			sf.Role = RoleSignal
			sf.StringRefs = h.refs
			sf.Categories = h.categories
			sf.Severity = MaxSeverity(h.categories)
		} else if b.context[f.Name] {
			sf.Role = RoleContext
		}
		out = append(out, sf)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := &out[i], &out[j]
		if si.Role != sj.Role {
			return roleRank[si.Role] < roleRank[sj.Role]
		}
		if si.Role == RoleSignal && si.IsEntryPoint != sj.IsEntryPoint {
			return si.IsEntryPoint
		}
		if si.Severity != sj.Severity {
			return severityRank[si.Severity] < severityRank[sj.Severity]
		}
		if len(si.Categories) != len(sj.Categories) {
			return len(si.Categories) > len(sj.Categories)
		}
		return si.Name < sj.Name
	})
	return out
}
