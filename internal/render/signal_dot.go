package render

import (
	"fmt"
	"sort"
	"strings"

	"cilscan/internal/signal"
)

const (
	maxPathLen       = 8 // call hops traced from an entry point
	maxLiteralsShown = 5 // string leaves per method
)

type nodeStyle struct {
	fill, border, font string
	pen                float64
}

var severityStyle = map[string]nodeStyle{
	signal.SeverityHigh:   {fill: "#FCE4EC", border: "#C62828", font: "#C62828", pen: 1.5},
	signal.SeverityMedium: {fill: "#FFF3E0", border: "#E65100", font: "#E65100", pen: 1.2},
	signal.SeverityLow:    {fill: "#E3F2FD", border: "#1565C0", pen: 1.0},
}

var categoryColor = map[string]string{
	signal.CatEncryption: "#C62828",
	signal.CatBase64Key:  "#C62828",
	signal.CatProcess:    "#C62828",
	signal.CatAuth:       "#AD1457",
	signal.CatURL:        "#0B3D91",
	signal.CatHost:       "#0B3D91",
	signal.CatRegistry:   "#6A1B9A",
}

type edge [2]string

// literalLeaf is a string literal drawn next to its method.
type literalLeaf struct {
	id     string
	method string
	label  string
	cat    string // first category
}

// signalView is the subset of a signal graph that SignalDOT draws.
type signalView struct {
	funcs     map[string]*signal.SignalFunc
	calls     map[string][]string
	hasCaller map[string]bool
	targets   map[string]bool // signal methods worth a path
	nodes     map[string]bool
	edges     map[edge]bool
	leaves    []literalLeaf
}

// SignalDOT renders a focused call graph showing paths from entry points to
// signal methods. A forward BFS from the entry points traces the shortest
// path to each reachable signal method and keeps every node on it. Signal
// methods show their classified strings as leaf nodes.
func SignalDOT(g *signal.SignalGraph, title string, t Theme) string {
	v := newSignalView(g)
	v.tracePaths(g)
	v.collapse()
	v.collectLeaves()

	var b strings.Builder
	b.WriteString("digraph signal {\n")
	b.WriteString("  rankdir=LR;\n  compound=true;\n  splines=true;\n  nodesep=0.3;\n  ranksep=0.5;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.10,0.05\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.6, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeCall)
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t; labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	v.writeNodes(&b, t)
	v.writeLeaves(&b, t)
	v.writeEdges(&b, t)

	b.WriteString("}\n")
	return b.String()
}

func newSignalView(g *signal.SignalGraph) *signalView {
	v := &signalView{
		funcs:     make(map[string]*signal.SignalFunc, len(g.Funcs)),
		calls:     make(map[string][]string),
		hasCaller: make(map[string]bool),
		targets:   make(map[string]bool),
		nodes:     make(map[string]bool),
		edges:     make(map[edge]bool),
	}
	for i := range g.Funcs {
		v.funcs[g.Funcs[i].Name] = &g.Funcs[i]
	}
	for _, e := range g.Edges {
		if e.To == "" || e.From == e.To {
			continue
		}
		v.calls[e.From] = append(v.calls[e.From], e.To)
		v.hasCaller[e.To] = true
	}

	// High and medium severity methods, or every signal method when there
	// are none.
	for _, f := range g.Funcs {
		if f.Role == signal.RoleSignal && f.Severity != signal.SeverityLow {
			v.targets[f.Name] = true
		}
	}
	if len(v.targets) == 0 {
		for _, f := range g.Funcs {
			if f.Role == signal.RoleSignal {
				v.targets[f.Name] = true
			}
		}
	}
	return v
}

// tracePaths keeps the shortest path from a root to every target, plus
// calls between targets.
func (v *signalView) tracePaths(g *signal.SignalGraph) {
	parent := make(map[string]string)
	dist := make(map[string]int)
	var frontier []string
	for _, f := range g.Funcs {
		if !v.hasCaller[f.Name] {
			dist[f.Name] = 0
			frontier = append(frontier, f.Name)
		}
	}
	for d := 1; d <= maxPathLen && len(frontier) > 0; d++ {
		var next []string
		for _, name := range frontier {
			for _, callee := range v.calls[name] {
				if _, ok := dist[callee]; ok {
					continue
				}
				dist[callee] = d
				parent[callee] = name
				next = append(next, callee)
			}
		}
		frontier = next
	}

	for name := range v.targets {
		if _, ok := dist[name]; !ok {
			continue
		}
		cur := name
		v.nodes[cur] = true
		for p, ok := parent[cur]; ok; p, ok = parent[cur] {
			v.edges[edge{p, cur}] = true
			v.nodes[p] = true
			cur = p
		}
	}
	for _, e := range g.Edges {
		if v.targets[e.From] && v.targets[e.To] && e.From != e.To {
			v.nodes[e.From] = true
			v.nodes[e.To] = true
			v.edges[edge{e.From, e.To}] = true
		}
	}

	// Targets inside call cycles are unreachable from any root; show them
	// with their direct callees.
	if len(v.edges) == 0 {
		for name := range v.targets {
			v.nodes[name] = true
			for _, callee := range v.calls[name] {
				v.nodes[callee] = true
				v.edges[edge{name, callee}] = true
			}
		}
	}
}

// collapse folds non-target nodes with exactly one edge in and one out.
func (v *signalView) collapse() {
	for changed := true; changed; {
		changed = false
		for _, name := range sortedKeys(v.nodes) {
			if !v.hasCaller[name] || v.targets[name] {
				continue
			}
			var in, out []edge
			for e := range v.edges {
				if e[1] == name {
					in = append(in, e)
				}
				if e[0] == name {
					out = append(out, e)
				}
			}
			if len(in) != 1 || len(out) != 1 {
				continue
			}
			delete(v.edges, in[0])
			delete(v.edges, out[0])
			v.edges[edge{in[0][0], out[0][1]}] = true
			delete(v.nodes, name)
			changed = true
		}
	}
}

// collectLeaves attaches up to maxLiteralsShown distinct literals to each
// drawn target.
func (v *signalView) collectLeaves() {
	for _, name := range sortedKeys(v.nodes) {
		f := v.funcs[name]
		if f == nil || !v.targets[name] {
			continue
		}
		seen := make(map[string]bool)
		for _, sr := range f.StringRefs {
			if seen[sr.Value] {
				continue
			}
			id := fmt.Sprintf("str_%d", len(v.leaves))
			if len(seen) == maxLiteralsShown {
				more := fmt.Sprintf("+%d more", len(f.StringRefs)-maxLiteralsShown)
				v.leaves = append(v.leaves, literalLeaf{id: id, method: name, label: more})
				break
			}
			seen[sr.Value] = true
			leaf := literalLeaf{id: id, method: name, label: truncLabel(sr.Value, 60)}
			if len(sr.Categories) > 0 {
				leaf.cat = sr.Categories[0]
			}
			v.leaves = append(v.leaves, leaf)
		}
	}
}

// writeNodes groups nodes by declaring type; types with a single drawn
// method are not clustered.
func (v *signalView) writeNodes(b *strings.Builder, t Theme) {
	byOwner := make(map[string][]string)
	var loose []string
	for name := range v.nodes {
		if f := v.funcs[name]; f != nil && f.Owner != "" {
			byOwner[f.Owner] = append(byOwner[f.Owner], name)
		} else {
			loose = append(loose, name)
		}
	}

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		names := byOwner[owner]
		if len(names) < 2 {
			loose = append(loose, names...)
			continue
		}
		sort.Strings(names)
		fmt.Fprintf(b, "  subgraph cluster_%s {\n", dotID(owner))
		fmt.Fprintf(b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n", t.ClusterLabel, dotEscape(owner))
		fmt.Fprintf(b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, name := range names {
			v.writeNode(b, "    ", name, t)
		}
		b.WriteString("  }\n")
	}
	sort.Strings(loose)
	for _, name := range loose {
		v.writeNode(b, "  ", name, t)
	}
	b.WriteByte('\n')
}

func (v *signalView) writeNode(b *strings.Builder, indent, name string, t Theme) {
	lines := []string{truncLabel(shortMethod(name), 40)}
	var attrs string
	switch f := v.funcs[name]; {
	case v.targets[name]:
		s := severityStyle[f.Severity]
		attrs = fmt.Sprintf(`, fillcolor=%q, color=%q, penwidth=%.1f`, s.fill, s.border, s.pen)
		if s.font != "" {
			attrs += fmt.Sprintf(`, fontcolor=%q`, s.font)
		}
		if len(f.Categories) > 0 {
			lines = append(lines, truncLabel(strings.Join(f.Categories, ","), 30))
		}
	case !v.hasCaller[name]:
		attrs = fmt.Sprintf(`, fillcolor="#E8F5E9", color=%q, penwidth=1.2`, t.EntryBorder)
	default:
		attrs = `, fillcolor="#F5F5F5", color="#BDBDBD", fontcolor="#757575"`
	}
	fmt.Fprintf(b, "%s%s [label=%s%s];\n", indent, dotID(name), dotQuote(lines...), attrs)
}

func (v *signalView) writeLeaves(b *strings.Builder, t Theme) {
	if len(v.leaves) == 0 {
		return
	}
	b.WriteString("  // String literals\n")
	for _, l := range v.leaves {
		color, ok := categoryColor[l.cat]
		if !ok {
			color = t.EdgeString
		}
		fmt.Fprintf(b, "  %s [shape=rect, style=\"filled,rounded\", fillcolor=\"#FFF8E1\", color=%q, penwidth=0.3, fontsize=7, fontcolor=%q, fontname=\"Courier,monospace\", margin=\"0.06,0.03\", height=0.2, label=%s];\n",
			l.id, color, color, dotQuote(l.label))
	}
	b.WriteByte('\n')
}

func (v *signalView) writeEdges(b *strings.Builder, t Theme) {
	edges := make([]edge, 0, len(v.edges))
	for e := range v.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	for _, e := range edges {
		attrs := fmt.Sprintf("color=%q", t.EdgeCall)
		if v.targets[e[1]] {
			attrs = fmt.Sprintf("color=%q, penwidth=1.0", t.EdgeSignal)
		}
		fmt.Fprintf(b, "  %s -> %s [%s];\n", dotID(e[0]), dotID(e[1]), attrs)
	}
	for _, l := range v.leaves {
		fmt.Fprintf(b, "  %s -> %s [style=dotted, arrowsize=0.3, penwidth=0.4, color=%q];\n",
			dotID(l.method), l.id, t.EdgeString)
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
