package render

import (
	"fmt"
	"sort"
	"strings"

	"cilscan/internal/il"
)

// maxBlockLines is the longest block listing drawn in full; longer blocks
// keep their first and last blockEdgeLines.
const (
	maxBlockLines  = 12
	blockEdgeLines = 5
)

// CFGDOT renders a per-method basic-block CFG as DOT.
// Each basic block is a node listing its instructions; edges represent
// control flow. Entry blocks are highlighted and conditional edges use T/F
// colors. marks maps instruction offsets to the check IDs reported there;
// marked lines are annotated and their block outlined.
func CFGDOT(cfg il.FuncCFG, marks map[int]string, t Theme) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n  nodesep=0.3;\n  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	b.WriteString("  labelloc=t;\n  labeljust=l;\n")
	title := dotEscape(cfg.Name)
	if s := markSummary(marks); s != "" {
		title += fmt.Sprintf("<br/><font color=\"%s\">%s</font>", t.FindingColor, dotEscape(s))
	}
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, title)
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		label, marked := blockLabel(cfg.Insts, blk, marks, t)
		var attrs string
		switch {
		case marked:
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.FindingColor)
		case blk.IsEntry:
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryBorder)
		}
		if blk.IsTerm {
			attrs += fmt.Sprintf(", fillcolor=%q", t.TermFill)
		}
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		for _, s := range blk.Succs {
			fmt.Fprintf(&b, "  bb%d -> bb%d [%s];\n", blk.ID, s.BlockID, edgeAttrs(s.Cond, t))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// blockLabel lists the block's instructions as left-aligned HTML lines and
// reports whether any of them carries a mark.
func blockLabel(insts il.Instructions, blk il.BasicBlock, marks map[int]string, t Theme) (string, bool) {
	annotate := func(inst il.Instruction) string {
		return marks[inst.Header().Offset]
	}
	end := min(blk.End, len(insts))

	marked := false
	var lines []string
	for i := blk.Start; i < end; i++ {
		line := dotEscape(strings.TrimSuffix(il.Format(insts[i:i+1], annotate), "\n"))
		if annotate(insts[i]) != "" {
			marked = true
			line = fmt.Sprintf("<font color=\"%s\">%s</font>", t.FindingColor, line)
		}
		lines = append(lines, line)
	}
	if len(lines) > maxBlockLines {
		elided := fmt.Sprintf("... (%d more)", len(lines)-2*blockEdgeLines)
		head := append(lines[:blockEdgeLines:blockEdgeLines], elided)
		lines = append(head, lines[len(lines)-blockEdgeLines:]...)
	}
	return strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>", marked
}

func edgeAttrs(cond string, t Theme) string {
	var color string
	switch cond {
	case "T":
		color = t.EdgeTrue
	case "F":
		color = t.EdgeFalse
	default:
		return fmt.Sprintf("color=%q", t.EdgeCall)
	}
	return fmt.Sprintf("color=%q, label=<<font point-size=\"7\" color=\"%s\">%s</font>>", color, color, cond)
}

// markSummary counts marks per check ID: "R1017 x2, S1030 x1".
func markSummary(marks map[int]string) string {
	counts := make(map[string]int)
	for _, ids := range marks {
		for _, id := range strings.Fields(ids) {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return ""
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s x%d", id, counts[id])
	}
	return strings.Join(parts, ", ")
}
