// Package render produces Graphviz DOT output for method CFGs and the
// string signal graph.
package render

import (
	"fmt"
	"strings"
)

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID creates a safe DOT identifier from a method name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// shortMethod reduces a full method name to its Type::Name part.
// "System.Void Ns.C::Run(System.String)" → "C::Run". Names that are not
// in that form are returned unchanged.
func shortMethod(full string) string {
	s := full
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	sep := strings.Index(s, "::")
	if sep < 0 {
		return full
	}
	owner, name := s[:sep], s[sep+2:]
	if i := strings.LastIndexByte(owner, ' '); i >= 0 {
		owner = owner[i+1:]
	}
	return shortType(owner) + "::" + name
}

// shortType drops the namespace of a type name, keeping nested type names.
func shortType(full string) string {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[i+1:]
	}
	return full
}

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// dotQuote renders lines as one quoted DOT label, separated by \n.
func dotQuote(lines ...string) string {
	esc := make([]string, len(lines))
	for i, l := range lines {
		l = strings.ReplaceAll(l, `\`, `\\`)
		esc[i] = strings.ReplaceAll(l, `"`, `\"`)
	}
	return `"` + strings.Join(esc, `\n`) + `"`
}
