// Package rules holds the built-in checks run by cilscan.
package rules

import (
	"strings"

	"github.com/tliron/commonlog"

	"cilscan/internal/engine"
	"cilscan/internal/il"
)

var log = commonlog.GetLogger("cilscan.rules")

// All returns every built-in rule reporting to rep, in a fixed order.
func All(rep engine.Reporter) []engine.Rule {
	return []engine.Rule{
		NewArrayIndexOf(rep),
		NewRecursiveEquality(rep),
		NewZeroSleep(rep),
		NewPathCombine(rep),
		NewPreferMonitor(rep),
		NewNativeMethods(rep),
		NewDllImportExtension(rep),
		NewUnsealedAttribute(rep),
		NewTypedEnumerator(rep),
		NewISerializableMethods(rep),
		NewReadOnlyArray(rep),
		NewLockThis(rep),
		NewTooManyArgs(rep),
		NewHardcodedKey(rep),
	}
}

// Select drops the rules whose check IDs are listed in disabled. IDs are
// compared case-insensitively.
func Select(all []engine.Rule, disabled []string) []engine.Rule {
	if len(disabled) == 0 {
		return all
	}
	off := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		off[strings.ToUpper(strings.TrimSpace(id))] = true
	}
	var out []engine.Rule
	for _, r := range all {
		if off[strings.ToUpper(r.CheckID())] {
			log.Infof("rule %s (%s) disabled", r.CheckID(), r.Name())
			continue
		}
		out = append(out, r)
	}
	return out
}

// base carries the identity shared by every rule.
type base struct {
	id   string
	name string
	rep  engine.Reporter
}

func (b *base) CheckID() string { return b.id }
func (b *base) Name() string    { return b.name }

// methodScope is the per-method state of a rule that reports the first
// offending instruction of each method. begin replaces it wholesale.
type methodScope struct {
	ctx    *engine.MethodContext
	offset int
}

func (s *methodScope) begin(ctx *engine.MethodContext) {
	*s = methodScope{ctx: ctx, offset: -1}
}

func (s *methodScope) found() bool { return s.offset >= 0 }

func (s *methodScope) mark(b *base, offset int, what string) {
	s.offset = offset
	log.Debugf("%s: %s at IL_%04x in %s", b.id, what, offset, s.ctx.Method.FullName())
}

// flush reports the marked instruction, if any.
func (s *methodScope) flush(b *base, detail string) {
	if s.found() {
		b.rep.Report(engine.MethodViolation(b.id, s.ctx.Method, s.offset, detail))
	}
}

// argPos is the stack position, counted from the top, of parameter n of a
// call to ref on entry to the call.
func argPos(ref il.MethodRef, n int) int {
	return len(ref.Params) - 1 - n
}

// isCallTo reports whether ref is declType::name.
func isCallTo(ref il.MethodRef, declType, name string) bool {
	return ref.DeclaringType == declType && ref.Name == name
}
