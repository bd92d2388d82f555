package rules

import (
	"errors"
	"strings"

	"cilscan/internal/engine"
	"cilscan/internal/il"
	"cilscan/internal/metadata"
)

// PathCombine flags String.Concat calls with a literal that contains a
// path separator. Path.Combine is portable across platforms.
type PathCombine struct {
	base
	methodScope
}

func NewPathCombine(rep engine.Reporter) *PathCombine {
	return &PathCombine{base: base{id: "PO1006", name: "PathCombine", rep: rep}}
}

func (r *PathCombine) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventVisitCall),
		d.Register(r, engine.EventEndMethod),
	)
}

func (r *PathCombine) BeginMethod(ctx *engine.MethodContext) { r.begin(ctx) }

func (r *PathCombine) VisitCall(ctx *engine.MethodContext, call *il.CallInst) {
	if r.found() {
		return
	}
	t := call.Target
	if !isCallTo(t, "System.String", "Concat") || t.ReturnType != "System.String" {
		return
	}
	for n := range t.Params {
		p, ok := ctx.Tracker().Producer(call.Index, argPos(t, n))
		if !ok {
			continue
		}
		if s, isStr := ctx.Instructions[p].(*il.LoadString); isStr && hasPathSeparator(s.Value) {
			r.mark(&r.base, call.Offset, "concat of "+s.Value)
			return
		}
	}
}

func (r *PathCombine) EndMethod(*engine.MethodContext) { r.flush(&r.base, "") }

// hasPathSeparator reports a backslash, or a slash that is neither the end
// of a markup "</" nor the start of a "//" URL scheme separator.
func hasPathSeparator(s string) bool {
	if strings.Contains(s, `\`) {
		return true
	}
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return false
	}
	if i > 0 && s[i-1] == '<' {
		return false
	}
	if i+1 < len(s) && s[i+1] == '/' {
		return false
	}
	return true
}

// DllImportExtension flags P/Invoke library names with an extension, which
// stops the runtime from mapping the name to the platform's library.
type DllImportExtension struct {
	base
}

func NewDllImportExtension(rep engine.Reporter) *DllImportExtension {
	return &DllImportExtension{base: base{id: "PO1002", name: "DllImportExtension", rep: rep}}
}

func (r *DllImportExtension) Register(d *engine.Dispatcher) error {
	return d.Register(r, engine.EventMethod)
}

func (r *DllImportExtension) VisitMethod(m *metadata.Method) {
	if !m.IsPInvoke() {
		return
	}
	if lib := m.PInvoke.Module; strings.Contains(lib, ".") {
		log.Debugf("%s: library %q has an extension", r.id, lib)
		r.rep.Report(engine.MethodViolation(r.id, m, -1, lib))
	}
}
