package rules

import (
	"errors"
	"fmt"

	"cilscan/internal/engine"
	"cilscan/internal/il"
	"cilscan/internal/metadata"
)

// PreferMonitor flags named Mutex and Semaphore objects. They are kernel
// objects shared across processes; in-process locking should use Monitor.
type PreferMonitor struct {
	base
	methodScope
}

func NewPreferMonitor(rep engine.Reporter) *PreferMonitor {
	return &PreferMonitor{base: base{id: "D1056", name: "PreferMonitor", rep: rep}}
}

func (r *PreferMonitor) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventVisitNewObject),
		d.Register(r, engine.EventEndMethod),
	)
}

func (r *PreferMonitor) BeginMethod(ctx *engine.MethodContext) { r.begin(ctx) }

func (r *PreferMonitor) VisitNewObject(_ *engine.MethodContext, n *il.NewObject) {
	if r.found() {
		return
	}
	c := n.Ctor
	if c.DeclaringType != "System.Threading.Mutex" && c.DeclaringType != "System.Threading.Semaphore" {
		return
	}
	for _, p := range c.Params {
		if p == "System.String" {
			r.mark(&r.base, n.Offset, "named "+c.DeclaringType)
			return
		}
	}
}

func (r *PreferMonitor) EndMethod(*engine.MethodContext) { r.flush(&r.base, "") }

// NativeMethods flags P/Invoke declarations outside the NativeMethods,
// SafeNativeMethods and UnsafeNativeMethods classes.
type NativeMethods struct {
	base
}

func NewNativeMethods(rep engine.Reporter) *NativeMethods {
	return &NativeMethods{base: base{id: "D1020", name: "NativeMethods", rep: rep}}
}

func (r *NativeMethods) Register(d *engine.Dispatcher) error {
	return d.Register(r, engine.EventMethod)
}

func (r *NativeMethods) VisitMethod(m *metadata.Method) {
	if !m.IsPInvoke() || m.Type == nil {
		return
	}
	switch name := m.Type.Name(); name {
	case "NativeMethods", "SafeNativeMethods", "UnsafeNativeMethods":
	default:
		log.Debugf("%s: p/invoke declared in %s", r.id, name)
		r.rep.Report(engine.MethodViolation(r.id, m, -1, ""))
	}
}

// TypedEnumerator flags IEnumerator implementations without a strongly
// typed Current property.
type TypedEnumerator struct {
	base
}

func NewTypedEnumerator(rep engine.Reporter) *TypedEnumerator {
	return &TypedEnumerator{base: base{id: "D1011", name: "TypedEnumerator", rep: rep}}
}

func (r *TypedEnumerator) Register(d *engine.Dispatcher) error {
	return d.Register(r, engine.EventBeginType)
}

func (r *TypedEnumerator) BeginType(t *metadata.Type) {
	if t.IsCompilerGenerated() || !t.Module.Implements(t, "System.Collections.IEnumerator") {
		return
	}
	for _, p := range t.Property("Current") {
		if p.PropertyType != "System.Object" {
			return
		}
	}
	log.Debugf("%s: no strongly typed Current in %s", r.id, t.FullName)
	r.rep.Report(engine.TypeViolation(r.id, t, ""))
}

// maxArgs is the largest parameter count TooManyArgs accepts.
const maxArgs = 5

// TooManyArgs flags methods with more than maxArgs parameters. P/Invoke
// signatures and overrides are dictated elsewhere and are skipped.
type TooManyArgs struct {
	base
}

func NewTooManyArgs(rep engine.Reporter) *TooManyArgs {
	return &TooManyArgs{base: base{id: "D1045", name: "TooManyArgs", rep: rep}}
}

func (r *TooManyArgs) Register(d *engine.Dispatcher) error {
	return d.Register(r, engine.EventMethod)
}

func (r *TooManyArgs) VisitMethod(m *metadata.Method) {
	if len(m.Params) <= maxArgs || m.IsPInvoke() || m.IsOverride() {
		return
	}
	r.rep.Report(engine.MethodViolation(r.id, m, -1, fmt.Sprintf("%d arguments", len(m.Params))))
}
