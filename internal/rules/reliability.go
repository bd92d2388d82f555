package rules

import (
	"errors"

	"cilscan/internal/engine"
	"cilscan/internal/il"
	"cilscan/internal/metadata"
)

// ZeroSleep flags Thread.Sleep(0), which only yields to threads of equal
// priority and can starve the rest.
type ZeroSleep struct {
	base
	methodScope
}

func NewZeroSleep(rep engine.Reporter) *ZeroSleep {
	return &ZeroSleep{base: base{id: "R1017", name: "ZeroSleep", rep: rep}}
}

func (r *ZeroSleep) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventVisitCall),
		d.Register(r, engine.EventEndMethod),
	)
}

func (r *ZeroSleep) BeginMethod(ctx *engine.MethodContext) { r.begin(ctx) }

func (r *ZeroSleep) VisitCall(ctx *engine.MethodContext, call *il.CallInst) {
	if r.found() {
		return
	}
	t := call.Target
	if !isCallTo(t, "System.Threading.Thread", "Sleep") || len(t.Params) != 1 || t.Params[0] != "System.Int32" {
		return
	}
	p, ok := ctx.Tracker().Value(call.Index, argPos(t, 0))
	if ok && isZero(ctx.Instructions[p]) {
		r.mark(&r.base, call.Offset, "Sleep(0)")
	}
}

func (r *ZeroSleep) EndMethod(*engine.MethodContext) { r.flush(&r.base, "") }

const (
	serializationInfo = "System.Runtime.Serialization.SerializationInfo"
	streamingContext  = "System.Runtime.Serialization.StreamingContext"
)

// ISerializableMethods flags types that declare the serialization
// constructor or GetObjectData without implementing ISerializable, so the
// formatter never calls them.
type ISerializableMethods struct {
	base
	notSerializable bool
	hasMethod       bool
}

func NewISerializableMethods(rep engine.Reporter) *ISerializableMethods {
	return &ISerializableMethods{base: base{id: "R1041", name: "ISerializableMethods", rep: rep}}
}

func (r *ISerializableMethods) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethods),
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventEndMethods),
	)
}

func (r *ISerializableMethods) BeginMethods(t *metadata.Type) {
	r.notSerializable = !t.Module.Implements(t, "System.Runtime.Serialization.ISerializable")
	r.hasMethod = false
}

func (r *ISerializableMethods) BeginMethod(ctx *engine.MethodContext) {
	if !r.notSerializable || r.hasMethod {
		return
	}
	m := ctx.Method
	switch {
	case m.Name == ".ctor" && len(m.Params) == 2 &&
		m.Params[0].Type == serializationInfo && m.Params[1].Type == streamingContext:
		log.Debugf("%s: serialization constructor in %s", r.id, ctx.Type.FullName)
		r.hasMethod = true
	case m.Matches("System.Void", "GetObjectData", serializationInfo, streamingContext):
		log.Debugf("%s: GetObjectData in %s", r.id, ctx.Type.FullName)
		r.hasMethod = true
	}
}

func (r *ISerializableMethods) EndMethods(t *metadata.Type) {
	if r.notSerializable && r.hasMethod {
		r.rep.Report(engine.TypeViolation(r.id, t, ""))
	}
}
