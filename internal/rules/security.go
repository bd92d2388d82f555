package rules

import (
	"errors"
	"fmt"
	"strings"

	"cilscan/internal/engine"
	"cilscan/internal/il"
	"cilscan/internal/metadata"
	"cilscan/internal/signal"
)

// ReadOnlyArray flags public types exposing readonly array fields: the
// reference is read-only but the elements are not.
type ReadOnlyArray struct {
	base
	check bool
	names []string
}

func NewReadOnlyArray(rep engine.Reporter) *ReadOnlyArray {
	return &ReadOnlyArray{base: base{id: "S1002", name: "ReadOnlyArray", rep: rep}}
}

func (r *ReadOnlyArray) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginType),
		d.Register(r, engine.EventField),
		d.Register(r, engine.EventEndType),
	)
}

func (r *ReadOnlyArray) BeginType(t *metadata.Type) {
	r.check = t.Public
	r.names = nil
}

func (r *ReadOnlyArray) VisitField(_ *metadata.Type, f *metadata.Field) {
	if r.check && f.InitOnly && (f.Public || f.Family) && f.IsArray() {
		r.names = append(r.names, f.Name)
	}
}

func (r *ReadOnlyArray) EndType(t *metadata.Type) {
	if len(r.names) == 0 {
		return
	}
	r.rep.Report(engine.TypeViolation(r.id, t, "Fields: "+strings.Join(r.names, " ")))
}

// LockThis flags lock(this): any caller holding a reference can take the
// same lock.
type LockThis struct {
	base
	methodScope
}

func NewLockThis(rep engine.Reporter) *LockThis {
	return &LockThis{base: base{id: "MS1003", name: "LockThis", rep: rep}}
}

func (r *LockThis) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventVisitCall),
		d.Register(r, engine.EventEndMethod),
	)
}

func (r *LockThis) BeginMethod(ctx *engine.MethodContext) { r.begin(ctx) }

func (r *LockThis) VisitCall(ctx *engine.MethodContext, call *il.CallInst) {
	if r.found() || ctx.Method.Static {
		return
	}
	t := call.Target
	if !isCallTo(t, "System.Threading.Monitor", "Enter") || len(t.Params) == 0 {
		return
	}
	p, ok := ctx.Tracker().Value(call.Index, argPos(t, 0))
	if !ok {
		return
	}
	if a, isArg := ctx.Instructions[p].(*il.LoadArg); isArg && a.Arg == 0 && !a.Address {
		r.mark(&r.base, call.Offset, "Monitor.Enter(this)")
	}
}

func (r *LockThis) EndMethod(*engine.MethodContext) { r.flush(&r.base, "") }

// keyEntropy is the Shannon entropy above which a literal is treated as key
// material.
const keyEntropy = 3.5

// HardcodedKey flags string literals that look like key material flowing
// straight into a System.Security.Cryptography call or constructor, either
// as a string or through Convert.FromBase64String / Encoding.GetBytes.
type HardcodedKey struct {
	base
	methodScope
	detail string
}

func NewHardcodedKey(rep engine.Reporter) *HardcodedKey {
	return &HardcodedKey{base: base{id: "S1030", name: "HardcodedKey", rep: rep}}
}

func (r *HardcodedKey) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventVisitCall),
		d.Register(r, engine.EventVisitNewObject),
		d.Register(r, engine.EventEndMethod),
	)
}

func (r *HardcodedKey) BeginMethod(ctx *engine.MethodContext) {
	r.begin(ctx)
	r.detail = ""
}

func (r *HardcodedKey) VisitCall(ctx *engine.MethodContext, call *il.CallInst) {
	r.inspect(ctx, call.Index, call.Offset, call.Target)
}

func (r *HardcodedKey) VisitNewObject(ctx *engine.MethodContext, n *il.NewObject) {
	r.inspect(ctx, n.Index, n.Offset, n.Ctor)
}

func (r *HardcodedKey) inspect(ctx *engine.MethodContext, index, offset int, target il.MethodRef) {
	if r.found() || !strings.HasPrefix(target.DeclaringType, "System.Security.Cryptography.") {
		return
	}
	for n := range target.Params {
		lit, ok := r.literal(ctx, index, argPos(target, n))
		if !ok {
			continue
		}
		if detail, isKey := keyMaterial(lit); isKey {
			r.detail = detail
			r.mark(&r.base, offset, "literal key for "+target.DeclaringType+"::"+target.Name)
			return
		}
	}
}

// literal resolves the string literal behind stack position pos, looking
// through one decoding call.
func (r *HardcodedKey) literal(ctx *engine.MethodContext, index, pos int) (string, bool) {
	tr := ctx.Tracker()
	p, ok := tr.Value(index, pos)
	if !ok {
		return "", false
	}
	switch v := ctx.Instructions[p].(type) {
	case *il.LoadString:
		return v.Value, true
	case *il.CallInst:
		if !decodesString(v.Target) {
			return "", false
		}
		q, ok := tr.Value(p, 0)
		if !ok {
			return "", false
		}
		if s, isStr := ctx.Instructions[q].(*il.LoadString); isStr {
			return s.Value, true
		}
	}
	return "", false
}

func decodesString(ref il.MethodRef) bool {
	switch {
	case isCallTo(ref, "System.Convert", "FromBase64String"):
		return true
	case ref.Name == "GetBytes" && strings.HasPrefix(ref.DeclaringType, "System.Text.") &&
		len(ref.Params) == 1 && ref.Params[0] == "System.String":
		return true
	}
	return false
}

func keyMaterial(s string) (string, bool) {
	e := signal.Entropy(s)
	for _, c := range signal.ClassifyString(s) {
		if c == signal.CatBase64Key || (c == signal.CatEncryption && e >= keyEntropy && len(s) >= 16) {
			return fmt.Sprintf("%s entropy=%.2f", c, e), true
		}
	}
	return "", false
}

func (r *HardcodedKey) EndMethod(*engine.MethodContext) { r.flush(&r.base, r.detail) }
