package rules

import (
	"cilscan/internal/engine"
	"cilscan/internal/metadata"
)

// UnsealedAttribute flags public attribute classes that are neither sealed
// nor abstract; attribute lookup is faster on sealed types.
type UnsealedAttribute struct {
	base
}

func NewUnsealedAttribute(rep engine.Reporter) *UnsealedAttribute {
	return &UnsealedAttribute{base: base{id: "P1013", name: "UnsealedAttribute", rep: rep}}
}

func (r *UnsealedAttribute) Register(d *engine.Dispatcher) error {
	return d.Register(r, engine.EventBeginType)
}

func (r *UnsealedAttribute) BeginType(t *metadata.Type) {
	if !t.Public || t.Sealed || t.Abstract {
		return
	}
	if t.Module.IsSubtypeOf(t, "System.Attribute") {
		r.rep.Report(engine.TypeViolation(r.id, t, ""))
	}
}
