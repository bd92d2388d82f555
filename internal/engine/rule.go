package engine

import (
	"fmt"

	"cilscan/internal/metadata"
)

// Rule is one pluggable analysis. Register is called once by NewDispatcher
// and must call d.Register for every event the rule handles. A rule keeps
// mutable state across events and resets it in its Begin handlers.
type Rule interface {
	CheckID() string
	Name() string
	Register(d *Dispatcher) error
}

// EntityKind is what a violation is attached to.
type EntityKind uint8

const (
	EntityModule EntityKind = iota
	EntityType
	EntityMethod
)

func (k EntityKind) String() string {
	switch k {
	case EntityModule:
		return "module"
	case EntityType:
		return "type"
	case EntityMethod:
		return "method"
	}
	return "?"
}

// Entity identifies the offending module, type or method.
type Entity struct {
	Kind EntityKind
	Name string
}

// Violation is one finding. Offset is the byte offset of the offending
// instruction, or -1 when the finding has no instruction location.
type Violation struct {
	CheckID string
	Entity  Entity
	Offset  int
	Detail  string
}

func (v Violation) String() string {
	s := fmt.Sprintf("%s %s %s", v.CheckID, v.Entity.Kind, v.Entity.Name)
	if v.Offset >= 0 {
		s += fmt.Sprintf(" IL_%04x", v.Offset)
	}
	if v.Detail != "" {
		s += " " + v.Detail
	}
	return s
}

// Reporter receives findings.
type Reporter interface {
	Report(v Violation)
}

// ModuleViolation builds a violation attached to a module.
func ModuleViolation(checkID string, m *metadata.Module, detail string) Violation {
	return Violation{CheckID: checkID, Entity: Entity{Kind: EntityModule, Name: m.Name}, Offset: -1, Detail: detail}
}

// TypeViolation builds a violation attached to a type.
func TypeViolation(checkID string, t *metadata.Type, detail string) Violation {
	return Violation{CheckID: checkID, Entity: Entity{Kind: EntityType, Name: t.FullName}, Offset: -1, Detail: detail}
}

// MethodViolation builds a violation attached to a method; offset may be -1.
func MethodViolation(checkID string, m *metadata.Method, offset int, detail string) Violation {
	return Violation{CheckID: checkID, Entity: Entity{Kind: EntityMethod, Name: m.FullName()}, Offset: offset, Detail: detail}
}

// Collector is a Reporter that keeps violations in memory.
type Collector struct {
	Violations []Violation
}

func (c *Collector) Report(v Violation) {
	c.Violations = append(c.Violations, v)
}

// ByCheck returns the collected violations with the given check ID.
func (c *Collector) ByCheck(checkID string) []Violation {
	var out []Violation
	for _, v := range c.Violations {
		if v.CheckID == checkID {
			out = append(out, v)
		}
	}
	return out
}

// RegistrationError reports a rule that asked for an event it cannot handle.
type RegistrationError struct {
	CheckID string
	Event   EventKind
	Reason  string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("engine: rule %s: register %s: %s", e.CheckID, e.Event, e.Reason)
}

// Fault records a panic recovered from a rule handler.
type Fault struct {
	CheckID string
	Event   EventKind
	Entity  Entity
	Value   any
}

func (f Fault) Error() string {
	return fmt.Sprintf("engine: rule %s faulted in %s on %s %s: %v",
		f.CheckID, f.Event, f.Entity.Kind, f.Entity.Name, f.Value)
}
