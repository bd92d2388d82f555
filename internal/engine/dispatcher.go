// Package engine replays the types, methods and instructions of a module to
// registered rules as typed events.
package engine

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"cilscan/internal/il"
	"cilscan/internal/metadata"
	"cilscan/internal/stack"
)

var log = commonlog.GetLogger("cilscan.engine")

// Announcer is told about each unit of work before it starts.
type Announcer interface {
	Announce(name string)
}

// Options configures a Dispatcher.
type Options struct {
	// Watchdog, when set, is announced before each type and method body.
	Watchdog Announcer
}

// Stats summarises one Run.
type Stats struct {
	Types        int
	Methods      int
	Instructions int
	Skipped      int // methods whose body could not be read or decoded
	Faults       []Fault
}

// MethodContext is the per-method state shared by all rules during one
// method's events.
type MethodContext struct {
	Module       *metadata.Module
	Type         *metadata.Type
	Method       *metadata.Method
	Instructions il.Instructions

	entries []int
	tracker *stack.Tracker
}

// Tracker returns the stack tracker for the method, building it on first
// use.
func (c *MethodContext) Tracker() *stack.Tracker {
	if c.tracker == nil {
		c.tracker = stack.New(c.Instructions, c.entries...)
	}
	return c.tracker
}

type handler struct {
	rule int // index into Dispatcher.rules
	fn   func(*event)
}

// Dispatcher routes events to rules. Handlers for one event run in rule
// registration order.
type Dispatcher struct {
	opts     Options
	rules    []Rule
	ruleIdx  map[Rule]int
	handlers [numEvents][]handler

	disabled []bool
	stats    Stats
	entity   Entity
}

// NewDispatcher registers every rule. The returned error joins all
// registration errors; a dispatcher with registration errors must not run.
func NewDispatcher(opts Options, rules ...Rule) (*Dispatcher, error) {
	d := &Dispatcher{opts: opts, ruleIdx: make(map[Rule]int, len(rules))}
	var errs []error
	for _, r := range rules {
		if err := r.Register(d); err != nil {
			errs = append(errs, err)
		}
	}
	return d, errors.Join(errs...)
}

// Register subscribes rule to kind. The rule must implement the handler
// interface of kind.
func (d *Dispatcher) Register(rule Rule, kind EventKind) error {
	if kind >= numEvents {
		return &RegistrationError{CheckID: rule.CheckID(), Event: kind, Reason: "unknown event"}
	}
	fn, ok := bind(rule, kind)
	if !ok {
		return &RegistrationError{CheckID: rule.CheckID(), Event: kind, Reason: "handler not implemented"}
	}
	idx, known := d.ruleIdx[rule]
	if !known {
		idx = len(d.rules)
		d.rules = append(d.rules, rule)
		d.ruleIdx[rule] = idx
	}
	for _, h := range d.handlers[kind] {
		if h.rule == idx {
			return &RegistrationError{CheckID: rule.CheckID(), Event: kind, Reason: "registered twice"}
		}
	}
	d.handlers[kind] = append(d.handlers[kind], handler{rule: idx, fn: fn})
	return nil
}

// Rules returns the registered rules in registration order.
func (d *Dispatcher) Rules() []Rule { return d.rules }

// Run walks one module. Rule faults do not stop the run; they are recorded
// in Stats.Faults and the faulting rule receives no further events for the
// module.
func (d *Dispatcher) Run(mod *metadata.Module) (Stats, error) {
	if mod == nil {
		return Stats{}, fmt.Errorf("engine: nil module")
	}
	mod.Index()
	d.stats = Stats{}
	d.disabled = make([]bool, len(d.rules))

	d.entity = Entity{Kind: EntityModule, Name: mod.Name}
	d.fire(EventBeginModule, &event{module: mod})
	for _, t := range mod.Types {
		if t.External {
			continue
		}
		d.runType(mod, t)
	}
	d.entity = Entity{Kind: EntityModule, Name: mod.Name}
	d.fire(EventEndModule, &event{module: mod})

	log.Infof("%s: %d types, %d methods, %d instructions, %d skipped, %d faults",
		mod.Name, d.stats.Types, d.stats.Methods, d.stats.Instructions, d.stats.Skipped, len(d.stats.Faults))
	return d.stats, nil
}

func (d *Dispatcher) runType(mod *metadata.Module, t *metadata.Type) {
	d.stats.Types++
	d.announce(t.FullName)
	d.entity = Entity{Kind: EntityType, Name: t.FullName}

	d.fire(EventBeginType, &event{module: mod, typ: t})
	for _, f := range t.Fields {
		d.fire(EventField, &event{module: mod, typ: t, field: f})
	}
	d.fire(EventBeginMethods, &event{module: mod, typ: t})
	for _, m := range t.Methods {
		d.runMethod(mod, t, m)
	}
	d.entity = Entity{Kind: EntityType, Name: t.FullName}
	d.fire(EventEndMethods, &event{module: mod, typ: t})
	d.fire(EventEndType, &event{module: mod, typ: t})
}

func (d *Dispatcher) runMethod(mod *metadata.Module, t *metadata.Type, m *metadata.Method) {
	d.stats.Methods++
	name := m.FullName()
	d.entity = Entity{Kind: EntityMethod, Name: name}
	d.fire(EventMethod, &event{module: mod, typ: t, method: m})
	if m.Body == nil {
		return
	}

	d.announce(name)
	raw, err := m.Body.RawInstructions()
	if err == nil {
		var insts il.Instructions
		insts, err = il.Decode(raw)
		if err == nil {
			d.runBody(&MethodContext{
				Module:       mod,
				Type:         t,
				Method:       m,
				Instructions: insts,
				entries:      m.Body.Entries(),
			})
			return
		}
	}
	d.stats.Skipped++
	log.Warningf("skipping %s: %s", name, err)
}

func (d *Dispatcher) runBody(ctx *MethodContext) {
	d.stats.Instructions += len(ctx.Instructions)
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("%s\n%s", ctx.Method.FullName(), il.Format(ctx.Instructions))
	}

	d.fire(EventBeginMethod, &event{module: ctx.Module, typ: ctx.Type, method: ctx.Method, ctx: ctx})
	for _, inst := range ctx.Instructions {
		kind := VisitEvent(inst.Kind())
		if len(d.handlers[kind]) == 0 {
			continue
		}
		d.fire(kind, &event{module: ctx.Module, typ: ctx.Type, method: ctx.Method, ctx: ctx, inst: inst})
	}
	d.fire(EventEndMethod, &event{module: ctx.Module, typ: ctx.Type, method: ctx.Method, ctx: ctx})
}

func (d *Dispatcher) fire(kind EventKind, e *event) {
	for _, h := range d.handlers[kind] {
		if d.disabled[h.rule] {
			continue
		}
		d.call(kind, h, e)
	}
}

// call runs one handler and turns a panic into a Fault.
func (d *Dispatcher) call(kind EventKind, h handler, e *event) {
	defer func() {
		if v := recover(); v != nil {
			f := Fault{CheckID: d.rules[h.rule].CheckID(), Event: kind, Entity: d.entity, Value: v}
			d.stats.Faults = append(d.stats.Faults, f)
			d.disabled[h.rule] = true
			log.Errorf("%s; rule disabled for the rest of the module", f.Error())
		}
	}()
	h.fn(e)
}

func (d *Dispatcher) announce(name string) {
	if d.opts.Watchdog != nil {
		d.opts.Watchdog.Announce(name)
	}
}
