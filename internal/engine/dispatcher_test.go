package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilscan/internal/il"
	"cilscan/internal/metadata"
)

// trace is shared by the test rules so that cross-rule ordering is visible.
type trace struct{ events []string }

func (tr *trace) add(format string, args ...any) {
	tr.events = append(tr.events, fmt.Sprintf(format, args...))
}

// branchRule records every conditional branch it sees.
type branchRule struct {
	id    string
	tr    *trace
	panic bool
}

func (r *branchRule) CheckID() string { return r.id }
func (r *branchRule) Name() string    { return "Branch" + r.id }

func (r *branchRule) Register(d *Dispatcher) error {
	return errors.Join(
		d.Register(r, EventBeginMethod),
		d.Register(r, EventVisitConditionalBranch),
		d.Register(r, EventEndMethod),
	)
}

func (r *branchRule) BeginMethod(ctx *MethodContext) {
	r.tr.add("%s begin %s", r.id, ctx.Method.Name)
}

func (r *branchRule) VisitConditionalBranch(ctx *MethodContext, br *il.ConditionalBranch) {
	if r.panic {
		panic("boom")
	}
	r.tr.add("%s branch %s@%d", r.id, ctx.Method.Name, br.Offset)
}

func (r *branchRule) EndMethod(ctx *MethodContext) {
	r.tr.add("%s end %s", r.id, ctx.Method.Name)
}

// lifecycleRule records every non-instruction event.
type lifecycleRule struct{ tr *trace }

func (r *lifecycleRule) CheckID() string { return "L0001" }
func (r *lifecycleRule) Name() string    { return "Lifecycle" }

func (r *lifecycleRule) Register(d *Dispatcher) error {
	var errs []error
	for _, k := range []EventKind{
		EventBeginModule, EventEndModule, EventBeginType, EventEndType, EventField,
		EventBeginMethods, EventEndMethods, EventMethod, EventBeginMethod, EventEndMethod,
		EventVisitCall,
	} {
		errs = append(errs, d.Register(r, k))
	}
	return errors.Join(errs...)
}

func (r *lifecycleRule) BeginModule(m *metadata.Module) { r.tr.add("BeginModule %s", m.Name) }
func (r *lifecycleRule) EndModule(m *metadata.Module) { r.tr.add("EndModule %s", m.Name) }
func (r *lifecycleRule) BeginType(t *metadata.Type) { r.tr.add("BeginType %s", t.FullName) }
func (r *lifecycleRule) EndType(t *metadata.Type) { r.tr.add("EndType %s", t.FullName) }
func (r *lifecycleRule) BeginMethods(t *metadata.Type) { r.tr.add("BeginMethods %s", t.FullName) }
func (r *lifecycleRule) EndMethods(t *metadata.Type) { r.tr.add("EndMethods %s", t.FullName) }
func (r *lifecycleRule) VisitMethod(m *metadata.Method) { r.tr.add("Method %s", m.Name) }
func (r *lifecycleRule) BeginMethod(ctx *MethodContext) { r.tr.add("BeginMethod %s", ctx.Method.Name) }
func (r *lifecycleRule) EndMethod(ctx *MethodContext) { r.tr.add("EndMethod %s", ctx.Method.Name) }
func (r *lifecycleRule) VisitField(_ *metadata.Type, f *metadata.Field) {
	r.tr.add("Field %s", f.Name)
}

func (r *lifecycleRule) VisitCall(ctx *MethodContext, call *il.CallInst) {
	p, ok := ctx.Tracker().Producer(call.Index, 0)
	r.tr.add("Call %s arg0=%d/%v", call.Target.Name, p, ok)
}

// incomplete registers for an event it has no handler for.
type incomplete struct{}

func (incomplete) CheckID() string { return "X0001" }
func (incomplete) Name() string    { return "Incomplete" }
func (r incomplete) Register(d *Dispatcher) error {
	return d.Register(r, EventVisitCall)
}

type announcer struct{ names []string }

func (a *announcer) Announce(name string) { a.names = append(a.names, name) }

var sleep = il.MethodRef{DeclaringType: "System.Threading.Thread", Name: "Sleep", Params: []string{"System.Int32"}}

func body(raw ...il.Raw) *metadata.MethodBody {
	return &metadata.MethodBody{Raw: raw}
}

// twoBranches has conditional branches at offsets 1 and 4.
func twoBranches() *metadata.MethodBody {
	return body(
		il.Raw{Offset: 0, Code: il.Ldarg0},
		il.Raw{Offset: 1, Code: il.BrfalseS, Operand: 7},
		il.Raw{Offset: 3, Code: il.Ldarg0},
		il.Raw{Offset: 4, Code: il.BrtrueS, Operand: 7},
		il.Raw{Offset: 6, Code: il.Nop},
		il.Raw{Offset: 7, Code: il.Ret},
	)
}

func module(types ...*metadata.Type) *metadata.Module {
	m := &metadata.Module{Name: "Sample.dll", Types: types}
	m.Index()
	return m
}

func TestDispatchOrderAcrossRules(t *testing.T) {
	tr := &trace{}
	a := &branchRule{id: "A", tr: tr}
	b := &branchRule{id: "B", tr: tr}
	d, err := NewDispatcher(Options{}, a, b)
	require.NoError(t, err)

	mod := module(&metadata.Type{FullName: "Sample.C", Methods: []*metadata.Method{
		{Name: "M", Static: true, Params: []metadata.Param{{Type: "System.Boolean"}}, Body: twoBranches()},
	}})
	stats, err := d.Run(mod)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"A begin M", "B begin M",
		"A branch M@1", "B branch M@1",
		"A branch M@4", "B branch M@4",
		"A end M", "B end M",
	}, tr.events)
	assert.Equal(t, 1, stats.Types)
	assert.Equal(t, 1, stats.Methods)
	assert.Equal(t, 6, stats.Instructions)
	assert.Empty(t, stats.Faults)
}

func TestLifecycleOrder(t *testing.T) {
	tr := &trace{}
	wd := &announcer{}
	d, err := NewDispatcher(Options{Watchdog: wd}, &lifecycleRule{tr: tr})
	require.NoError(t, err)

	typ := &metadata.Type{
		FullName: "Sample.C",
		Fields:   []*metadata.Field{{Name: "count", FieldType: "System.Int32"}},
		Methods: []*metadata.Method{
			{Name: "Abstract", Abstract: true},
			{Name: "Nap", Static: true, Body: body(
				il.Raw{Offset: 0, Code: il.LdcI40},
				il.Raw{Offset: 1, Code: il.Call, Operand: sleep},
				il.Raw{Offset: 6, Code: il.Ret},
			)},
		},
	}
	ext := &metadata.Type{FullName: "System.Object", External: true}
	_, err = d.Run(module(ext, typ))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"BeginModule Sample.dll",
		"BeginType Sample.C",
		"Field count",
		"BeginMethods Sample.C",
		"Method Abstract",
		"Method Nap",
		"BeginMethod Nap",
		"Call Sleep arg0=0/true",
		"EndMethod Nap",
		"EndMethods Sample.C",
		"EndType Sample.C",
		"EndModule Sample.dll",
	}, tr.events)
	assert.Equal(t, []string{"Sample.C", "System.Void Sample.C::Nap()"}, wd.names)
}

func TestFaultIsolation(t *testing.T) {
	tr := &trace{}
	bad := &branchRule{id: "A", tr: tr, panic: true}
	good := &branchRule{id: "B", tr: tr}
	d, err := NewDispatcher(Options{}, bad, good)
	require.NoError(t, err)

	mod := module(
		&metadata.Type{FullName: "Sample.C", Methods: []*metadata.Method{
			{Name: "M", Static: true, Body: twoBranches()},
		}},
		&metadata.Type{FullName: "Sample.D", Methods: []*metadata.Method{
			{Name: "N", Static: true, Body: twoBranches()},
		}},
	)
	stats, err := d.Run(mod)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"A begin M", "B begin M",
		"B branch M@1", "B branch M@4", "B end M",
		"B begin N", "B branch N@1", "B branch N@4", "B end N",
	}, tr.events)
	require.Len(t, stats.Faults, 1)
	f := stats.Faults[0]
	assert.Equal(t, "A", f.CheckID)
	assert.Equal(t, VisitEvent(il.KindConditionalBranch), f.Event)
	assert.Equal(t, Entity{Kind: EntityMethod, Name: "System.Void Sample.C::M()"}, f.Entity)
	assert.Equal(t, "boom", f.Value)

	// A faulting rule is back for the next module.
	tr.events = nil
	bad.panic = false
	_, err = d.Run(mod)
	require.NoError(t, err)
	assert.Contains(t, tr.events, "A branch M@1")
}

func TestRegistrationErrors(t *testing.T) {
	_, err := NewDispatcher(Options{}, incomplete{}, &lifecycleRule{tr: &trace{}}, incomplete{})
	require.Error(t, err)

	var re *RegistrationError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "X0001", re.CheckID)
	assert.Equal(t, EventVisitCall, re.Event)
	assert.Equal(t, 2, strings.Count(err.Error(), "X0001"))

	d, err := NewDispatcher(Options{})
	require.NoError(t, err)
	r := &lifecycleRule{tr: &trace{}}
	require.NoError(t, d.Register(r, EventBeginModule))
	assert.Error(t, d.Register(r, EventBeginModule), "duplicate registration")
	assert.Error(t, d.Register(r, numEvents))
	assert.Len(t, d.Rules(), 1)
}

func TestDecodeErrorSkipsMethod(t *testing.T) {
	tr := &trace{}
	d, err := NewDispatcher(Options{}, &lifecycleRule{tr: tr})
	require.NoError(t, err)

	typ := &metadata.Type{FullName: "Sample.C", Methods: []*metadata.Method{
		{Name: "Broken", Static: true, Body: body(
			il.Raw{Offset: 0, Code: il.Ldstr, Operand: 42},
			il.Raw{Offset: 5, Code: il.Ret},
		)},
		{Name: "Truncated", Static: true, Body: &metadata.MethodBody{Code: []byte{0x20, 0x01}}},
		{Name: "Fine", Static: true, Body: body(il.Raw{Offset: 0, Code: il.Ret})},
	}}
	stats, err := d.Run(module(typ))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 3, stats.Methods)
	assert.Equal(t, 1, stats.Instructions)
	assert.Contains(t, tr.events, "Method Broken")
	assert.NotContains(t, tr.events, "BeginMethod Broken")
	assert.NotContains(t, tr.events, "BeginMethod Truncated")
	assert.Contains(t, tr.events, "BeginMethod Fine")
}

func TestRunNilModule(t *testing.T) {
	d, err := NewDispatcher(Options{})
	require.NoError(t, err)
	_, err = d.Run(nil)
	assert.Error(t, err)
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "BeginMethods", EventBeginMethods.String())
	assert.Equal(t, "VisitConditionalBranch", VisitEvent(il.KindConditionalBranch).String())
	assert.Equal(t, "VisitThrow", EventVisitThrow.String())
	assert.Equal(t, EventVisitThrow, VisitEvent(il.KindThrow))
	assert.Equal(t, "Event(?)", numEvents.String())
}

func TestCollector(t *testing.T) {
	c := &Collector{}
	m := &metadata.Method{Name: "M", Type: &metadata.Type{FullName: "Sample.C"}}
	c.Report(MethodViolation("C1013", m, 0x0A, ""))
	c.Report(TypeViolation("P1013", m.Type, "sealed"))
	require.Len(t, c.ByCheck("C1013"), 1)
	assert.Equal(t, "C1013 method System.Void Sample.C::M() IL_000a", c.Violations[0].String())
	assert.Equal(t, "P1013 type Sample.C sealed", c.Violations[1].String())
}
