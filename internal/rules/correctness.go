package rules

import (
	"errors"

	"cilscan/internal/engine"
	"cilscan/internal/il"
)

// ArrayIndexOf flags Array.IndexOf<T> results tested with "> 0". IndexOf
// returns -1 when the value is missing, so index 0 is silently treated as
// not found.
type ArrayIndexOf struct {
	base
	methodScope
}

func NewArrayIndexOf(rep engine.Reporter) *ArrayIndexOf {
	return &ArrayIndexOf{base: base{id: "C1013", name: "ArrayIndexOf", rep: rep}}
}

func (r *ArrayIndexOf) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventVisitConditionalBranch),
		d.Register(r, engine.EventVisitCompare),
		d.Register(r, engine.EventEndMethod),
	)
}

func (r *ArrayIndexOf) BeginMethod(ctx *engine.MethodContext) { r.begin(ctx) }

func (r *ArrayIndexOf) VisitConditionalBranch(ctx *engine.MethodContext, br *il.ConditionalBranch) {
	if r.found() {
		return
	}
	insts, i := ctx.Instructions, br.Index
	switch br.Cond {
	case il.CondLe:
		// call; stloc V; ldloc V; ldc.i4.0; ble
		if isZero(insts.At(i-1)) && sameLocal(insts.At(i-3), insts.At(i-2)) && isIndexOf(insts.At(i-4)) {
			r.mark(&r.base, br.Offset, "stored IndexOf <= 0")
			return
		}
		// call; ldc.i4.0; ble
		if isZero(insts.At(i-1)) && isIndexOf(insts.At(i-2)) {
			r.mark(&r.base, br.Offset, "IndexOf <= 0")
		}
	case il.CondGe:
		// call; stloc V; ldc.i4.0; ldloc V; bge
		if isZero(insts.At(i-2)) && sameLocal(insts.At(i-3), insts.At(i-1)) && isIndexOf(insts.At(i-4)) {
			r.mark(&r.base, br.Offset, "0 >= stored IndexOf")
		}
	}
}

func (r *ArrayIndexOf) VisitCompare(ctx *engine.MethodContext, cmp *il.Compare) {
	if r.found() || cmp.Op != il.CondGt {
		return
	}
	insts, i := ctx.Instructions, cmp.Index
	if !isZero(insts.At(i - 1)) {
		return
	}
	switch {
	case sameLocal(insts.At(i-3), insts.At(i-2)) && isIndexOf(insts.At(i-4)):
		r.mark(&r.base, cmp.Offset, "stored IndexOf > 0")
	case isIndexOf(insts.At(i - 2)):
		r.mark(&r.base, cmp.Offset, "IndexOf > 0")
	}
}

func (r *ArrayIndexOf) EndMethod(*engine.MethodContext) { r.flush(&r.base, "") }

// isIndexOf matches System.Int32 System.Array::IndexOf<T>(T[],T).
func isIndexOf(inst il.Instruction) bool {
	call, ok := inst.(*il.CallInst)
	if !ok {
		return false
	}
	t := call.Target
	return isCallTo(t, "System.Array", "IndexOf") && t.ReturnType == "System.Int32" &&
		len(t.GenericArgs) == 1 && len(t.Params) == 2
}

func isZero(inst il.Instruction) bool {
	c, ok := inst.(*il.LoadConst)
	if !ok {
		return false
	}
	v, ok := c.Int()
	return ok && v == 0
}

// sameLocal matches stloc V followed (not necessarily adjacently) by ldloc V.
func sameLocal(store, load il.Instruction) bool {
	st, ok := store.(*il.StoreLocal)
	if !ok {
		return false
	}
	ld, ok := load.(*il.LoadLocal)
	return ok && !ld.Address && ld.Variable == st.Variable
}

// RecursiveEquality flags op_Equality or op_Inequality on a reference type
// that calls itself, usually through an intended reference comparison.
type RecursiveEquality struct {
	base
	methodScope
	check bool
}

func NewRecursiveEquality(rep engine.Reporter) *RecursiveEquality {
	return &RecursiveEquality{base: base{id: "C1021", name: "RecursiveEquality", rep: rep}}
}

func (r *RecursiveEquality) Register(d *engine.Dispatcher) error {
	return errors.Join(
		d.Register(r, engine.EventBeginMethod),
		d.Register(r, engine.EventVisitCall),
		d.Register(r, engine.EventEndMethod),
	)
}

func (r *RecursiveEquality) BeginMethod(ctx *engine.MethodContext) {
	r.begin(ctx)
	name := ctx.Method.Name
	r.check = !ctx.Type.ValueType && (name == "op_Equality" || name == "op_Inequality")
}

func (r *RecursiveEquality) VisitCall(ctx *engine.MethodContext, call *il.CallInst) {
	if !r.check || r.found() {
		return
	}
	if call.Target.String() == ctx.Method.FullName() {
		r.mark(&r.base, call.Offset, "recursive call")
	}
}

func (r *RecursiveEquality) EndMethod(*engine.MethodContext) { r.flush(&r.base, "") }
