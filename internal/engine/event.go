package engine

import (
	"cilscan/internal/il"
	"cilscan/internal/metadata"
)

// EventKind identifies one event a rule can register for.
type EventKind uint8

const (
	EventBeginModule EventKind = iota
	EventEndModule
	EventBeginType
	EventEndType
	EventField
	EventBeginMethods
	EventEndMethods
	EventMethod
	EventBeginMethod
	EventEndMethod

	// Per-instruction events, in il.Kind order.
	EventVisitOther
	EventVisitLoadLocal
	EventVisitLoadArg
	EventVisitLoadConst
	EventVisitLoadString
	EventVisitLoadNull
	EventVisitLoadField
	EventVisitStoreLocal
	EventVisitStoreArg
	EventVisitStoreField
	EventVisitBranch
	EventVisitConditionalBranch
	EventVisitSwitch
	EventVisitCompare
	EventVisitCall
	EventVisitNewObject
	EventVisitReturn
	EventVisitThrow

	numEvents
)

// VisitEvent returns the event delivered for instructions of kind k.
func VisitEvent(k il.Kind) EventKind {
	return EventVisitOther + EventKind(k)
}

var eventNames = [numEvents]string{
	EventBeginModule:  "BeginModule",
	EventEndModule:    "EndModule",
	EventBeginType:    "BeginType",
	EventEndType:      "EndType",
	EventField:        "Field",
	EventBeginMethods: "BeginMethods",
	EventEndMethods:   "EndMethods",
	EventMethod:       "Method",
	EventBeginMethod:  "BeginMethod",
	EventEndMethod:    "EndMethod",
}

func (e EventKind) String() string {
	if e >= numEvents {
		return "Event(?)"
	}
	if e >= EventVisitOther {
		return "Visit" + il.Kind(e-EventVisitOther).String()
	}
	return eventNames[e]
}

// Lifecycle handlers.
type (
	BeginModuleHandler  interface{ BeginModule(*metadata.Module) }
	EndModuleHandler    interface{ EndModule(*metadata.Module) }
	BeginTypeHandler    interface{ BeginType(*metadata.Type) }
	EndTypeHandler      interface{ EndType(*metadata.Type) }
	FieldHandler        interface{ VisitField(*metadata.Type, *metadata.Field) }
	BeginMethodsHandler interface{ BeginMethods(*metadata.Type) }
	EndMethodsHandler   interface{ EndMethods(*metadata.Type) }
	MethodHandler       interface{ VisitMethod(*metadata.Method) }
	BeginMethodHandler  interface{ BeginMethod(*MethodContext) }
	EndMethodHandler    interface{ EndMethod(*MethodContext) }
)

// Instruction visitors, one per instruction category.
type (
	OtherVisitor             interface{ VisitOther(*MethodContext, *il.Other) }
	LoadLocalVisitor         interface{ VisitLoadLocal(*MethodContext, *il.LoadLocal) }
	LoadArgVisitor           interface{ VisitLoadArg(*MethodContext, *il.LoadArg) }
	LoadConstVisitor         interface{ VisitLoadConst(*MethodContext, *il.LoadConst) }
	LoadStringVisitor        interface{ VisitLoadString(*MethodContext, *il.LoadString) }
	LoadNullVisitor          interface{ VisitLoadNull(*MethodContext, *il.LoadNull) }
	LoadFieldVisitor         interface{ VisitLoadField(*MethodContext, *il.LoadField) }
	StoreLocalVisitor        interface{ VisitStoreLocal(*MethodContext, *il.StoreLocal) }
	StoreArgVisitor          interface{ VisitStoreArg(*MethodContext, *il.StoreArg) }
	StoreFieldVisitor        interface{ VisitStoreField(*MethodContext, *il.StoreField) }
	BranchVisitor            interface{ VisitBranch(*MethodContext, *il.Branch) }
	ConditionalBranchVisitor interface {
		VisitConditionalBranch(*MethodContext, *il.ConditionalBranch)
	}
	SwitchVisitor    interface{ VisitSwitch(*MethodContext, *il.SwitchBranch) }
	CompareVisitor   interface{ VisitCompare(*MethodContext, *il.Compare) }
	CallVisitor      interface{ VisitCall(*MethodContext, *il.CallInst) }
	NewObjectVisitor interface{ VisitNewObject(*MethodContext, *il.NewObject) }
	ReturnVisitor    interface{ VisitReturn(*MethodContext, *il.Return) }
	ThrowVisitor     interface{ VisitThrow(*MethodContext, *il.ThrowInst) }
)

// event is the payload of one delivery; only the fields of its kind are set.
type event struct {
	module *metadata.Module
	typ    *metadata.Type
	field  *metadata.Field
	method *metadata.Method
	ctx    *MethodContext
	inst   il.Instruction
}

// bind returns the closure that delivers kind to r, or false when r does
// not implement the kind's handler interface.
func bind(r Rule, kind EventKind) (func(*event), bool) {
	switch kind {
	case EventBeginModule:
		if h, ok := r.(BeginModuleHandler); ok {
			return func(e *event) { h.BeginModule(e.module) }, true
		}
	case EventEndModule:
		if h, ok := r.(EndModuleHandler); ok {
			return func(e *event) { h.EndModule(e.module) }, true
		}
	case EventBeginType:
		if h, ok := r.(BeginTypeHandler); ok {
			return func(e *event) { h.BeginType(e.typ) }, true
		}
	case EventEndType:
		if h, ok := r.(EndTypeHandler); ok {
			return func(e *event) { h.EndType(e.typ) }, true
		}
	case EventField:
		if h, ok := r.(FieldHandler); ok {
			return func(e *event) { h.VisitField(e.typ, e.field) }, true
		}
	case EventBeginMethods:
		if h, ok := r.(BeginMethodsHandler); ok {
			return func(e *event) { h.BeginMethods(e.typ) }, true
		}
	case EventEndMethods:
		if h, ok := r.(EndMethodsHandler); ok {
			return func(e *event) { h.EndMethods(e.typ) }, true
		}
	case EventMethod:
		if h, ok := r.(MethodHandler); ok {
			return func(e *event) { h.VisitMethod(e.method) }, true
		}
	case EventBeginMethod:
		if h, ok := r.(BeginMethodHandler); ok {
			return func(e *event) { h.BeginMethod(e.ctx) }, true
		}
	case EventEndMethod:
		if h, ok := r.(EndMethodHandler); ok {
			return func(e *event) { h.EndMethod(e.ctx) }, true
		}
	default:
		return bindVisit(r, kind)
	}
	return nil, false
}

func bindVisit(r Rule, kind EventKind) (func(*event), bool) {
	switch kind {
	case EventVisitOther:
		if h, ok := r.(OtherVisitor); ok {
			return func(e *event) { h.VisitOther(e.ctx, e.inst.(*il.Other)) }, true
		}
	case EventVisitLoadLocal:
		if h, ok := r.(LoadLocalVisitor); ok {
			return func(e *event) { h.VisitLoadLocal(e.ctx, e.inst.(*il.LoadLocal)) }, true
		}
	case EventVisitLoadArg:
		if h, ok := r.(LoadArgVisitor); ok {
			return func(e *event) { h.VisitLoadArg(e.ctx, e.inst.(*il.LoadArg)) }, true
		}
	case EventVisitLoadConst:
		if h, ok := r.(LoadConstVisitor); ok {
			return func(e *event) { h.VisitLoadConst(e.ctx, e.inst.(*il.LoadConst)) }, true
		}
	case EventVisitLoadString:
		if h, ok := r.(LoadStringVisitor); ok {
			return func(e *event) { h.VisitLoadString(e.ctx, e.inst.(*il.LoadString)) }, true
		}
	case EventVisitLoadNull:
		if h, ok := r.(LoadNullVisitor); ok {
			return func(e *event) { h.VisitLoadNull(e.ctx, e.inst.(*il.LoadNull)) }, true
		}
	case EventVisitLoadField:
		if h, ok := r.(LoadFieldVisitor); ok {
			return func(e *event) { h.VisitLoadField(e.ctx, e.inst.(*il.LoadField)) }, true
		}
	case EventVisitStoreLocal:
		if h, ok := r.(StoreLocalVisitor); ok {
			return func(e *event) { h.VisitStoreLocal(e.ctx, e.inst.(*il.StoreLocal)) }, true
		}
	case EventVisitStoreArg:
		if h, ok := r.(StoreArgVisitor); ok {
			return func(e *event) { h.VisitStoreArg(e.ctx, e.inst.(*il.StoreArg)) }, true
		}
	case EventVisitStoreField:
		if h, ok := r.(StoreFieldVisitor); ok {
			return func(e *event) { h.VisitStoreField(e.ctx, e.inst.(*il.StoreField)) }, true
		}
	case EventVisitBranch:
		if h, ok := r.(BranchVisitor); ok {
			return func(e *event) { h.VisitBranch(e.ctx, e.inst.(*il.Branch)) }, true
		}
	case EventVisitConditionalBranch:
		if h, ok := r.(ConditionalBranchVisitor); ok {
			return func(e *event) { h.VisitConditionalBranch(e.ctx, e.inst.(*il.ConditionalBranch)) }, true
		}
	case EventVisitSwitch:
		if h, ok := r.(SwitchVisitor); ok {
			return func(e *event) { h.VisitSwitch(e.ctx, e.inst.(*il.SwitchBranch)) }, true
		}
	case EventVisitCompare:
		if h, ok := r.(CompareVisitor); ok {
			return func(e *event) { h.VisitCompare(e.ctx, e.inst.(*il.Compare)) }, true
		}
	case EventVisitCall:
		if h, ok := r.(CallVisitor); ok {
			return func(e *event) { h.VisitCall(e.ctx, e.inst.(*il.CallInst)) }, true
		}
	case EventVisitNewObject:
		if h, ok := r.(NewObjectVisitor); ok {
			return func(e *event) { h.VisitNewObject(e.ctx, e.inst.(*il.NewObject)) }, true
		}
	case EventVisitReturn:
		if h, ok := r.(ReturnVisitor); ok {
			return func(e *event) { h.VisitReturn(e.ctx, e.inst.(*il.Return)) }, true
		}
	case EventVisitThrow:
		if h, ok := r.(ThrowVisitor); ok {
			return func(e *event) { h.VisitThrow(e.ctx, e.inst.(*il.ThrowInst)) }, true
		}
	}
	return nil, false
}
