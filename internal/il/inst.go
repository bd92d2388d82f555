package il

import "strings"

// Kind is the category an instruction decodes to. The set is closed.
type Kind uint8

const (
	KindOther Kind = iota
	KindLoadLocal
	KindLoadArg
	KindLoadConst
	KindLoadString
	KindLoadNull
	KindLoadField
	KindStoreLocal
	KindStoreArg
	KindStoreField
	KindBranch
	KindConditionalBranch
	KindSwitch
	KindCompare
	KindCall
	KindNewObject
	KindReturn
	KindThrow

	NumKinds = int(KindThrow) + 1
)

var kindNames = [...]string{
	KindOther:             "Other",
	KindLoadLocal:         "LoadLocal",
	KindLoadArg:           "LoadArg",
	KindLoadConst:         "LoadConst",
	KindLoadString:        "LoadString",
	KindLoadNull:          "LoadNull",
	KindLoadField:         "LoadField",
	KindStoreLocal:        "StoreLocal",
	KindStoreArg:          "StoreArg",
	KindStoreField:        "StoreField",
	KindBranch:            "Branch",
	KindConditionalBranch: "ConditionalBranch",
	KindSwitch:            "Switch",
	KindCompare:           "Compare",
	KindCall:              "Call",
	KindNewObject:         "NewObject",
	KindReturn:            "Return",
	KindThrow:             "Throw",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Condition is the relation tested by a conditional branch or compare.
type Condition uint8

const (
	CondTrue Condition = iota
	CondFalse
	CondEq
	CondNe
	CondGe
	CondGt
	CondLe
	CondLt
)

func (c Condition) String() string {
	switch c {
	case CondTrue:
		return "true"
	case CondFalse:
		return "false"
	case CondEq:
		return "eq"
	case CondNe:
		return "ne"
	case CondGe:
		return "ge"
	case CondGt:
		return "gt"
	case CondLe:
		return "le"
	case CondLt:
		return "lt"
	}
	return "?"
}

// ConstType is the static type of a literal load.
type ConstType uint8

const (
	ConstInt32 ConstType = iota
	ConstInt64
	ConstFloat32
	ConstFloat64
)

// MethodRef is a resolved call target.
type MethodRef struct {
	DeclaringType string   `json:"type" cbor:"type"`
	Name          string   `json:"name" cbor:"name"`
	ReturnType    string   `json:"return,omitempty" cbor:"return,omitempty"`
	Params        []string `json:"params,omitempty" cbor:"params,omitempty"`
	GenericArgs   []string `json:"generic,omitempty" cbor:"generic,omitempty"`
	HasThis       bool     `json:"this,omitempty" cbor:"this,omitempty"`
}

// String renders the reference the way disassemblers print call targets:
//
//	System.Int32 System.Array::IndexOf<T>(T[],T)
func (m MethodRef) String() string {
	var b strings.Builder
	ret := m.ReturnType
	if ret == "" {
		ret = "System.Void"
	}
	b.WriteString(ret)
	b.WriteByte(' ')
	b.WriteString(m.DeclaringType)
	b.WriteString("::")
	b.WriteString(m.Name)
	if len(m.GenericArgs) > 0 {
		b.WriteByte('<')
		b.WriteString(strings.Join(m.GenericArgs, ","))
		b.WriteByte('>')
	}
	b.WriteByte('(')
	b.WriteString(strings.Join(m.Params, ","))
	b.WriteByte(')')
	return b.String()
}

// Returns reports whether the method leaves a value on the stack.
func (m MethodRef) Returns() bool {
	return m.ReturnType != "" && m.ReturnType != "System.Void"
}

// ArgCount is the number of stack values a call to m consumes.
func (m MethodRef) ArgCount() int {
	n := len(m.Params)
	if m.HasThis {
		n++
	}
	return n
}

// FieldRef is a resolved field operand.
type FieldRef struct {
	DeclaringType string `json:"type" cbor:"type"`
	Name          string `json:"name" cbor:"name"`
	FieldType     string `json:"field_type,omitempty" cbor:"field_type,omitempty"`
}

func (f FieldRef) String() string {
	return f.FieldType + " " + f.DeclaringType + "::" + f.Name
}

// Base carries the fields every instruction has.
type Base struct {
	Index  int  // position in the decoded sequence
	Offset int  // byte offset in the method body
	Code   Code // original opcode
}

// Header returns the shared instruction fields.
func (b *Base) Header() *Base { return b }

func (*Base) sealed() {}

// Instruction is a decoded instruction. The concrete type is one of the
// variants below; switch on it or on Kind.
type Instruction interface {
	Header() *Base
	Kind() Kind
	sealed()
}

type (
	// LoadLocal is ldloc.N, ldloc.s, ldloc and the ldloca forms.
	LoadLocal struct {
		Base
		Variable int
		Address  bool
	}

	// LoadArg is ldarg.N, ldarg.s, ldarg and the ldarga forms. Arg 0 is
	// "this" for instance methods.
	LoadArg struct {
		Base
		Arg     int
		Address bool
	}

	// LoadConst is every ldc form.
	LoadConst struct {
		Base
		Type  ConstType
		Value any // int32, int64, float32 or float64
	}

	// LoadString is ldstr.
	LoadString struct {
		Base
		Value string
	}

	// LoadNull is ldnull.
	LoadNull struct {
		Base
	}

	// LoadField is ldfld, ldflda, ldsfld and ldsflda.
	LoadField struct {
		Base
		Field   FieldRef
		Static  bool
		Address bool
	}

	// StoreLocal is stloc.N, stloc.s and stloc.
	StoreLocal struct {
		Base
		Variable int
	}

	// StoreArg is starg.s and starg.
	StoreArg struct {
		Base
		Arg int
	}

	// StoreField is stfld and stsfld.
	StoreField struct {
		Base
		Field  FieldRef
		Static bool
	}

	// Branch is br, br.s, leave and leave.s.
	Branch struct {
		Base
		Target int
		Leave  bool
	}

	// ConditionalBranch is brtrue, brfalse and the two-operand compare
	// branches, short and long.
	ConditionalBranch struct {
		Base
		Target   int
		Cond     Condition
		Unsigned bool
	}

	// SwitchBranch is switch.
	SwitchBranch struct {
		Base
		Targets []int
	}

	// Compare is ceq, cgt, cgt.un, clt and clt.un.
	Compare struct {
		Base
		Op       Condition
		Unsigned bool
	}

	// CallInst is call and callvirt.
	CallInst struct {
		Base
		Target  MethodRef
		Virtual bool
	}

	// NewObject is newobj.
	NewObject struct {
		Base
		Ctor MethodRef
	}

	// Return is ret.
	Return struct {
		Base
	}

	// ThrowInst is throw and rethrow.
	ThrowInst struct {
		Base
		Rethrow bool
	}

	// Other is any opcode without a dedicated category.
	Other struct {
		Base
		Operand any
	}
)

func (*LoadLocal) Kind() Kind         { return KindLoadLocal }
func (*LoadArg) Kind() Kind           { return KindLoadArg }
func (*LoadConst) Kind() Kind         { return KindLoadConst }
func (*LoadString) Kind() Kind        { return KindLoadString }
func (*LoadNull) Kind() Kind          { return KindLoadNull }
func (*LoadField) Kind() Kind         { return KindLoadField }
func (*StoreLocal) Kind() Kind        { return KindStoreLocal }
func (*StoreArg) Kind() Kind          { return KindStoreArg }
func (*StoreField) Kind() Kind        { return KindStoreField }
func (*Branch) Kind() Kind            { return KindBranch }
func (*ConditionalBranch) Kind() Kind { return KindConditionalBranch }
func (*SwitchBranch) Kind() Kind      { return KindSwitch }
func (*Compare) Kind() Kind           { return KindCompare }
func (*CallInst) Kind() Kind          { return KindCall }
func (*NewObject) Kind() Kind         { return KindNewObject }
func (*Return) Kind() Kind            { return KindReturn }
func (*ThrowInst) Kind() Kind         { return KindThrow }
func (*Other) Kind() Kind             { return KindOther }

// Int returns the value of an integer literal load.
func (c *LoadConst) Int() (int64, bool) {
	switch v := c.Value.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// Instructions is a decoded method body in stream order.
type Instructions []Instruction

// At returns the instruction at index i, or nil when out of range.
func (s Instructions) At(i int) Instruction {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// IndexOf returns the index of the instruction at the given byte offset.
func (s Instructions) IndexOf(offset int) (int, bool) {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		if s[mid].Header().Offset < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s) && s[lo].Header().Offset == offset {
		return lo, true
	}
	return 0, false
}
