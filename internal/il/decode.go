// Package il decodes CIL method bodies into typed instructions.
package il

import "fmt"

// Raw is one undecoded instruction of a method body: the opcode, its
// operand and its byte offset. Branch operands hold absolute target
// offsets; token operands hold the resolved reference (MethodRef, FieldRef,
// string) or the bare uint32 token when it could not be resolved.
type Raw struct {
	Offset  int
	Code    Code
	Operand any
}

// DecodeError reports an operand whose type does not match its opcode.
type DecodeError struct {
	Index   int
	Offset  int
	Code    Code
	Operand any
	Want    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("il: IL_%04x %s: operand %T (%v), want %s",
		e.Offset, e.Code, e.Operand, e.Operand, e.Want)
}

// Decode converts a raw instruction stream into typed instructions.
// Every raw entry yields exactly one instruction; opcodes without a
// category decode to *Other. The first malformed operand aborts decoding.
func Decode(raw []Raw) (Instructions, error) {
	out := make(Instructions, 0, len(raw))
	for i, r := range raw {
		inst, err := decodeOne(i, r)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func decodeOne(index int, r Raw) (Instruction, error) {
	b := Base{Index: index, Offset: r.Offset, Code: r.Code}
	bad := func(want string) error {
		return &DecodeError{Index: index, Offset: r.Offset, Code: r.Code, Operand: r.Operand, Want: want}
	}

	info, known := r.Code.Info()
	if !known {
		return &Other{Base: b, Operand: r.Operand}, nil
	}
	if info.Operand == InlineNone && r.Operand != nil {
		return nil, bad("no operand")
	}

	switch r.Code {
	case Ldloc0, Ldloc1, Ldloc2, Ldloc3:
		return &LoadLocal{Base: b, Variable: int(r.Code - Ldloc0)}, nil
	case LdlocS, Ldloc, LdlocaS, Ldloca:
		v, ok := varIndex(r.Operand)
		if !ok {
			return nil, bad("variable index")
		}
		return &LoadLocal{Base: b, Variable: v, Address: r.Code == LdlocaS || r.Code == Ldloca}, nil

	case Stloc0, Stloc1, Stloc2, Stloc3:
		return &StoreLocal{Base: b, Variable: int(r.Code - Stloc0)}, nil
	case StlocS, Stloc:
		v, ok := varIndex(r.Operand)
		if !ok {
			return nil, bad("variable index")
		}
		return &StoreLocal{Base: b, Variable: v}, nil

	case Ldarg0, Ldarg1, Ldarg2, Ldarg3:
		return &LoadArg{Base: b, Arg: int(r.Code - Ldarg0)}, nil
	case LdargS, Ldarg, LdargaS, Ldarga:
		v, ok := varIndex(r.Operand)
		if !ok {
			return nil, bad("argument index")
		}
		return &LoadArg{Base: b, Arg: v, Address: r.Code == LdargaS || r.Code == Ldarga}, nil
	case StargS, Starg:
		v, ok := varIndex(r.Operand)
		if !ok {
			return nil, bad("argument index")
		}
		return &StoreArg{Base: b, Arg: v}, nil

	case LdcI4M1, LdcI40, LdcI41, LdcI42, LdcI43, LdcI44, LdcI45, LdcI46, LdcI47, LdcI48:
		return &LoadConst{Base: b, Type: ConstInt32, Value: int32(r.Code) - int32(LdcI40)}, nil
	case LdcI4S, LdcI4:
		v, ok := toInt64(r.Operand)
		if !ok || v < -1<<31 || v > 1<<31-1 {
			return nil, bad("int32")
		}
		return &LoadConst{Base: b, Type: ConstInt32, Value: int32(v)}, nil
	case LdcI8:
		v, ok := toInt64(r.Operand)
		if !ok {
			return nil, bad("int64")
		}
		return &LoadConst{Base: b, Type: ConstInt64, Value: v}, nil
	case LdcR4:
		v, ok := toFloat(r.Operand)
		if !ok {
			return nil, bad("float32")
		}
		return &LoadConst{Base: b, Type: ConstFloat32, Value: float32(v)}, nil
	case LdcR8:
		v, ok := toFloat(r.Operand)
		if !ok {
			return nil, bad("float64")
		}
		return &LoadConst{Base: b, Type: ConstFloat64, Value: v}, nil

	case Ldstr:
		s, ok := r.Operand.(string)
		if !ok {
			return nil, bad("string")
		}
		return &LoadString{Base: b, Value: s}, nil
	case Ldnull:
		return &LoadNull{Base: b}, nil

	case Ldfld, Ldflda, Ldsfld, Ldsflda:
		f, ok := fieldRef(r.Operand)
		if !ok {
			return nil, bad("field reference")
		}
		return &LoadField{
			Base:    b,
			Field:   f,
			Static:  r.Code == Ldsfld || r.Code == Ldsflda,
			Address: r.Code == Ldflda || r.Code == Ldsflda,
		}, nil
	case Stfld, Stsfld:
		f, ok := fieldRef(r.Operand)
		if !ok {
			return nil, bad("field reference")
		}
		return &StoreField{Base: b, Field: f, Static: r.Code == Stsfld}, nil

	case Br, BrS, Leave, LeaveS:
		t, ok := target(r.Operand)
		if !ok {
			return nil, bad("branch target")
		}
		return &Branch{Base: b, Target: t, Leave: r.Code == Leave || r.Code == LeaveS}, nil
	case Switch:
		ts, ok := r.Operand.([]int)
		if !ok {
			return nil, bad("switch targets")
		}
		return &SwitchBranch{Base: b, Targets: ts}, nil

	case Ceq, Cgt, CgtUn, Clt, CltUn:
		op, unsigned := compareOp(r.Code)
		return &Compare{Base: b, Op: op, Unsigned: unsigned}, nil

	case Call, Callvirt:
		m, ok := methodRef(r.Operand)
		if !ok {
			return nil, bad("method reference")
		}
		return &CallInst{Base: b, Target: m, Virtual: r.Code == Callvirt}, nil
	case Newobj:
		m, ok := methodRef(r.Operand)
		if !ok {
			return nil, bad("method reference")
		}
		return &NewObject{Base: b, Ctor: m}, nil

	case Ret:
		return &Return{Base: b}, nil
	case Throw, Rethrow:
		return &ThrowInst{Base: b, Rethrow: r.Code == Rethrow}, nil
	}

	if info.Flow == FlowCondBranch {
		t, ok := target(r.Operand)
		if !ok {
			return nil, bad("branch target")
		}
		cond, unsigned := branchCond(r.Code)
		return &ConditionalBranch{Base: b, Target: t, Cond: cond, Unsigned: unsigned}, nil
	}
	return &Other{Base: b, Operand: r.Operand}, nil
}

// branchCond maps the short and long conditional branch spellings to one
// condition.
func branchCond(c Code) (Condition, bool) {
	switch c {
	case Brtrue, BrtrueS:
		return CondTrue, false
	case Brfalse, BrfalseS:
		return CondFalse, false
	case Beq, BeqS:
		return CondEq, false
	case BneUn, BneUnS:
		return CondNe, true
	case Bge, BgeS:
		return CondGe, false
	case BgeUn, BgeUnS:
		return CondGe, true
	case Bgt, BgtS:
		return CondGt, false
	case BgtUn, BgtUnS:
		return CondGt, true
	case Ble, BleS:
		return CondLe, false
	case BleUn, BleUnS:
		return CondLe, true
	case Blt, BltS:
		return CondLt, false
	case BltUn, BltUnS:
		return CondLt, true
	}
	return CondTrue, false
}

func compareOp(c Code) (Condition, bool) {
	switch c {
	case Cgt:
		return CondGt, false
	case CgtUn:
		return CondGt, true
	case Clt:
		return CondLt, false
	case CltUn:
		return CondLt, true
	}
	return CondEq, false
}

func varIndex(v any) (int, bool) {
	n, ok := toInt64(v)
	if !ok || n < 0 || n > 0xFFFF {
		return 0, false
	}
	return int(n), true
}

func target(v any) (int, bool) {
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return int(n), true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

func methodRef(v any) (MethodRef, bool) {
	switch m := v.(type) {
	case MethodRef:
		return m, true
	case *MethodRef:
		if m != nil {
			return *m, true
		}
	}
	return MethodRef{}, false
}

func fieldRef(v any) (FieldRef, bool) {
	switch f := v.(type) {
	case FieldRef:
		return f, true
	case *FieldRef:
		if f != nil {
			return *f, true
		}
	}
	return FieldRef{}, false
}
