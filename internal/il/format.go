package il

import (
	"fmt"
	"strconv"
	"strings"
)

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Instruction) string

// Format renders instructions as a stable listing.
// Each line: IL_<offset>: <mnemonic> <operand>  ; <comment>
// Annotators are checked in order; first non-empty result is used.
func Format(insts Instructions, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		h := inst.Header()
		fmt.Fprintf(&b, "IL_%04x: %s", h.Offset, h.Code)
		if op := operandString(inst); op != "" {
			b.WriteByte(' ')
			b.WriteString(op)
		}
		for _, ann := range annotators {
			if s := ann(inst); s != "" {
				fmt.Fprintf(&b, "  ; %s", s)
				break
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func operandString(inst Instruction) string {
	switch v := inst.(type) {
	case *LoadLocal:
		if v.Code < Ldloc0 || v.Code > Ldloc3 {
			return "V_" + strconv.Itoa(v.Variable)
		}
	case *StoreLocal:
		if v.Code < Stloc0 || v.Code > Stloc3 {
			return "V_" + strconv.Itoa(v.Variable)
		}
	case *LoadArg:
		if v.Code < Ldarg0 || v.Code > Ldarg3 {
			return "A_" + strconv.Itoa(v.Arg)
		}
	case *StoreArg:
		return "A_" + strconv.Itoa(v.Arg)
	case *LoadConst:
		if v.Code < LdcI4M1 || v.Code > LdcI48 {
			return fmt.Sprint(v.Value)
		}
	case *LoadString:
		return strconv.Quote(v.Value)
	case *LoadField:
		return v.Field.String()
	case *StoreField:
		return v.Field.String()
	case *Branch:
		return fmt.Sprintf("IL_%04x", v.Target)
	case *ConditionalBranch:
		return fmt.Sprintf("IL_%04x", v.Target)
	case *SwitchBranch:
		parts := make([]string, len(v.Targets))
		for i, t := range v.Targets {
			parts[i] = fmt.Sprintf("IL_%04x", t)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *CallInst:
		return v.Target.String()
	case *NewObject:
		return v.Ctor.String()
	case *Other:
		switch op := v.Operand.(type) {
		case nil:
		case uint32:
			return fmt.Sprintf("token:0x%08x", op)
		case fmt.Stringer:
			return op.String()
		default:
			return fmt.Sprint(op)
		}
	}
	return ""
}
