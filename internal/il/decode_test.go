package il

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var indexOf = MethodRef{
	DeclaringType: "System.Array",
	Name:          "IndexOf",
	ReturnType:    "System.Int32",
	Params:        []string{"!!0[]", "!!0"},
	GenericArgs:   []string{"T"},
}

func TestDecodeTotalAndOrdered(t *testing.T) {
	raw := []Raw{
		{Offset: 0x00, Code: Ldarg0},
		{Offset: 0x01, Code: Ldarg1},
		{Offset: 0x02, Code: Call, Operand: indexOf},
		{Offset: 0x07, Code: Stloc0},
		{Offset: 0x08, Code: Ldloc0},
		{Offset: 0x09, Code: LdcI40},
		{Offset: 0x0A, Code: Ble, Operand: 0x1E},
		{Offset: 0x0F, Code: Add},
		{Offset: 0x10, Code: Code(0x24)}, // unused slot in the opcode space
		{Offset: 0x11, Code: Ret},
	}
	insts, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, insts, len(raw))
	for i, inst := range insts {
		h := inst.Header()
		assert.Equal(t, i, h.Index)
		assert.Equal(t, raw[i].Offset, h.Offset)
		assert.Equal(t, raw[i].Code, h.Code)
	}

	assert.Equal(t, KindCall, insts[2].Kind())
	assert.Equal(t, KindStoreLocal, insts[3].Kind())
	assert.Equal(t, KindConditionalBranch, insts[6].Kind())
	assert.Equal(t, KindOther, insts[7].Kind())
	assert.Equal(t, KindOther, insts[8].Kind())
	assert.Equal(t, KindReturn, insts[9].Kind())
}

func TestDecodeLoadLocalForms(t *testing.T) {
	forms := []Raw{
		{Code: Ldloc2},
		{Code: LdlocS, Operand: 2},
		{Code: LdlocS, Operand: uint8(2)},
		{Code: Ldloc, Operand: uint16(2)},
		{Code: Ldloc, Operand: int32(2)},
	}
	for _, r := range forms {
		insts, err := Decode([]Raw{r})
		require.NoError(t, err, "%s", r.Code)
		ld, ok := insts[0].(*LoadLocal)
		require.True(t, ok, "%s decoded to %T", r.Code, insts[0])
		assert.Equal(t, 2, ld.Variable, "%s", r.Code)
		assert.False(t, ld.Address)
	}
}

func TestDecodeStoreLocalForms(t *testing.T) {
	for _, r := range []Raw{{Code: Stloc3}, {Code: StlocS, Operand: 3}, {Code: Stloc, Operand: 3}} {
		insts, err := Decode([]Raw{r})
		require.NoError(t, err)
		st, ok := insts[0].(*StoreLocal)
		require.True(t, ok)
		assert.Equal(t, 3, st.Variable, "%s", r.Code)
	}
}

func TestDecodeIntConstForms(t *testing.T) {
	tests := []struct {
		raw  Raw
		want int32
	}{
		{Raw{Code: LdcI4M1}, -1},
		{Raw{Code: LdcI40}, 0},
		{Raw{Code: LdcI48}, 8},
		{Raw{Code: LdcI4S, Operand: int8(-5)}, -5},
		{Raw{Code: LdcI4S, Operand: int32(0)}, 0},
		{Raw{Code: LdcI4, Operand: 100000}, 100000},
	}
	for _, tc := range tests {
		insts, err := Decode([]Raw{tc.raw})
		require.NoError(t, err)
		c, ok := insts[0].(*LoadConst)
		require.True(t, ok)
		assert.Equal(t, ConstInt32, c.Type)
		assert.Equal(t, tc.want, c.Value, "%s", tc.raw.Code)
		n, ok := c.Int()
		assert.True(t, ok)
		assert.Equal(t, int64(tc.want), n)
	}
}

func TestDecodeBranchForms(t *testing.T) {
	tests := []struct {
		code     Code
		cond     Condition
		unsigned bool
	}{
		{Ble, CondLe, false},
		{BleS, CondLe, false},
		{BleUn, CondLe, true},
		{BleUnS, CondLe, true},
		{BrtrueS, CondTrue, false},
		{Brfalse, CondFalse, false},
		{BneUnS, CondNe, true},
	}
	for _, tc := range tests {
		insts, err := Decode([]Raw{{Offset: 4, Code: tc.code, Operand: 0x20}})
		require.NoError(t, err)
		br, ok := insts[0].(*ConditionalBranch)
		require.True(t, ok, "%s", tc.code)
		assert.Equal(t, 0x20, br.Target)
		assert.Equal(t, tc.cond, br.Cond, "%s", tc.code)
		assert.Equal(t, tc.unsigned, br.Unsigned, "%s", tc.code)
	}

	insts, err := Decode([]Raw{{Code: LeaveS, Operand: 9}, {Offset: 2, Code: Br, Operand: 0}})
	require.NoError(t, err)
	assert.True(t, insts[0].(*Branch).Leave)
	assert.False(t, insts[1].(*Branch).Leave)
}

func TestDecodeMalformedOperand(t *testing.T) {
	tests := []Raw{
		{Offset: 3, Code: Call, Operand: uint32(0x0A000001)}, // unresolved token
		{Offset: 3, Code: Ldstr, Operand: 42},
		{Offset: 3, Code: LdlocS, Operand: "V_0"},
		{Offset: 3, Code: LdlocS, Operand: -1},
		{Offset: 3, Code: Ble, Operand: "IL_0010"},
		{Offset: 3, Code: LdcR8, Operand: 1},
		{Offset: 3, Code: Ldloc0, Operand: 0},
	}
	for _, r := range tests {
		_, err := Decode([]Raw{{Code: Nop}, r})
		var de *DecodeError
		require.True(t, errors.As(err, &de), "%s %v: err = %v", r.Code, r.Operand, err)
		assert.Equal(t, 1, de.Index)
		assert.Equal(t, 3, de.Offset)
		assert.Equal(t, r.Code, de.Code)
	}
}

func TestStackEffect(t *testing.T) {
	insts, err := Decode([]Raw{
		{Code: Call, Operand: indexOf},
		{Offset: 5, Code: Callvirt, Operand: MethodRef{DeclaringType: "System.Object", Name: "ToString", ReturnType: "System.String", HasThis: true}},
		{Offset: 10, Code: Newobj, Operand: &MethodRef{DeclaringType: "System.Threading.Mutex", Name: ".ctor", Params: []string{"System.Boolean", "System.String"}, HasThis: true}},
		{Offset: 15, Code: Dup},
		{Offset: 16, Code: Ret},
		{Offset: 17, Code: Code(0x24)},
	})
	require.NoError(t, err)

	type effect struct{ pop, push int }
	want := []struct {
		e  effect
		ok bool
	}{
		{effect{2, 1}, true},
		{effect{1, 1}, true},
		{effect{2, 1}, true},
		{effect{1, 2}, true},
		{effect{}, false},
		{effect{}, false},
	}
	for i, inst := range insts {
		pop, push, ok := StackEffect(inst)
		assert.Equal(t, want[i].ok, ok, "%s", inst.Header().Code)
		if ok {
			assert.Equal(t, want[i].e, effect{pop, push}, "%s", inst.Header().Code)
		}
	}
}

func TestMethodRefString(t *testing.T) {
	assert.Equal(t, "System.Int32 System.Array::IndexOf<T>(!!0[],!!0)", indexOf.String())
	sleep := MethodRef{DeclaringType: "System.Threading.Thread", Name: "Sleep", Params: []string{"System.Int32"}}
	assert.Equal(t, "System.Void System.Threading.Thread::Sleep(System.Int32)", sleep.String())
	assert.False(t, sleep.Returns())
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("ble.un.s")
	require.True(t, ok)
	assert.Equal(t, BleUnS, c)
	assert.Equal(t, "cgt.un", CgtUn.String())
	assert.Equal(t, "op_24", Code(0x24).String())
	_, ok = Lookup("frobnicate")
	assert.False(t, ok)
}
