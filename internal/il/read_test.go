package il

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokens struct {
	strings map[uint32]string
	methods map[uint32]MethodRef
}

func (r tokens) String(tok uint32) (string, bool) {
	s, ok := r.strings[tok]
	return s, ok
}

func (r tokens) Method(tok uint32) (MethodRef, bool) {
	m, ok := r.methods[tok]
	return m, ok
}

func (tokens) Field(uint32) (FieldRef, bool) { return FieldRef{}, false }
func (tokens) Type(uint32) (string, bool)    { return "", false }

func TestReadIndexOfBody(t *testing.T) {
	// IL_0000: ldarg.0
	// IL_0001: ldarg.1
	// IL_0002: call       System.Int32 System.Array::IndexOf<T>(!!0[],!!0)
	// IL_0007: stloc.0
	// IL_0008: ldloc.0
	// IL_0009: ldc.i4.0
	// IL_000a: ble.s      IL_000f
	// IL_000c: ldc.i4.1
	// IL_000d: ret
	// IL_000e: nop
	// IL_000f: ldc.i4.0
	// IL_0010: ret
	code := []byte{
		0x02, 0x03,
		0x28, 0x01, 0x00, 0x00, 0x2B,
		0x0A, 0x06, 0x16,
		0x31, 0x03,
		0x17, 0x2A, 0x00,
		0x16, 0x2A,
	}
	res := tokens{methods: map[uint32]MethodRef{0x2B000001: indexOf}}
	raw, err := Read(code, res)
	require.NoError(t, err)
	require.Len(t, raw, 12)

	assert.Equal(t, Call, raw[2].Code)
	assert.Equal(t, indexOf, raw[2].Operand)
	assert.Equal(t, 0x0A, raw[6].Offset)
	assert.Equal(t, BleS, raw[6].Code)
	assert.Equal(t, 0x0F, raw[6].Operand, "short branch measured from the next instruction")

	insts, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "IL_000a: ble.s IL_000f\n", Format(insts[6:7]))
}

func TestReadTwoByteAndWideOperands(t *testing.T) {
	code := []byte{
		0xFE, 0x0C, 0x05, 0x01,       // ldloc 261
		0x20, 0xFF, 0xFF, 0xFF, 0xFF, // ldc.i4 -1
		0xFE, 0x01,                   // ceq
		0x72, 0x07, 0x00, 0x00, 0x70, // ldstr
		0x2A,
	}
	raw, err := Read(code, tokens{strings: map[uint32]string{0x70000007: "C:\\temp"}})
	require.NoError(t, err)
	require.Len(t, raw, 5)
	assert.Equal(t, Ldloc, raw[0].Code)
	assert.Equal(t, 261, raw[0].Operand)
	assert.Equal(t, int32(-1), raw[1].Operand)
	assert.Equal(t, Ceq, raw[2].Code)
	assert.Equal(t, 9, raw[2].Offset)
	assert.Equal(t, "C:\\temp", raw[3].Operand)
}

func TestReadSwitch(t *testing.T) {
	code := []byte{
		0x06,                // ldloc.0
		0x45, 0x02, 0, 0, 0, // switch (2 targets)
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x00, // nop
		0x2A, // ret
	}
	raw, err := Read(code, nil)
	require.NoError(t, err)
	require.Len(t, raw, 4)
	assert.Equal(t, []int{14, 15}, raw[1].Operand)
}

func TestReadUnresolvedTokenFailsDecode(t *testing.T) {
	raw, err := Read([]byte{0x28, 0x09, 0x00, 0x00, 0x0A, 0x2A}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A000009), raw[0].Operand)

	_, err = Decode(raw)
	var de *DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestReadErrors(t *testing.T) {
	tests := map[string][]byte{
		"truncated operand":  {0x20, 0x01},
		"truncated prefix":   {0x00, 0xFE},
		"unknown opcode":     {0x24},
		"short switch table": {0x45, 0x03, 0, 0, 0, 0, 0, 0, 0},
	}
	for name, code := range tests {
		_, err := Read(code, nil)
		var re *ReadError
		assert.True(t, errors.As(err, &re), "%s: err = %v", name, err)
	}
}
