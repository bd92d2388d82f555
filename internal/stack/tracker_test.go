package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilscan/internal/il"
)

var (
	indexOf = il.MethodRef{
		DeclaringType: "System.Array",
		Name:          "IndexOf",
		ReturnType:    "System.Int32",
		Params:        []string{"!!0[]", "!!0"},
		GenericArgs:   []string{"T"},
	}
	sleep = il.MethodRef{
		DeclaringType: "System.Threading.Thread",
		Name:          "Sleep",
		Params:        []string{"System.Int32"},
	}
	byRef = il.MethodRef{
		DeclaringType: "Sample",
		Name:          "Touch",
		Params:        []string{"System.Int32&"},
	}
)

func decode(t *testing.T, raw ...il.Raw) il.Instructions {
	t.Helper()
	insts, err := il.Decode(raw)
	require.NoError(t, err)
	return insts
}

func TestProducerStraightLine(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0x00, Code: il.Ldarg0},
		il.Raw{Offset: 0x01, Code: il.Ldarg1},
		il.Raw{Offset: 0x02, Code: il.Call, Operand: indexOf},
		il.Raw{Offset: 0x07, Code: il.Stloc0},
		il.Raw{Offset: 0x08, Code: il.Ldloc0},
		il.Raw{Offset: 0x09, Code: il.LdcI40},
		il.Raw{Offset: 0x0A, Code: il.BleS, Operand: 0x0E},
		il.Raw{Offset: 0x0C, Code: il.LdcI41},
		il.Raw{Offset: 0x0D, Code: il.Ret},
		il.Raw{Offset: 0x0E, Code: il.LdcI40},
		il.Raw{Offset: 0x0F, Code: il.Ret},
	)
	tr := New(insts)

	tests := []struct {
		consumer, arg, want int
	}{
		{2, 0, 1}, // second IndexOf argument
		{2, 1, 0}, // first IndexOf argument
		{3, 0, 2}, // stloc takes the call result
		{6, 0, 5}, // ble right operand
		{6, 1, 4}, // ble left operand
	}
	for _, tc := range tests {
		got, ok := tr.Producer(tc.consumer, tc.arg)
		require.True(t, ok, "Producer(%d, %d)", tc.consumer, tc.arg)
		assert.Equal(t, tc.want, got, "Producer(%d, %d)", tc.consumer, tc.arg)
	}
}

func TestProducerUnderflow(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI40},
		il.Raw{Offset: 1, Code: il.Pop},
		il.Raw{Offset: 2, Code: il.Pop},
	)
	tr := New(insts)

	_, ok := tr.Producer(2, 0)
	assert.False(t, ok, "second pop has nothing left to consume")
	_, ok = tr.Producer(0, 0)
	assert.False(t, ok, "first instruction has no predecessor")
	_, ok = tr.Producer(1, 1)
	assert.False(t, ok, "only one value was ever pushed")

	p, ok := tr.Producer(1, 0)
	assert.True(t, ok)
	assert.Equal(t, 0, p)
}

func TestProducerOutOfRange(t *testing.T) {
	tr := New(decode(t, il.Raw{Code: il.LdcI40}, il.Raw{Offset: 1, Code: il.Pop}))
	for _, q := range [][2]int{{-1, 0}, {2, 0}, {5, 0}, {1, -1}} {
		p, ok := tr.Producer(q[0], q[1])
		assert.False(t, ok, "Producer(%d, %d)", q[0], q[1])
		assert.Equal(t, -1, p)
	}
}

func TestProducerMergePoint(t *testing.T) {
	// x = arg0 ? 1 : 0
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.Ldarg0},
		il.Raw{Offset: 1, Code: il.BrtrueS, Operand: 6},
		il.Raw{Offset: 3, Code: il.LdcI40},
		il.Raw{Offset: 4, Code: il.BrS, Operand: 7},
		il.Raw{Offset: 6, Code: il.LdcI41},
		il.Raw{Offset: 7, Code: il.Stloc0}, // join: two incoming values
		il.Raw{Offset: 8, Code: il.Ret},
	)
	tr := New(insts)

	_, ok := tr.Producer(5, 0)
	assert.False(t, ok)

	p, ok := tr.Producer(1, 0)
	assert.True(t, ok)
	assert.Equal(t, 0, p)
}

func TestProducerBackEdge(t *testing.T) {
	// The value below ldc.i4.1 is carried around the loop.
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI45},
		il.Raw{Offset: 1, Code: il.LdcI41}, // loop head
		il.Raw{Offset: 2, Code: il.Sub},
		il.Raw{Offset: 3, Code: il.Dup},
		il.Raw{Offset: 4, Code: il.BrtrueS, Operand: 1},
		il.Raw{Offset: 6, Code: il.Pop},
		il.Raw{Offset: 7, Code: il.Ret},
	)
	tr := New(insts)

	p, ok := tr.Producer(2, 0)
	assert.True(t, ok, "top operand is pushed inside the loop body")
	assert.Equal(t, 1, p)

	_, ok = tr.Producer(2, 1)
	assert.False(t, ok, "loop-carried value crosses the back edge")
}

func TestProducerHandlerEntry(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI40},
		il.Raw{Offset: 1, Code: il.Pop}, // handler start
		il.Raw{Offset: 2, Code: il.Ret},
	)
	p, ok := New(insts).Producer(1, 0)
	assert.True(t, ok)
	assert.Equal(t, 0, p)

	_, ok = New(insts, 1).Producer(1, 0)
	assert.False(t, ok, "handler entry is a merge point")
}

func TestProducerUnknownEffect(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI40},
		il.Raw{Offset: 1, Code: il.Code(0x24)},
		il.Raw{Offset: 2, Code: il.Pop},
	)
	_, ok := New(insts).Producer(2, 0)
	assert.False(t, ok)
}

func TestProducerCallvirtReceiver(t *testing.T) {
	// The reference lacks "this"; callvirt still pops the receiver.
	frob := il.MethodRef{DeclaringType: "C", Name: "Frob"}
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI4S, Operand: int32(5)},
		il.Raw{Offset: 2, Code: il.Ldarg0},
		il.Raw{Offset: 3, Code: il.Callvirt, Operand: frob},
		il.Raw{Offset: 8, Code: il.Call, Operand: sleep},
	)
	p, ok := New(insts).Producer(3, 0)
	require.True(t, ok)
	assert.Equal(t, 0, p)

	pop, push, ok := il.StackEffect(insts[2])
	require.True(t, ok)
	assert.Equal(t, 1, pop)
	assert.Equal(t, 0, push)
}

func TestProducerAlwaysBeforeConsumer(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0x00, Code: il.Ldarg0},
		il.Raw{Offset: 0x01, Code: il.Ldarg1},
		il.Raw{Offset: 0x02, Code: il.Call, Operand: indexOf},
		il.Raw{Offset: 0x07, Code: il.Dup},
		il.Raw{Offset: 0x08, Code: il.Stloc0},
		il.Raw{Offset: 0x09, Code: il.LdcI40},
		il.Raw{Offset: 0x0A, Code: il.Cgt},
		il.Raw{Offset: 0x0C, Code: il.BrfalseS, Operand: 0x10},
		il.Raw{Offset: 0x0E, Code: il.Ldloc0},
		il.Raw{Offset: 0x0F, Code: il.Pop},
		il.Raw{Offset: 0x10, Code: il.Ret},
	)
	tr := New(insts)
	for i := range insts {
		for arg := 0; arg < 4; arg++ {
			if p, ok := tr.Producer(i, arg); ok {
				assert.Less(t, p, i, "Producer(%d, %d)", i, arg)
				assert.GreaterOrEqual(t, p, 0)
			}
			if v, ok := tr.Value(i, arg); ok {
				assert.Less(t, v, i, "Value(%d, %d)", i, arg)
			}
		}
	}
}

func TestValueThroughLocal(t *testing.T) {
	// int x = 0; Thread.Sleep(x);
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI40},
		il.Raw{Offset: 1, Code: il.Stloc0},
		il.Raw{Offset: 2, Code: il.Ldloc0},
		il.Raw{Offset: 3, Code: il.Call, Operand: sleep},
		il.Raw{Offset: 8, Code: il.Ret},
	)
	tr := New(insts)

	p, ok := tr.Producer(3, 0)
	require.True(t, ok)
	assert.Equal(t, 2, p)

	v, ok := tr.Value(3, 0)
	require.True(t, ok)
	assert.Equal(t, 0, v)
	c, isConst := insts[v].(*il.LoadConst)
	require.True(t, isConst)
	n, _ := c.Int()
	assert.Equal(t, int64(0), n)
}

func TestValueThroughDup(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI40},
		il.Raw{Offset: 1, Code: il.Dup},
		il.Raw{Offset: 2, Code: il.Stloc0},
		il.Raw{Offset: 3, Code: il.Call, Operand: sleep},
		il.Raw{Offset: 8, Code: il.Ret},
	)
	v, ok := New(insts).Value(3, 0)
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestValueStopsAtAddressTaken(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.LdcI40},
		il.Raw{Offset: 1, Code: il.Stloc0},
		il.Raw{Offset: 2, Code: il.LdlocaS, Operand: 0},
		il.Raw{Offset: 4, Code: il.Call, Operand: byRef},
		il.Raw{Offset: 9, Code: il.Ldloc0},
		il.Raw{Offset: 10, Code: il.Call, Operand: sleep},
		il.Raw{Offset: 15, Code: il.Ret},
	)
	_, ok := New(insts).Value(5, 0)
	assert.False(t, ok)
}

func TestValueStoreOnOtherPath(t *testing.T) {
	insts := decode(t,
		il.Raw{Offset: 0, Code: il.Ldarg0},
		il.Raw{Offset: 1, Code: il.BrtrueS, Operand: 5},
		il.Raw{Offset: 3, Code: il.LdcI40},
		il.Raw{Offset: 4, Code: il.Stloc0},
		il.Raw{Offset: 5, Code: il.Ldloc0}, // reached with or without the store
		il.Raw{Offset: 6, Code: il.Call, Operand: sleep},
		il.Raw{Offset: 11, Code: il.Ret},
	)
	tr := New(insts)

	p, ok := tr.Producer(5, 0)
	require.True(t, ok)
	assert.Equal(t, 4, p)

	_, ok = tr.Value(5, 0)
	assert.False(t, ok)
}
