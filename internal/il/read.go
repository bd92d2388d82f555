package il

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TokenResolver maps metadata tokens found in a method body to references.
// Each lookup returns ok=false for tokens it cannot resolve.
type TokenResolver interface {
	String(token uint32) (string, bool)
	Method(token uint32) (MethodRef, bool)
	Field(token uint32) (FieldRef, bool)
	Type(token uint32) (string, bool)
}

// ReadError reports a body that cannot be split into instructions.
type ReadError struct {
	Offset int
	Msg    string
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("il: read at 0x%04x: %s", e.Offset, e.Msg)
}

// Read splits an ECMA-335 encoded method body into raw instructions.
// Branch operands are converted to absolute offsets. Tokens that res cannot
// resolve are kept as uint32 so that Decode reports them. res may be nil.
func Read(code []byte, res TokenResolver) ([]Raw, error) {
	var out []Raw
	pos := 0
	for pos < len(code) {
		start := pos
		c := Code(code[pos])
		pos++
		if c == 0xFE {
			if pos >= len(code) {
				return nil, &ReadError{Offset: start, Msg: "truncated two-byte opcode"}
			}
			c = 0xFE00 | Code(code[pos])
			pos++
		}
		info, ok := c.Info()
		if !ok {
			return nil, &ReadError{Offset: start, Msg: fmt.Sprintf("unknown opcode %s", c)}
		}

		size := operandSize(info.Operand)
		if info.Operand == InlineSwitch {
			if pos+4 > len(code) {
				return nil, &ReadError{Offset: start, Msg: "truncated switch"}
			}
			n := int(binary.LittleEndian.Uint32(code[pos:]))
			if n > (len(code)-pos-4)/4 {
				return nil, &ReadError{Offset: start, Msg: "truncated switch table"}
			}
			size = 4 + 4*n
		}
		if pos+size > len(code) {
			return nil, &ReadError{Offset: start, Msg: fmt.Sprintf("truncated %s operand", info.Name)}
		}
		operand := readOperand(info.Operand, code[pos:pos+size], pos+size, res)
		pos += size

		out = append(out, Raw{Offset: start, Code: c, Operand: operand})
	}
	return out, nil
}

func operandSize(k OperandKind) int {
	switch k {
	case ShortInlineVar, ShortInlineI, ShortInlineBrTarget:
		return 1
	case InlineVar:
		return 2
	case InlineI, ShortInlineR, InlineBrTarget, InlineString, InlineMethod,
		InlineField, InlineType, InlineTok, InlineSig:
		return 4
	case InlineI8, InlineR:
		return 8
	}
	return 0
}

// readOperand decodes b. next is the offset of the following instruction,
// which relative branches are measured from.
func readOperand(k OperandKind, b []byte, next int, res TokenResolver) any {
	le := binary.LittleEndian
	switch k {
	case InlineNone:
		return nil
	case ShortInlineVar:
		return int(b[0])
	case InlineVar:
		return int(le.Uint16(b))
	case ShortInlineI:
		return int32(int8(b[0]))
	case InlineI:
		return int32(le.Uint32(b))
	case InlineI8:
		return int64(le.Uint64(b))
	case ShortInlineR:
		return math.Float32frombits(le.Uint32(b))
	case InlineR:
		return math.Float64frombits(le.Uint64(b))
	case ShortInlineBrTarget:
		return next + int(int8(b[0]))
	case InlineBrTarget:
		return next + int(int32(le.Uint32(b)))
	case InlineSwitch:
		n := int(le.Uint32(b))
		targets := make([]int, n)
		for i := range targets {
			targets[i] = next + int(int32(le.Uint32(b[4+4*i:])))
		}
		return targets
	}

	tok := le.Uint32(b)
	if res == nil {
		return tok
	}
	switch k {
	case InlineString:
		if s, ok := res.String(tok); ok {
			return s
		}
	case InlineMethod:
		if m, ok := res.Method(tok); ok {
			return m
		}
	case InlineField:
		if f, ok := res.Field(tok); ok {
			return f
		}
	case InlineType:
		if t, ok := res.Type(tok); ok {
			return t
		}
	}
	return tok
}
