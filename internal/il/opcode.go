package il

import "fmt"

// Code identifies a CIL opcode. Two-byte opcodes keep their 0xFE prefix in
// the high byte (ceq = 0xFE01).
type Code uint16

// OperandKind describes the inline operand that follows an opcode.
type OperandKind uint8

const (
	InlineNone     OperandKind = iota
	ShortInlineVar             // uint8 local/arg index
	InlineVar                  // uint16 local/arg index
	ShortInlineI               // int8
	InlineI                    // int32
	InlineI8                   // int64
	ShortInlineR               // float32
	InlineR                    // float64
	InlineString               // string token
	InlineMethod               // method token
	InlineField                // field token
	InlineType                 // type token
	InlineTok                  // any metadata token
	InlineSig                  // stand-alone signature token
	ShortInlineBrTarget        // int8 relative branch
	InlineBrTarget             // int32 relative branch
	InlineSwitch               // uint32 count + int32 relative targets
)

// Flow classifies how control leaves an instruction.
type Flow uint8

const (
	FlowNext Flow = iota
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
	FlowMeta // prefixes
)

// Varies marks a stack arity that depends on the operand (calls, ret).
const Varies = -1

// Info is the static description of an opcode.
type Info struct {
	Name    string
	Operand OperandKind
	Pop     int
	Push    int
	Flow    Flow
}

const (
	Nop         Code = 0x00
	Break       Code = 0x01
	Ldarg0      Code = 0x02
	Ldarg1      Code = 0x03
	Ldarg2      Code = 0x04
	Ldarg3      Code = 0x05
	Ldloc0      Code = 0x06
	Ldloc1      Code = 0x07
	Ldloc2      Code = 0x08
	Ldloc3      Code = 0x09
	Stloc0      Code = 0x0A
	Stloc1      Code = 0x0B
	Stloc2      Code = 0x0C
	Stloc3      Code = 0x0D
	LdargS      Code = 0x0E
	LdargaS     Code = 0x0F
	StargS      Code = 0x10
	LdlocS      Code = 0x11
	LdlocaS     Code = 0x12
	StlocS      Code = 0x13
	Ldnull      Code = 0x14
	LdcI4M1     Code = 0x15
	LdcI40      Code = 0x16
	LdcI41      Code = 0x17
	LdcI42      Code = 0x18
	LdcI43      Code = 0x19
	LdcI44      Code = 0x1A
	LdcI45      Code = 0x1B
	LdcI46      Code = 0x1C
	LdcI47      Code = 0x1D
	LdcI48      Code = 0x1E
	LdcI4S      Code = 0x1F
	LdcI4       Code = 0x20
	LdcI8       Code = 0x21
	LdcR4       Code = 0x22
	LdcR8       Code = 0x23
	Dup         Code = 0x25
	Pop         Code = 0x26
	Jmp         Code = 0x27
	Call        Code = 0x28
	Calli       Code = 0x29
	Ret         Code = 0x2A
	BrS         Code = 0x2B
	BrfalseS    Code = 0x2C
	BrtrueS     Code = 0x2D
	BeqS        Code = 0x2E
	BgeS        Code = 0x2F
	BgtS        Code = 0x30
	BleS        Code = 0x31
	BltS        Code = 0x32
	BneUnS      Code = 0x33
	BgeUnS      Code = 0x34
	BgtUnS      Code = 0x35
	BleUnS      Code = 0x36
	BltUnS      Code = 0x37
	Br          Code = 0x38
	Brfalse     Code = 0x39
	Brtrue      Code = 0x3A
	Beq         Code = 0x3B
	Bge         Code = 0x3C
	Bgt         Code = 0x3D
	Ble         Code = 0x3E
	Blt         Code = 0x3F
	BneUn       Code = 0x40
	BgeUn       Code = 0x41
	BgtUn       Code = 0x42
	BleUn       Code = 0x43
	BltUn       Code = 0x44
	Switch      Code = 0x45
	LdindI1     Code = 0x46
	LdindU1     Code = 0x47
	LdindI2     Code = 0x48
	LdindU2     Code = 0x49
	LdindI4     Code = 0x4A
	LdindU4     Code = 0x4B
	LdindI8     Code = 0x4C
	LdindI      Code = 0x4D
	LdindR4     Code = 0x4E
	LdindR8     Code = 0x4F
	LdindRef    Code = 0x50
	StindRef    Code = 0x51
	StindI1     Code = 0x52
	StindI2     Code = 0x53
	StindI4     Code = 0x54
	StindI8     Code = 0x55
	StindR4     Code = 0x56
	StindR8     Code = 0x57
	Add         Code = 0x58
	Sub         Code = 0x59
	Mul         Code = 0x5A
	Div         Code = 0x5B
	DivUn       Code = 0x5C
	Rem         Code = 0x5D
	RemUn       Code = 0x5E
	And         Code = 0x5F
	Or          Code = 0x60
	Xor         Code = 0x61
	Shl         Code = 0x62
	Shr         Code = 0x63
	ShrUn       Code = 0x64
	Neg         Code = 0x65
	Not         Code = 0x66
	ConvI1      Code = 0x67
	ConvI2      Code = 0x68
	ConvI4      Code = 0x69
	ConvI8      Code = 0x6A
	ConvR4      Code = 0x6B
	ConvR8      Code = 0x6C
	ConvU4      Code = 0x6D
	ConvU8      Code = 0x6E
	Callvirt    Code = 0x6F
	Cpobj       Code = 0x70
	Ldobj       Code = 0x71
	Ldstr       Code = 0x72
	Newobj      Code = 0x73
	Castclass   Code = 0x74
	Isinst      Code = 0x75
	ConvRUn     Code = 0x76
	Unbox       Code = 0x79
	Throw       Code = 0x7A
	Ldfld       Code = 0x7B
	Ldflda      Code = 0x7C
	Stfld       Code = 0x7D
	Ldsfld      Code = 0x7E
	Ldsflda     Code = 0x7F
	Stsfld      Code = 0x80
	Stobj       Code = 0x81
	ConvOvfI1Un Code = 0x82
	ConvOvfI2Un Code = 0x83
	ConvOvfI4Un Code = 0x84
	ConvOvfI8Un Code = 0x85
	ConvOvfU1Un Code = 0x86
	ConvOvfU2Un Code = 0x87
	ConvOvfU4Un Code = 0x88
	ConvOvfU8Un Code = 0x89
	ConvOvfIUn  Code = 0x8A
	ConvOvfUUn  Code = 0x8B
	Box         Code = 0x8C
	Newarr      Code = 0x8D
	Ldlen       Code = 0x8E
	Ldelema     Code = 0x8F
	LdelemI1    Code = 0x90
	LdelemU1    Code = 0x91
	LdelemI2    Code = 0x92
	LdelemU2    Code = 0x93
	LdelemI4    Code = 0x94
	LdelemU4    Code = 0x95
	LdelemI8    Code = 0x96
	LdelemI     Code = 0x97
	LdelemR4    Code = 0x98
	LdelemR8    Code = 0x99
	LdelemRef   Code = 0x9A
	StelemI     Code = 0x9B
	StelemI1    Code = 0x9C
	StelemI2    Code = 0x9D
	StelemI4    Code = 0x9E
	StelemI8    Code = 0x9F
	StelemR4    Code = 0xA0
	StelemR8    Code = 0xA1
	StelemRef   Code = 0xA2
	Ldelem      Code = 0xA3
	Stelem      Code = 0xA4
	UnboxAny    Code = 0xA5
	ConvOvfI1   Code = 0xB3
	ConvOvfU1   Code = 0xB4
	ConvOvfI2   Code = 0xB5
	ConvOvfU2   Code = 0xB6
	ConvOvfI4   Code = 0xB7
	ConvOvfU4   Code = 0xB8
	ConvOvfI8   Code = 0xB9
	ConvOvfU8   Code = 0xBA
	Refanyval   Code = 0xC2
	Ckfinite    Code = 0xC3
	Mkrefany    Code = 0xC6
	Ldtoken     Code = 0xD0
	ConvU2      Code = 0xD1
	ConvU1      Code = 0xD2
	ConvI       Code = 0xD3
	ConvOvfI    Code = 0xD4
	ConvOvfU    Code = 0xD5
	AddOvf      Code = 0xD6
	AddOvfUn    Code = 0xD7
	MulOvf      Code = 0xD8
	MulOvfUn    Code = 0xD9
	SubOvf      Code = 0xDA
	SubOvfUn    Code = 0xDB
	Endfinally  Code = 0xDC
	Leave       Code = 0xDD
	LeaveS      Code = 0xDE
	StindI      Code = 0xDF
	ConvU       Code = 0xE0

	Arglist     Code = 0xFE00
	Ceq         Code = 0xFE01
	Cgt         Code = 0xFE02
	CgtUn       Code = 0xFE03
	Clt         Code = 0xFE04
	CltUn       Code = 0xFE05
	Ldftn       Code = 0xFE06
	Ldvirtftn   Code = 0xFE07
	Ldarg       Code = 0xFE09
	Ldarga      Code = 0xFE0A
	Starg       Code = 0xFE0B
	Ldloc       Code = 0xFE0C
	Ldloca      Code = 0xFE0D
	Stloc       Code = 0xFE0E
	Localloc    Code = 0xFE0F
	Endfilter   Code = 0xFE11
	Unaligned   Code = 0xFE12
	Volatile    Code = 0xFE13
	Tail        Code = 0xFE14
	Initobj     Code = 0xFE15
	Constrained Code = 0xFE16
	Cpblk       Code = 0xFE17
	Initblk     Code = 0xFE18
	No          Code = 0xFE19
	Rethrow     Code = 0xFE1A
	Sizeof      Code = 0xFE1C
	Refanytype  Code = 0xFE1D
	Readonly    Code = 0xFE1E
)

var opcodes = map[Code]Info{
	Nop:   {"nop", InlineNone, 0, 0, FlowNext},
	Break: {"break", InlineNone, 0, 0, FlowNext},

	Ldarg0:  {"ldarg.0", InlineNone, 0, 1, FlowNext},
	Ldarg1:  {"ldarg.1", InlineNone, 0, 1, FlowNext},
	Ldarg2:  {"ldarg.2", InlineNone, 0, 1, FlowNext},
	Ldarg3:  {"ldarg.3", InlineNone, 0, 1, FlowNext},
	LdargS:  {"ldarg.s", ShortInlineVar, 0, 1, FlowNext},
	Ldarg:   {"ldarg", InlineVar, 0, 1, FlowNext},
	LdargaS: {"ldarga.s", ShortInlineVar, 0, 1, FlowNext},
	Ldarga:  {"ldarga", InlineVar, 0, 1, FlowNext},
	StargS:  {"starg.s", ShortInlineVar, 1, 0, FlowNext},
	Starg:   {"starg", InlineVar, 1, 0, FlowNext},
	Arglist: {"arglist", InlineNone, 0, 1, FlowNext},

	Ldloc0:   {"ldloc.0", InlineNone, 0, 1, FlowNext},
	Ldloc1:   {"ldloc.1", InlineNone, 0, 1, FlowNext},
	Ldloc2:   {"ldloc.2", InlineNone, 0, 1, FlowNext},
	Ldloc3:   {"ldloc.3", InlineNone, 0, 1, FlowNext},
	LdlocS:   {"ldloc.s", ShortInlineVar, 0, 1, FlowNext},
	Ldloc:    {"ldloc", InlineVar, 0, 1, FlowNext},
	LdlocaS:  {"ldloca.s", ShortInlineVar, 0, 1, FlowNext},
	Ldloca:   {"ldloca", InlineVar, 0, 1, FlowNext},
	Stloc0:   {"stloc.0", InlineNone, 1, 0, FlowNext},
	Stloc1:   {"stloc.1", InlineNone, 1, 0, FlowNext},
	Stloc2:   {"stloc.2", InlineNone, 1, 0, FlowNext},
	Stloc3:   {"stloc.3", InlineNone, 1, 0, FlowNext},
	StlocS:   {"stloc.s", ShortInlineVar, 1, 0, FlowNext},
	Stloc:    {"stloc", InlineVar, 1, 0, FlowNext},
	Localloc: {"localloc", InlineNone, 1, 1, FlowNext},

	Ldnull:  {"ldnull", InlineNone, 0, 1, FlowNext},
	LdcI4M1: {"ldc.i4.m1", InlineNone, 0, 1, FlowNext},
	LdcI40:  {"ldc.i4.0", InlineNone, 0, 1, FlowNext},
	LdcI41:  {"ldc.i4.1", InlineNone, 0, 1, FlowNext},
	LdcI42:  {"ldc.i4.2", InlineNone, 0, 1, FlowNext},
	LdcI43:  {"ldc.i4.3", InlineNone, 0, 1, FlowNext},
	LdcI44:  {"ldc.i4.4", InlineNone, 0, 1, FlowNext},
	LdcI45:  {"ldc.i4.5", InlineNone, 0, 1, FlowNext},
	LdcI46:  {"ldc.i4.6", InlineNone, 0, 1, FlowNext},
	LdcI47:  {"ldc.i4.7", InlineNone, 0, 1, FlowNext},
	LdcI48:  {"ldc.i4.8", InlineNone, 0, 1, FlowNext},
	LdcI4S:  {"ldc.i4.s", ShortInlineI, 0, 1, FlowNext},
	LdcI4:   {"ldc.i4", InlineI, 0, 1, FlowNext},
	LdcI8:   {"ldc.i8", InlineI8, 0, 1, FlowNext},
	LdcR4:   {"ldc.r4", ShortInlineR, 0, 1, FlowNext},
	LdcR8:   {"ldc.r8", InlineR, 0, 1, FlowNext},
	Ldstr:   {"ldstr", InlineString, 0, 1, FlowNext},
	Ldtoken: {"ldtoken", InlineTok, 0, 1, FlowNext},

	Dup:       {"dup", InlineNone, 1, 2, FlowNext},
	Pop:       {"pop", InlineNone, 1, 0, FlowNext},
	Jmp:       {"jmp", InlineMethod, 0, 0, FlowReturn},
	Call:      {"call", InlineMethod, Varies, Varies, FlowCall},
	Calli:     {"calli", InlineSig, Varies, Varies, FlowCall},
	Callvirt:  {"callvirt", InlineMethod, Varies, Varies, FlowCall},
	Newobj:    {"newobj", InlineMethod, Varies, 1, FlowCall},
	Ldftn:     {"ldftn", InlineMethod, 0, 1, FlowNext},
	Ldvirtftn: {"ldvirtftn", InlineMethod, 1, 1, FlowNext},
	Ret:       {"ret", InlineNone, Varies, 0, FlowReturn},

	BrS:      {"br.s", ShortInlineBrTarget, 0, 0, FlowBranch},
	BrfalseS: {"brfalse.s", ShortInlineBrTarget, 1, 0, FlowCondBranch},
	BrtrueS:  {"brtrue.s", ShortInlineBrTarget, 1, 0, FlowCondBranch},
	BeqS:     {"beq.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BgeS:     {"bge.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BgtS:     {"bgt.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BleS:     {"ble.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BltS:     {"blt.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BneUnS:   {"bne.un.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BgeUnS:   {"bge.un.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BgtUnS:   {"bgt.un.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BleUnS:   {"ble.un.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BltUnS:   {"blt.un.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	Br:       {"br", InlineBrTarget, 0, 0, FlowBranch},
	Brfalse:  {"brfalse", InlineBrTarget, 1, 0, FlowCondBranch},
	Brtrue:   {"brtrue", InlineBrTarget, 1, 0, FlowCondBranch},
	Beq:      {"beq", InlineBrTarget, 2, 0, FlowCondBranch},
	Bge:      {"bge", InlineBrTarget, 2, 0, FlowCondBranch},
	Bgt:      {"bgt", InlineBrTarget, 2, 0, FlowCondBranch},
	Ble:      {"ble", InlineBrTarget, 2, 0, FlowCondBranch},
	Blt:      {"blt", InlineBrTarget, 2, 0, FlowCondBranch},
	BneUn:    {"bne.un", InlineBrTarget, 2, 0, FlowCondBranch},
	BgeUn:    {"bge.un", InlineBrTarget, 2, 0, FlowCondBranch},
	BgtUn:    {"bgt.un", InlineBrTarget, 2, 0, FlowCondBranch},
	BleUn:    {"ble.un", InlineBrTarget, 2, 0, FlowCondBranch},
	BltUn:    {"blt.un", InlineBrTarget, 2, 0, FlowCondBranch},
	Switch:   {"switch", InlineSwitch, 1, 0, FlowCondBranch},
	Leave:    {"leave", InlineBrTarget, 0, 0, FlowBranch},
	LeaveS:   {"leave.s", ShortInlineBrTarget, 0, 0, FlowBranch},

	LdindI1:  {"ldind.i1", InlineNone, 1, 1, FlowNext},
	LdindU1:  {"ldind.u1", InlineNone, 1, 1, FlowNext},
	LdindI2:  {"ldind.i2", InlineNone, 1, 1, FlowNext},
	LdindU2:  {"ldind.u2", InlineNone, 1, 1, FlowNext},
	LdindI4:  {"ldind.i4", InlineNone, 1, 1, FlowNext},
	LdindU4:  {"ldind.u4", InlineNone, 1, 1, FlowNext},
	LdindI8:  {"ldind.i8", InlineNone, 1, 1, FlowNext},
	LdindI:   {"ldind.i", InlineNone, 1, 1, FlowNext},
	LdindR4:  {"ldind.r4", InlineNone, 1, 1, FlowNext},
	LdindR8:  {"ldind.r8", InlineNone, 1, 1, FlowNext},
	LdindRef: {"ldind.ref", InlineNone, 1, 1, FlowNext},
	StindRef: {"stind.ref", InlineNone, 2, 0, FlowNext},
	StindI1:  {"stind.i1", InlineNone, 2, 0, FlowNext},
	StindI2:  {"stind.i2", InlineNone, 2, 0, FlowNext},
	StindI4:  {"stind.i4", InlineNone, 2, 0, FlowNext},
	StindI8:  {"stind.i8", InlineNone, 2, 0, FlowNext},
	StindR4:  {"stind.r4", InlineNone, 2, 0, FlowNext},
	StindR8:  {"stind.r8", InlineNone, 2, 0, FlowNext},
	StindI:   {"stind.i", InlineNone, 2, 0, FlowNext},

	Add:      {"add", InlineNone, 2, 1, FlowNext},
	Sub:      {"sub", InlineNone, 2, 1, FlowNext},
	Mul:      {"mul", InlineNone, 2, 1, FlowNext},
	Div:      {"div", InlineNone, 2, 1, FlowNext},
	DivUn:    {"div.un", InlineNone, 2, 1, FlowNext},
	Rem:      {"rem", InlineNone, 2, 1, FlowNext},
	RemUn:    {"rem.un", InlineNone, 2, 1, FlowNext},
	And:      {"and", InlineNone, 2, 1, FlowNext},
	Or:       {"or", InlineNone, 2, 1, FlowNext},
	Xor:      {"xor", InlineNone, 2, 1, FlowNext},
	Shl:      {"shl", InlineNone, 2, 1, FlowNext},
	Shr:      {"shr", InlineNone, 2, 1, FlowNext},
	ShrUn:    {"shr.un", InlineNone, 2, 1, FlowNext},
	Neg:      {"neg", InlineNone, 1, 1, FlowNext},
	Not:      {"not", InlineNone, 1, 1, FlowNext},
	AddOvf:   {"add.ovf", InlineNone, 2, 1, FlowNext},
	AddOvfUn: {"add.ovf.un", InlineNone, 2, 1, FlowNext},
	MulOvf:   {"mul.ovf", InlineNone, 2, 1, FlowNext},
	MulOvfUn: {"mul.ovf.un", InlineNone, 2, 1, FlowNext},
	SubOvf:   {"sub.ovf", InlineNone, 2, 1, FlowNext},
	SubOvfUn: {"sub.ovf.un", InlineNone, 2, 1, FlowNext},
	Ckfinite: {"ckfinite", InlineNone, 1, 1, FlowNext},

	ConvI1:  {"conv.i1", InlineNone, 1, 1, FlowNext},
	ConvI2:  {"conv.i2", InlineNone, 1, 1, FlowNext},
	ConvI4:  {"conv.i4", InlineNone, 1, 1, FlowNext},
	ConvI8:  {"conv.i8", InlineNone, 1, 1, FlowNext},
	ConvR4:  {"conv.r4", InlineNone, 1, 1, FlowNext},
	ConvR8:  {"conv.r8", InlineNone, 1, 1, FlowNext},
	ConvU1:  {"conv.u1", InlineNone, 1, 1, FlowNext},
	ConvU2:  {"conv.u2", InlineNone, 1, 1, FlowNext},
	ConvU4:  {"conv.u4", InlineNone, 1, 1, FlowNext},
	ConvU8:  {"conv.u8", InlineNone, 1, 1, FlowNext},
	ConvI:   {"conv.i", InlineNone, 1, 1, FlowNext},
	ConvU:   {"conv.u", InlineNone, 1, 1, FlowNext},
	ConvRUn: {"conv.r.un", InlineNone, 1, 1, FlowNext},

	ConvOvfI1:   {"conv.ovf.i1", InlineNone, 1, 1, FlowNext},
	ConvOvfU1:   {"conv.ovf.u1", InlineNone, 1, 1, FlowNext},
	ConvOvfI2:   {"conv.ovf.i2", InlineNone, 1, 1, FlowNext},
	ConvOvfU2:   {"conv.ovf.u2", InlineNone, 1, 1, FlowNext},
	ConvOvfI4:   {"conv.ovf.i4", InlineNone, 1, 1, FlowNext},
	ConvOvfU4:   {"conv.ovf.u4", InlineNone, 1, 1, FlowNext},
	ConvOvfI8:   {"conv.ovf.i8", InlineNone, 1, 1, FlowNext},
	ConvOvfU8:   {"conv.ovf.u8", InlineNone, 1, 1, FlowNext},
	ConvOvfI:    {"conv.ovf.i", InlineNone, 1, 1, FlowNext},
	ConvOvfU:    {"conv.ovf.u", InlineNone, 1, 1, FlowNext},
	ConvOvfI1Un: {"conv.ovf.i1.un", InlineNone, 1, 1, FlowNext},
	ConvOvfI2Un: {"conv.ovf.i2.un", InlineNone, 1, 1, FlowNext},
	ConvOvfI4Un: {"conv.ovf.i4.un", InlineNone, 1, 1, FlowNext},
	ConvOvfI8Un: {"conv.ovf.i8.un", InlineNone, 1, 1, FlowNext},
	ConvOvfU1Un: {"conv.ovf.u1.un", InlineNone, 1, 1, FlowNext},
	ConvOvfU2Un: {"conv.ovf.u2.un", InlineNone, 1, 1, FlowNext},
	ConvOvfU4Un: {"conv.ovf.u4.un", InlineNone, 1, 1, FlowNext},
	ConvOvfU8Un: {"conv.ovf.u8.un", InlineNone, 1, 1, FlowNext},
	ConvOvfIUn:  {"conv.ovf.i.un", InlineNone, 1, 1, FlowNext},
	ConvOvfUUn:  {"conv.ovf.u.un", InlineNone, 1, 1, FlowNext},

	Ldobj:      {"ldobj", InlineType, 1, 1, FlowNext},
	Stobj:      {"stobj", InlineType, 2, 0, FlowNext},
	Cpobj:      {"cpobj", InlineType, 2, 0, FlowNext},
	Initobj:    {"initobj", InlineType, 1, 0, FlowNext},
	Castclass:  {"castclass", InlineType, 1, 1, FlowNext},
	Isinst:     {"isinst", InlineType, 1, 1, FlowNext},
	Unbox:      {"unbox", InlineType, 1, 1, FlowNext},
	UnboxAny:   {"unbox.any", InlineType, 1, 1, FlowNext},
	Box:        {"box", InlineType, 1, 1, FlowNext},
	Sizeof:     {"sizeof", InlineType, 0, 1, FlowNext},
	Mkrefany:   {"mkrefany", InlineType, 1, 1, FlowNext},
	Refanyval:  {"refanyval", InlineType, 1, 1, FlowNext},
	Refanytype: {"refanytype", InlineNone, 1, 1, FlowNext},
	Cpblk:      {"cpblk", InlineNone, 3, 0, FlowNext},
	Initblk:    {"initblk", InlineNone, 3, 0, FlowNext},

	Ldfld:   {"ldfld", InlineField, 1, 1, FlowNext},
	Ldflda:  {"ldflda", InlineField, 1, 1, FlowNext},
	Stfld:   {"stfld", InlineField, 2, 0, FlowNext},
	Ldsfld:  {"ldsfld", InlineField, 0, 1, FlowNext},
	Ldsflda: {"ldsflda", InlineField, 0, 1, FlowNext},
	Stsfld:  {"stsfld", InlineField, 1, 0, FlowNext},

	Newarr:    {"newarr", InlineType, 1, 1, FlowNext},
	Ldlen:     {"ldlen", InlineNone, 1, 1, FlowNext},
	Ldelema:   {"ldelema", InlineType, 2, 1, FlowNext},
	Ldelem:    {"ldelem", InlineType, 2, 1, FlowNext},
	LdelemI1:  {"ldelem.i1", InlineNone, 2, 1, FlowNext},
	LdelemU1:  {"ldelem.u1", InlineNone, 2, 1, FlowNext},
	LdelemI2:  {"ldelem.i2", InlineNone, 2, 1, FlowNext},
	LdelemU2:  {"ldelem.u2", InlineNone, 2, 1, FlowNext},
	LdelemI4:  {"ldelem.i4", InlineNone, 2, 1, FlowNext},
	LdelemU4:  {"ldelem.u4", InlineNone, 2, 1, FlowNext},
	LdelemI8:  {"ldelem.i8", InlineNone, 2, 1, FlowNext},
	LdelemI:   {"ldelem.i", InlineNone, 2, 1, FlowNext},
	LdelemR4:  {"ldelem.r4", InlineNone, 2, 1, FlowNext},
	LdelemR8:  {"ldelem.r8", InlineNone, 2, 1, FlowNext},
	LdelemRef: {"ldelem.ref", InlineNone, 2, 1, FlowNext},
	Stelem:    {"stelem", InlineType, 3, 0, FlowNext},
	StelemI:   {"stelem.i", InlineNone, 3, 0, FlowNext},
	StelemI1:  {"stelem.i1", InlineNone, 3, 0, FlowNext},
	StelemI2:  {"stelem.i2", InlineNone, 3, 0, FlowNext},
	StelemI4:  {"stelem.i4", InlineNone, 3, 0, FlowNext},
	StelemI8:  {"stelem.i8", InlineNone, 3, 0, FlowNext},
	StelemR4:  {"stelem.r4", InlineNone, 3, 0, FlowNext},
	StelemR8:  {"stelem.r8", InlineNone, 3, 0, FlowNext},
	StelemRef: {"stelem.ref", InlineNone, 3, 0, FlowNext},

	Ceq:   {"ceq", InlineNone, 2, 1, FlowNext},
	Cgt:   {"cgt", InlineNone, 2, 1, FlowNext},
	CgtUn: {"cgt.un", InlineNone, 2, 1, FlowNext},
	Clt:   {"clt", InlineNone, 2, 1, FlowNext},
	CltUn: {"clt.un", InlineNone, 2, 1, FlowNext},

	Throw:      {"throw", InlineNone, 1, 0, FlowThrow},
	Rethrow:    {"rethrow", InlineNone, 0, 0, FlowThrow},
	Endfinally: {"endfinally", InlineNone, 0, 0, FlowReturn},
	Endfilter:  {"endfilter", InlineNone, 1, 0, FlowReturn},

	// Prefixes.
	Unaligned:   {"unaligned.", ShortInlineI, 0, 0, FlowMeta},
	Volatile:    {"volatile.", InlineNone, 0, 0, FlowMeta},
	Tail:        {"tail.", InlineNone, 0, 0, FlowMeta},
	Constrained: {"constrained.", InlineType, 0, 0, FlowMeta},
	No:          {"no.", ShortInlineI, 0, 0, FlowMeta},
	Readonly:    {"readonly.", InlineNone, 0, 0, FlowMeta},
}

var byName = func() map[string]Code {
	m := make(map[string]Code, len(opcodes))
	for c, info := range opcodes {
		m[info.Name] = c
	}
	return m
}()

// Info returns the static description of the opcode. ok is false for codes
// outside the table.
func (c Code) Info() (Info, bool) {
	info, ok := opcodes[c]
	return info, ok
}

// String returns the mnemonic, or a hex tag for unknown codes.
func (c Code) String() string {
	if info, ok := opcodes[c]; ok {
		return info.Name
	}
	if c > 0xFF {
		return fmt.Sprintf("op_%04X", uint16(c))
	}
	return fmt.Sprintf("op_%02X", uint16(c))
}

// Lookup resolves a mnemonic ("ldloc.s", "ble.un") to its code.
func Lookup(name string) (Code, bool) {
	c, ok := byName[name]
	return c, ok
}
