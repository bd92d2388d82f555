// Package loader reads module dumps into metadata.Module values.
package loader

import "cilscan/internal/il"

// Dump is the serialized form of a module. JSON and CBOR dumps share it.
type Dump struct {
	Name   string     `json:"name" cbor:"name"`
	Types  []TypeDump `json:"types" cbor:"types"`
	Tokens Tokens     `json:"tokens" cbor:"tokens"`
}

// Tokens resolves metadata tokens, keyed by "0x"-prefixed token value.
type Tokens struct {
	Strings map[string]string       `json:"strings,omitempty" cbor:"strings,omitempty"`
	Methods map[string]il.MethodRef `json:"methods,omitempty" cbor:"methods,omitempty"`
	Fields  map[string]il.FieldRef  `json:"fields,omitempty" cbor:"fields,omitempty"`
	Types   map[string]string       `json:"types,omitempty" cbor:"types,omitempty"`
}

type TypeDump struct {
	Name              string         `json:"name" cbor:"name"`
	Base              string         `json:"base,omitempty" cbor:"base,omitempty"`
	Interfaces        []string       `json:"interfaces,omitempty" cbor:"interfaces,omitempty"`
	Public            bool           `json:"public,omitempty" cbor:"public,omitempty"`
	Sealed            bool           `json:"sealed,omitempty" cbor:"sealed,omitempty"`
	Abstract          bool           `json:"abstract,omitempty" cbor:"abstract,omitempty"`
	ValueType         bool           `json:"value_type,omitempty" cbor:"value_type,omitempty"`
	Interface         bool           `json:"interface,omitempty" cbor:"interface,omitempty"`
	CompilerGenerated bool           `json:"compiler_generated,omitempty" cbor:"compiler_generated,omitempty"`
	External          bool           `json:"external,omitempty" cbor:"external,omitempty"`
	Fields            []FieldDump    `json:"fields,omitempty" cbor:"fields,omitempty"`
	Properties        []PropertyDump `json:"properties,omitempty" cbor:"properties,omitempty"`
	Methods           []MethodDump   `json:"methods,omitempty" cbor:"methods,omitempty"`
}

type FieldDump struct {
	Name     string `json:"name" cbor:"name"`
	Type     string `json:"type" cbor:"type"`
	Public   bool   `json:"public,omitempty" cbor:"public,omitempty"`
	Family   bool   `json:"family,omitempty" cbor:"family,omitempty"`
	Static   bool   `json:"static,omitempty" cbor:"static,omitempty"`
	InitOnly bool   `json:"init_only,omitempty" cbor:"init_only,omitempty"`
}

type PropertyDump struct {
	Name string `json:"name" cbor:"name"`
	Type string `json:"type" cbor:"type"`
}

type ParamDump struct {
	Name string `json:"name,omitempty" cbor:"name,omitempty"`
	Type string `json:"type" cbor:"type"`
}

type PInvokeDump struct {
	Module string `json:"module" cbor:"module"`
	Entry  string `json:"entry,omitempty" cbor:"entry,omitempty"`
}

type MethodDump struct {
	Name          string        `json:"name" cbor:"name"`
	Returns       string        `json:"returns,omitempty" cbor:"returns,omitempty"`
	Params        []ParamDump   `json:"params,omitempty" cbor:"params,omitempty"`
	GenericParams []string      `json:"generic_params,omitempty" cbor:"generic_params,omitempty"`
	Public        bool          `json:"public,omitempty" cbor:"public,omitempty"`
	Static        bool          `json:"static,omitempty" cbor:"static,omitempty"`
	Virtual       bool          `json:"virtual,omitempty" cbor:"virtual,omitempty"`
	NewSlot       bool          `json:"new_slot,omitempty" cbor:"new_slot,omitempty"`
	Abstract      bool          `json:"abstract,omitempty" cbor:"abstract,omitempty"`
	PInvoke       *PInvokeDump  `json:"pinvoke,omitempty" cbor:"pinvoke,omitempty"`
	Code          string        `json:"code,omitempty" cbor:"code,omitempty"` // hex of the encoded body
	IL            []ILDump      `json:"il,omitempty" cbor:"il,omitempty"`
	Handlers      []HandlerDump `json:"handlers,omitempty" cbor:"handlers,omitempty"`
	Locals        []string      `json:"locals,omitempty" cbor:"locals,omitempty"`
}

// ILDump is one instruction in mnemonic form. Token operands are token
// strings; branch targets are offsets or "IL_xxxx" labels.
type ILDump struct {
	Offset  int    `json:"offset" cbor:"offset"`
	Op      string `json:"op" cbor:"op"`
	Operand any    `json:"operand,omitempty" cbor:"operand,omitempty"`
}

type HandlerDump struct {
	Kind         string `json:"kind" cbor:"kind"` // catch, filter, finally, fault
	TryStart     int    `json:"try_start" cbor:"try_start"`
	TryEnd       int    `json:"try_end" cbor:"try_end"`
	HandlerStart int    `json:"handler_start" cbor:"handler_start"`
	HandlerEnd   int    `json:"handler_end" cbor:"handler_end"`
	FilterStart  int    `json:"filter_start,omitempty" cbor:"filter_start,omitempty"`
	CatchType    string `json:"catch_type,omitempty" cbor:"catch_type,omitempty"`
}
