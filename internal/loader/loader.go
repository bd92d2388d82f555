package loader

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"cilscan/internal/il"
	"cilscan/internal/metadata"
)

var log = commonlog.GetLogger("cilscan.loader")

// Dump formats.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("loader: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// FormatOf returns the dump format implied by path's extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".cbor":
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("loader: %s: unknown dump format", path)
}

// Load reads the dump at path.
func Load(path string) (*metadata.Module, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	mod, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	if mod.Name == "" {
		mod.Name = filepath.Base(path)
	}
	return mod, nil
}

// Unmarshal parses a dump without building the module.
func Unmarshal(data []byte, format string) (*Dump, error) {
	var d Dump
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		normalizeNumbers(&d)
	case FormatCBOR:
		if err := cbor.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode cbor: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return &d, nil
}

// normalizeNumbers replaces json.Number operands with int64 or float64 so
// that a dump decoded from JSON re-encodes to CBOR unchanged.
func normalizeNumbers(d *Dump) {
	var fix func(v any) any
	fix = func(v any) any {
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i
			}
			if f, err := n.Float64(); err == nil {
				return f
			}
		case []any:
			for i := range n {
				n[i] = fix(n[i])
			}
		}
		return v
	}
	for ti := range d.Types {
		for mi := range d.Types[ti].Methods {
			body := d.Types[ti].Methods[mi].IL
			for i := range body {
				body[i].Operand = fix(body[i].Operand)
			}
		}
	}
}

// Marshal serializes a dump. CBOR output is canonical.
func Marshal(d *Dump, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(d, "", "  ")
	case FormatCBOR:
		return cborEncMode.Marshal(d)
	}
	return nil, fmt.Errorf("loader: unknown format %q", format)
}

// Decode parses a dump and builds its module. Instruction operands are
// validated later, when the dispatcher decodes each body.
func Decode(data []byte, format string) (*metadata.Module, error) {
	d, err := Unmarshal(data, format)
	if err != nil {
		return nil, err
	}
	return Build(d)
}

// Build converts a parsed dump into an indexed module.
func Build(d *Dump) (*metadata.Module, error) {
	toks, err := newTokenTable(d.Tokens)
	if err != nil {
		return nil, err
	}
	mod := &metadata.Module{Name: d.Name}
	for _, td := range d.Types {
		t := &metadata.Type{
			FullName:          td.Name,
			BaseType:          td.Base,
			Interfaces:        td.Interfaces,
			Public:            td.Public,
			Sealed:            td.Sealed,
			Abstract:          td.Abstract,
			ValueType:         td.ValueType,
			Interface:         td.Interface,
			CompilerGenerated: td.CompilerGenerated,
			External:          td.External,
		}
		for _, f := range td.Fields {
			t.Fields = append(t.Fields, &metadata.Field{
				Name: f.Name, FieldType: f.Type, Public: f.Public,
				Family: f.Family, Static: f.Static, InitOnly: f.InitOnly,
			})
		}
		for _, p := range td.Properties {
			t.Properties = append(t.Properties, metadata.Property{Name: p.Name, PropertyType: p.Type})
		}
		for _, md := range td.Methods {
			m, err := buildMethod(md, toks)
			if err != nil {
				return nil, fmt.Errorf("%s::%s: %w", td.Name, md.Name, err)
			}
			t.Methods = append(t.Methods, m)
		}
		mod.Types = append(mod.Types, t)
	}
	mod.Index()
	log.Debugf("built %s: %d types", mod.Name, len(mod.Types))
	return mod, nil
}

func buildMethod(md MethodDump, toks *tokenTable) (*metadata.Method, error) {
	m := &metadata.Method{
		Name:          md.Name,
		ReturnType:    md.Returns,
		GenericParams: md.GenericParams,
		Public:        md.Public,
		Static:        md.Static,
		Virtual:       md.Virtual,
		NewSlot:       md.NewSlot,
		Abstract:      md.Abstract,
	}
	for _, p := range md.Params {
		m.Params = append(m.Params, metadata.Param{Name: p.Name, Type: p.Type})
	}
	if md.PInvoke != nil {
		m.PInvoke = &metadata.PInvoke{Module: md.PInvoke.Module, Entry: md.PInvoke.Entry}
	}
	if md.Code == "" && md.IL == nil {
		return m, nil
	}

	body := &metadata.MethodBody{Locals: md.Locals}
	for _, h := range md.Handlers {
		kind, err := handlerKind(h.Kind)
		if err != nil {
			return nil, err
		}
		body.Handlers = append(body.Handlers, metadata.Handler{
			Kind: kind, TryStart: h.TryStart, TryEnd: h.TryEnd,
			HandlerStart: h.HandlerStart, HandlerEnd: h.HandlerEnd,
			FilterStart: h.FilterStart, CatchType: h.CatchType,
		})
	}
	if md.Code != "" {
		code, err := hex.DecodeString(md.Code)
		if err != nil {
			return nil, fmt.Errorf("code: %w", err)
		}
		body.Code = code
		body.Resolver = toks
	} else {
		raw, err := mnemonicBody(md.IL, toks)
		if err != nil {
			return nil, err
		}
		body.Raw = raw
	}
	m.Body = body
	return m, nil
}

func handlerKind(s string) (metadata.HandlerKind, error) {
	switch s {
	case "catch", "":
		return metadata.HandlerCatch, nil
	case "filter":
		return metadata.HandlerFilter, nil
	case "finally":
		return metadata.HandlerFinally, nil
	case "fault":
		return metadata.HandlerFault, nil
	}
	return 0, fmt.Errorf("unknown handler kind %q", s)
}

// mnemonicBody converts mnemonic entries to raw instructions. Offsets must
// strictly increase. Operands are
// converted by the opcode's operand kind; tokens that do not resolve are
// kept as uint32 so the decoder reports them.
func mnemonicBody(entries []ILDump, toks *tokenTable) ([]il.Raw, error) {
	raw := make([]il.Raw, 0, len(entries))
	for i, e := range entries {
		if i > 0 && e.Offset <= entries[i-1].Offset {
			return nil, fmt.Errorf("IL_%04x: offset not after IL_%04x", e.Offset, entries[i-1].Offset)
		}
		if e.Offset < 0 {
			return nil, fmt.Errorf("negative offset %d", e.Offset)
		}
		c, ok := il.Lookup(e.Op)
		if !ok {
			return nil, fmt.Errorf("IL_%04x: unknown opcode %q", e.Offset, e.Op)
		}
		info, _ := c.Info()
		operand, err := convertOperand(info.Operand, e.Operand, toks)
		if err != nil {
			return nil, fmt.Errorf("IL_%04x: %s: %w", e.Offset, e.Op, err)
		}
		raw = append(raw, il.Raw{Offset: e.Offset, Code: c, Operand: operand})
	}
	return raw, nil
}

func convertOperand(k il.OperandKind, v any, toks *tokenTable) (any, error) {
	switch k {
	case il.InlineNone:
		if v != nil {
			return nil, fmt.Errorf("unexpected operand %v", v)
		}
		return nil, nil
	case il.ShortInlineVar, il.InlineVar:
		n, err := integer(v)
		return int(n), err
	case il.ShortInlineI, il.InlineI:
		n, err := integer(v)
		return int32(n), err
	case il.InlineI8:
		return integer(v)
	case il.ShortInlineR:
		f, err := float(v)
		return float32(f), err
	case il.InlineR:
		return float(v)
	case il.ShortInlineBrTarget, il.InlineBrTarget:
		return label(v)
	case il.InlineSwitch:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("switch operand %T is not a list", v)
		}
		targets := make([]int, len(list))
		for i, t := range list {
			n, err := label(t)
			if err != nil {
				return nil, err
			}
			targets[i] = n
		}
		return targets, nil
	case il.InlineString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("string operand %T", v)
		}
		if tok, ok := parseToken(s); ok {
			if lit, ok := toks.String(tok); ok {
				return lit, nil
			}
		}
		return s, nil
	}

	// Token operands.
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("token operand %T", v)
	}
	tok, ok := parseToken(s)
	if !ok {
		// Type operands may be written as plain type names.
		if k == il.InlineType {
			return s, nil
		}
		return nil, fmt.Errorf("bad token %q", s)
	}
	switch k {
	case il.InlineMethod:
		if m, ok := toks.Method(tok); ok {
			return m, nil
		}
	case il.InlineField:
		if f, ok := toks.Field(tok); ok {
			return f, nil
		}
	case il.InlineType, il.InlineTok:
		if t, ok := toks.Type(tok); ok {
			return t, nil
		}
	}
	return tok, nil
}

func integer(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("operand %v (%T) is not an integer", v, v)
}

func float(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("operand %v (%T) is not a number", v, v)
}

// label accepts an offset or an "IL_xxxx" label.
func label(v any) (int, error) {
	if s, ok := v.(string); ok {
		hexPart, found := strings.CutPrefix(s, "IL_")
		if !found {
			return 0, fmt.Errorf("bad branch target %q", s)
		}
		n, err := strconv.ParseUint(hexPart, 16, 31)
		if err != nil {
			return 0, fmt.Errorf("bad branch target %q", s)
		}
		return int(n), nil
	}
	n, err := integer(v)
	return int(n), err
}

func parseToken(s string) (uint32, bool) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
