// Package metadata models the types and methods of a loaded CIL module.
package metadata

import (
	"strings"

	"cilscan/internal/il"
)

// Module is one analysed assembly module.
type Module struct {
	Name  string
	Types []*Type

	byName map[string]*Type
}

// Type is a type definition. External types referenced by the module may be
// present with only FullName and BaseType set.
type Type struct {
	FullName          string
	BaseType          string
	Interfaces        []string
	Public            bool
	Sealed            bool
	Abstract          bool
	ValueType         bool
	Interface         bool
	CompilerGenerated bool
	External          bool

	Fields     []*Field
	Properties []Property
	Methods    []*Method

	Module *Module
}

// Field is a field definition.
type Field struct {
	Name      string
	FieldType string
	Public    bool
	Family    bool // protected
	Static    bool
	InitOnly  bool
}

// Property is a property definition; only its name and type are modelled.
type Property struct {
	Name         string
	PropertyType string
}

// Param is a method parameter.
type Param struct {
	Name string
	Type string
}

// PInvoke describes the native import of a P/Invoke method.
type PInvoke struct {
	Module string // library name as written in DllImport
	Entry  string
}

// Method is a method definition.
type Method struct {
	Name          string
	ReturnType    string
	Params        []Param
	GenericParams []string
	Public        bool
	Static        bool
	Virtual       bool
	NewSlot       bool
	Abstract      bool
	PInvoke       *PInvoke
	Body          *MethodBody

	Type *Type
}

// HandlerKind is the kind of an exception-handling clause.
type HandlerKind uint8

const (
	HandlerCatch HandlerKind = iota
	HandlerFilter
	HandlerFinally
	HandlerFault
)

// Handler is one exception-handling clause; offsets are byte offsets.
type Handler struct {
	Kind         HandlerKind
	TryStart     int
	TryEnd       int
	HandlerStart int
	HandlerEnd   int
	FilterStart  int
	CatchType    string
}

// MethodBody is the CIL of a method: either already split into raw
// instructions or as encoded bytes with a resolver for their tokens.
type MethodBody struct {
	Code     []byte
	Raw      []il.Raw
	Resolver il.TokenResolver
	Handlers []Handler
	Locals   []string
}

// RawInstructions returns the raw instruction stream, reading Code when
// Raw was not supplied.
func (b *MethodBody) RawInstructions() ([]il.Raw, error) {
	if b.Raw != nil || len(b.Code) == 0 {
		return b.Raw, nil
	}
	return il.Read(b.Code, b.Resolver)
}

// Entries returns the offsets at which control enters the body from
// outside normal flow: try starts, handler starts and filter starts.
func (b *MethodBody) Entries() []int {
	var out []int
	for _, h := range b.Handlers {
		out = append(out, h.TryStart, h.HandlerStart)
		if h.Kind == HandlerFilter {
			out = append(out, h.FilterStart)
		}
	}
	return out
}

// Index builds the name lookup table and sets the Module and Type back
// pointers. Call it after constructing or mutating the module.
func (m *Module) Index() {
	m.byName = make(map[string]*Type, len(m.Types))
	for _, t := range m.Types {
		t.Module = m
		m.byName[t.FullName] = t
		for _, meth := range t.Methods {
			meth.Type = t
		}
	}
}

// Lookup returns the type with the given full name. A nil module holds no
// types.
func (m *Module) Lookup(fullName string) (*Type, bool) {
	if m == nil {
		return nil, false
	}
	if m.byName == nil {
		m.Index()
	}
	t, ok := m.byName[fullName]
	return t, ok
}

// IsSubtypeOf reports whether t derives from base, directly or through
// base types defined in the module. A type is not its own subtype.
func (m *Module) IsSubtypeOf(t *Type, base string) bool {
	seen := map[string]bool{t.FullName: true}
	for name := t.BaseType; name != "" && !seen[name]; {
		if name == base {
			return true
		}
		seen[name] = true
		next, ok := m.Lookup(name)
		if !ok {
			return false
		}
		name = next.BaseType
	}
	return false
}

// Implements reports whether t or one of its base types declares iface,
// including interfaces inherited by declared interfaces.
func (m *Module) Implements(t *Type, iface string) bool {
	seen := map[string]bool{t.FullName: true}
	var visit func(name string) bool
	visit = func(name string) bool {
		if name == "" || seen[name] {
			return false
		}
		seen[name] = true
		if name == iface {
			return true
		}
		typ, ok := m.Lookup(name)
		if !ok {
			return false
		}
		for _, i := range typ.Interfaces {
			if visit(i) {
				return true
			}
		}
		return visit(typ.BaseType)
	}
	for _, i := range t.Interfaces {
		if visit(i) {
			return true
		}
	}
	return visit(t.BaseType)
}

// Name is the simple name of the type, without namespace or enclosing type.
func (t *Type) Name() string {
	name := t.FullName
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Namespace is the namespace part of the full name.
func (t *Type) Namespace() string {
	name := t.FullName
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// IsCompilerGenerated reports closures, iterators and other synthesized
// types.
func (t *Type) IsCompilerGenerated() bool {
	return t.CompilerGenerated || strings.ContainsAny(t.Name(), "<>")
}

// Property returns the properties with the given name.
func (t *Type) Property(name string) []Property {
	var out []Property
	for _, p := range t.Properties {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// IsArray reports whether the field holds an array.
func (f *Field) IsArray() bool {
	return strings.HasSuffix(f.FieldType, "]")
}

// Ref returns the call-site form of the method.
func (m *Method) Ref() il.MethodRef {
	ref := il.MethodRef{
		Name:        m.Name,
		ReturnType:  m.ReturnType,
		GenericArgs: m.GenericParams,
		HasThis:     !m.Static,
	}
	if m.Type != nil {
		ref.DeclaringType = m.Type.FullName
	}
	for _, p := range m.Params {
		ref.Params = append(ref.Params, p.Type)
	}
	return ref
}

// FullName renders the method like a call target:
// System.Boolean Sample::op_Equality(Sample,Sample).
func (m *Method) FullName() string {
	return m.Ref().String()
}

// IsConstructor reports instance and static constructors.
func (m *Method) IsConstructor() bool {
	return m.Name == ".ctor" || m.Name == ".cctor"
}

// IsOverride reports a virtual method that reuses its base slot.
func (m *Method) IsOverride() bool {
	return m.Virtual && !m.NewSlot
}

// IsPInvoke reports a method implemented in native code via DllImport.
func (m *Method) IsPInvoke() bool {
	return m.PInvoke != nil
}

// Matches reports whether the method has the given return type, name and
// parameter types.
func (m *Method) Matches(ret, name string, params ...string) bool {
	if m.Name != name || m.Returns() != ret || len(m.Params) != len(params) {
		return false
	}
	for i, p := range params {
		if m.Params[i].Type != p {
			return false
		}
	}
	return true
}

// Returns is the return type with void spelled out.
func (m *Method) Returns() string {
	if m.ReturnType == "" {
		return "System.Void"
	}
	return m.ReturnType
}
