package loader

import (
	"fmt"

	"cilscan/internal/il"
)

// tokenTable is the parsed token section of a dump. It serves as the
// il.TokenResolver of encoded bodies.
type tokenTable struct {
	strings map[uint32]string
	methods map[uint32]il.MethodRef
	fields  map[uint32]il.FieldRef
	types   map[uint32]string
}

func newTokenTable(t Tokens) (*tokenTable, error) {
	tt := &tokenTable{
		strings: make(map[uint32]string, len(t.Strings)),
		methods: make(map[uint32]il.MethodRef, len(t.Methods)),
		fields:  make(map[uint32]il.FieldRef, len(t.Fields)),
		types:   make(map[uint32]string, len(t.Types)),
	}
	if err := parseKeys(t.Strings, tt.strings); err != nil {
		return nil, err
	}
	if err := parseKeys(t.Methods, tt.methods); err != nil {
		return nil, err
	}
	if err := parseKeys(t.Fields, tt.fields); err != nil {
		return nil, err
	}
	if err := parseKeys(t.Types, tt.types); err != nil {
		return nil, err
	}
	return tt, nil
}

func parseKeys[V any](in map[string]V, out map[uint32]V) error {
	for k, v := range in {
		tok, ok := parseToken(k)
		if !ok {
			return fmt.Errorf("tokens: bad key %q", k)
		}
		out[tok] = v
	}
	return nil
}

func (t *tokenTable) String(token uint32) (string, bool) {
	s, ok := t.strings[token]
	return s, ok
}

func (t *tokenTable) Method(token uint32) (il.MethodRef, bool) {
	m, ok := t.methods[token]
	return m, ok
}

func (t *tokenTable) Field(token uint32) (il.FieldRef, bool) {
	f, ok := t.fields[token]
	return f, ok
}

func (t *tokenTable) Type(token uint32) (string, bool) {
	s, ok := t.types[token]
	return s, ok
}
