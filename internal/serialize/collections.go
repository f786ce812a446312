package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// OrderedMap is a key/value map that preserves insertion order across the
// JSON hop. Go's map[string]any randomizes iteration order, which breaks
// callers that compare the builder's output byte-for-byte or rely on
// first-seen column ordering (insertMany's union-of-keys contract, §4.4).
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// Set inserts or updates key. First-seen insertion order is preserved;
// updating an existing key does not move it.
func (m *OrderedMap) Set(key string, value any) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in first-seen insertion order.
func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// MarshalJSON emits a JSON object with keys in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the order keys appear in
// the source document.
func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("serialize: expected JSON object, got %v", tok)
	}
	m.keys = nil
	m.values = make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("serialize: expected string key, got %v", keyTok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		m.Set(key, ReviveNumbers(v))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Set is an insertion-ordered collection of unique values, emitted on the
// wire as a plain JSON array.
type Set struct {
	order []any
	seen  map[any]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[any]struct{})}
}

// Add inserts value if not already present. Only values of comparable
// types can be deduplicated; values of non-comparable types (slices,
// maps) are always appended. Pointer-backed values such as BigInt are
// compared by pointer, so equal integers in distinct BigInts both stay.
func (s *Set) Add(value any) {
	if value == nil || reflect.TypeOf(value).Comparable() {
		if _, ok := s.seen[value]; ok {
			return
		}
		s.order = append(s.order, value)
		s.seen[value] = struct{}{}
		return
	}
	s.order = append(s.order, value)
}

// Values returns the set members in insertion order.
func (s *Set) Values() []any {
	out := make([]any, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.order)
}

// MarshalJSON emits the set as a JSON array in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.order)
}

// UnmarshalJSON decodes a JSON array into the set, preserving order.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw []any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	s.order = nil
	s.seen = make(map[any]struct{})
	for _, v := range raw {
		s.Add(ReviveNumbers(v))
	}
	return nil
}
