package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("z", 1)
	m.Set("a", 2)
	m.Set("m", 3)
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	out, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(out))
}

func TestOrderedMapSetExistingKeyKeepsPosition(t *testing.T) {
	m := NewOrderedMap()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 99)
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestOrderedMapUnmarshalRoundTrips(t *testing.T) {
	var m OrderedMap
	err := m.UnmarshalJSON([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, m.Keys())
}

func TestSetMarshalsAsArray(t *testing.T) {
	s := NewSet()
	s.Add("x")
	s.Add("y")
	s.Add("x")
	assert.Equal(t, 2, s.Len())
	out, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, string(out))
}

func TestSetAddNonComparableValueDoesNotPanic(t *testing.T) {
	s := NewSet()
	assert.NotPanics(t, func() {
		s.Add([]any{"nested", "array"})
		s.Add([]any{"nested", "array"})
	})
	assert.Equal(t, 2, s.Len())
}
