package cratedb

import "github.com/proddata/go-cratedb/internal/serialize"

// Row is an insertion-ordered key/value object, the input shape for
// Insert and InsertMany. It is a type alias for internal/serialize's
// OrderedMap so that Insert's column order is deterministic even though
// a plain Go map would randomize it.
type Row = serialize.OrderedMap

// NewRow returns an empty Row.
func NewRow() *Row {
	return serialize.NewOrderedMap()
}
