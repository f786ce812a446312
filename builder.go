package cratedb

import "github.com/proddata/go-cratedb/internal/stmt"

// Column, ColumnMode, TableOptions, and KV are the public names for the
// StatementGenerator's input types (§4.2). They are Go type aliases for
// the internal/stmt types, so callers never need to import an internal
// package to build a CreateTable or Optimize call.
type (
	Column       = stmt.Column
	ColumnMode   = stmt.ColumnMode
	TableOptions = stmt.TableOptions
	KV           = stmt.KV
)

const (
	ModeStrict  = stmt.ModeStrict
	ModeDynamic = stmt.ModeDynamic
	ModeIgnored = stmt.ModeIgnored
)
