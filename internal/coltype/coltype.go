// Package coltype defines the closed set of numeric type tags CrateDB
// reports in a response's col_types field, plus the recursion needed to
// unwrap ARRAY-of-T nesting down to a scalar base type.
package coltype

import "math/big"

// T is a CrateDB column type tag as reported in col_types.
type T int

// Scalar and container type tags, matching the ids CrateDB's HTTP
// endpoint reports alongside every column.
const (
	Null                T = 0
	NotSupported        T = 1
	Char                T = 2
	Boolean             T = 3
	Text                T = 4
	IP                  T = 5
	Double              T = 6
	Real                T = 7
	SmallInt            T = 8
	Integer             T = 9
	BigInt              T = 10
	TimestampWithTZ     T = 11
	Object              T = 12
	GeoPoint            T = 13
	GeoShape            T = 14
	TimestampWithoutTZ  T = 15
	UncheckedObject     T = 16
	RegProc             T = 19
	Time                T = 20
	OIDVector           T = 21
	Numeric             T = 22
	RegClass            T = 23
	Date                T = 24
	Bit                 T = 25
	JSON                T = 26

	// Array wraps any other tag: the wire form is a nested JSON array,
	// e.g. [100, 10] for an array of BIGINT, or [100, [100, 10]] for an
	// array of arrays of BIGINT.
	Array T = 100
	// Set is a deprecated alias the server still emits for legacy columns.
	Set T = 101
)

// Base recursively unwraps ARRAY/SET nesting and returns the innermost
// scalar type tag. tag may be a plain T as produced by decoding col_types
// with encoding/json (float64) or with
// internal/serialize.ReviveNumbers (int64 for integers with no decimal
// point up to 2^53-1, *big.Int beyond), or a []any of the form
// [ARRAY, inner] / [SET, inner].
func Base(tag any) T {
	switch v := tag.(type) {
	case []any:
		if len(v) == 2 {
			return Base(v[1])
		}
		return NotSupported
	case float64:
		return T(v)
	case int:
		return T(v)
	case int64:
		return T(v)
	case *big.Int:
		return T(v.Int64())
	case T:
		return v
	default:
		return NotSupported
	}
}

// IsArray reports whether tag denotes an ARRAY or SET wrapper rather than a
// scalar type.
func IsArray(tag any) bool {
	v, ok := tag.([]any)
	if !ok || len(v) != 2 {
		return false
	}
	return tagValue(v[0]) == Array || tagValue(v[0]) == Set
}

func tagValue(v any) T {
	switch t := v.(type) {
	case float64:
		return T(t)
	case int:
		return T(t)
	case int64:
		return T(t)
	case *big.Int:
		return T(t.Int64())
	}
	return NotSupported
}
