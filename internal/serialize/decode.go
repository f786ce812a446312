package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/proddata/go-cratedb/internal/coltype"
)

// maxSafeInt is JavaScript's Number.MAX_SAFE_INTEGER. CrateDB's own
// clients draw the bigint/float line here; a literal with no decimal
// point whose magnitude exceeds this is decoded as a *big.Int rather than
// an int64, even when Go's int64 could represent it losslessly — this
// keeps the contract identical for callers porting fixtures from other
// CrateDB client libraries.
const maxSafeInt = 1<<53 - 1

// LongPolicy selects how BIGINT columns are decoded.
type LongPolicy int

const (
	// LongNumber decodes BIGINT cells as plain Go numbers (int64/*big.Int
	// depending on magnitude, per the reviver below). This is the default.
	LongNumber LongPolicy = iota
	// LongBigInt always decodes BIGINT cells as serialize.BigInt.
	LongBigInt
)

// DateTimePolicy selects how DATE/TIMESTAMP columns are decoded.
type DateTimePolicy int

const (
	// DateTimeDate wraps the epoch-millisecond cell as a Date/Timestamp
	// value. This is the default for both date and timestamp.
	DateTimeDate DateTimePolicy = iota
	// DateTimeNumber leaves the cell as the raw epoch-millisecond number.
	DateTimeNumber
)

// Config controls per-column-type decoding of a response body, mirroring
// the wire's col_types metadata.
type Config struct {
	Long      LongPolicy
	Date      DateTimePolicy
	Timestamp DateTimePolicy
}

// DefaultConfig is {long: number, timestamp: date, date: date}, the
// default resolved by Client configuration (§3).
func DefaultConfig() Config {
	return Config{Long: LongNumber, Date: DateTimeDate, Timestamp: DateTimeDate}
}

// DecodeJSON parses data with a reviver that captures each number's raw
// lexical form before any float conversion, so that integers beyond the
// 53-bit safe range decode as *big.Int rather than a lossy float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("serialize: malformed JSON: %w", err)
	}
	return ReviveNumbers(v), nil
}

// ReviveNumbers walks a generically-decoded JSON value (as produced by a
// json.Decoder with UseNumber enabled) and replaces every json.Number leaf
// with an int64, *big.Int, or float64 chosen from its lexical form.
func ReviveNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = ReviveNumbers(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = ReviveNumbers(vv)
		}
		return t
	case json.Number:
		return numberValue(t)
	default:
		return v
	}
}

func numberValue(n json.Number) any {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		bi, ok := new(big.Int).SetString(s, 10)
		if ok {
			if bi.IsInt64() && bi.CmpAbs(big.NewInt(maxSafeInt)) <= 0 {
				return bi.Int64()
			}
			return bi
		}
	}
	f, err := n.Float64()
	if err != nil {
		// Fall back to the raw string; this should not happen for
		// well-formed JSON numbers.
		return s
	}
	return f
}

// ApplyColumnTypes mutates rows in place, converting each cell according
// to its column's base type tag (colTypes[i], possibly nested for arrays)
// and cfg. Recurses into array cells.
func ApplyColumnTypes(rows [][]any, colTypes []any, cfg Config) {
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(colTypes) {
				continue
			}
			base := coltype.Base(colTypes[i])
			row[i] = convertCell(cell, base, cfg)
		}
	}
}

func convertCell(v any, base coltype.T, cfg Config) any {
	if v == nil {
		return nil
	}
	if arr, ok := v.([]any); ok {
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = convertCell(e, base, cfg)
		}
		return out
	}
	switch base {
	case coltype.BigInt:
		if cfg.Long == LongBigInt {
			return toBigInt(v)
		}
	case coltype.Date:
		if cfg.Date == DateTimeDate {
			return toDate(v)
		}
	case coltype.TimestampWithTZ, coltype.TimestampWithoutTZ:
		if cfg.Timestamp == DateTimeDate {
			return toTimestamp(v)
		}
	}
	return v
}

func toBigInt(v any) BigInt {
	switch n := v.(type) {
	case int64:
		return NewBigInt(big.NewInt(n))
	case *big.Int:
		return NewBigInt(n)
	case float64:
		bi, _ := big.NewFloat(n).Int(nil)
		return NewBigInt(bi)
	default:
		return BigInt{}
	}
}

func toEpochMillis(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case *big.Int:
		return n.Int64()
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toDate(v any) Date {
	return NewDateFromMillis(toEpochMillis(v))
}

func toTimestamp(v any) Timestamp {
	return NewTimestampFromMillis(toEpochMillis(v))
}
