// Package serialize implements the encode/decode contract of the wire
// protocol: preserving 64-bit integer precision across the JSON hop,
// wrapping DATE/TIMESTAMP columns using server-supplied column-type
// metadata, and emitting ordered maps and set-like collections without
// the lossy defaults of encoding/json.
package serialize

import (
	"fmt"
	"math/big"
	"time"
)

// BigInt is an arbitrary-precision integer that round-trips through JSON
// as an unquoted numeric literal, unlike encoding/json's float64 default
// which silently loses precision above 2^53.
type BigInt struct {
	*big.Int
}

// NewBigInt wraps i.
func NewBigInt(i *big.Int) BigInt {
	return BigInt{Int: i}
}

// BigIntFromString parses s (base 10) into a BigInt.
func BigIntFromString(s string) (BigInt, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, fmt.Errorf("serialize: invalid integer literal %q", s)
	}
	return BigInt{Int: i}, nil
}

// MarshalJSON emits the integer as a bare numeric literal, e.g. 9223372036854775807123,
// preserving every digit regardless of magnitude.
func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte("null"), nil
	}
	return []byte(b.Int.String()), nil
}

// UnmarshalJSON accepts a bare numeric literal (quoted or not) and parses
// it into the wrapped *big.Int.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("serialize: invalid integer literal %q", s)
	}
	b.Int = i
	return nil
}

// Date wraps an epoch-millisecond column value decoded from a DATE column.
type Date time.Time

// NewDateFromMillis builds a Date from epoch milliseconds.
func NewDateFromMillis(ms int64) Date {
	return Date(time.UnixMilli(ms).UTC())
}

// Millis returns the epoch-millisecond representation used on the wire.
func (d Date) Millis() int64 {
	return time.Time(d).UnixMilli()
}

// MarshalJSON emits the epoch-millisecond integer form.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", d.Millis())), nil
}

// UnmarshalJSON accepts the epoch-millisecond integer form.
func (d *Date) UnmarshalJSON(data []byte) error {
	var ms int64
	if _, err := fmt.Sscanf(string(data), "%d", &ms); err != nil {
		return fmt.Errorf("serialize: invalid date literal %q: %w", data, err)
	}
	*d = NewDateFromMillis(ms)
	return nil
}

func (d Date) String() string {
	return time.Time(d).Format("2006-01-02")
}

// Timestamp wraps an epoch-millisecond column value decoded from a
// TIMESTAMP WITH TIME ZONE or TIMESTAMP WITHOUT TIME ZONE column.
type Timestamp time.Time

// NewTimestampFromMillis builds a Timestamp from epoch milliseconds.
func NewTimestampFromMillis(ms int64) Timestamp {
	return Timestamp(time.UnixMilli(ms).UTC())
}

// Millis returns the epoch-millisecond representation used on the wire.
func (t Timestamp) Millis() int64 {
	return time.Time(t).UnixMilli()
}

// MarshalJSON emits the epoch-millisecond integer form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", t.Millis())), nil
}

// UnmarshalJSON accepts the epoch-millisecond integer form.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var ms int64
	if _, err := fmt.Sscanf(string(data), "%d", &ms); err != nil {
		return fmt.Errorf("serialize: invalid timestamp literal %q: %w", data, err)
	}
	*t = NewTimestampFromMillis(ms)
	return nil
}

func (t Timestamp) String() string {
	return time.Time(t).Format(time.RFC3339)
}
