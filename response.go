package cratedb

import "github.com/proddata/go-cratedb/internal/coltype"

func baseColumnType(tag any) coltype.T {
	return coltype.Base(tag)
}

// Durations is the client-added timing breakdown attached to every
// successful response (§3, §4.3).
type Durations struct {
	CrateDB     float64 `json:"cratedb"`
	Request     float64 `json:"request"`
	Preparation float64 `json:"preparation,omitempty"`
}

// Sizes is the client-added byte-size breakdown attached to every
// successful response (§3, §4.3).
type Sizes struct {
	Request             int `json:"request"`
	Response            int `json:"response"`
	RequestUncompressed int `json:"requestUncompressed,omitempty"`
}

// BulkResult is one sub-operation's outcome within a bulk response.
type BulkResult struct {
	RowCount int   `json:"rowcount"`
	Error    *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// bulkErrorSentinel is the server's per-row failure marker within a bulk
// response's results (§4.4, GLOSSARY "Bulk error").
const bulkErrorSentinel = -2

// Response is the enriched result of execute, insert, update, delete,
// drop, refresh, createTable, and optimize.
//
// Rows holds positional rows when RowMode is array; ObjectRows holds
// keyed maps (cols[i] -> cell) when RowMode is object. Exactly one of
// Rows or ObjectRows is populated depending on the row mode that
// produced the response.
type Response struct {
	Cols           []string         `json:"cols"`
	ColTypes       []any            `json:"col_types"`
	Rows           [][]any          `json:"rows,omitempty"`
	ObjectRows     []map[string]any `json:"-"`
	RowCount       int64            `json:"rowcount,omitempty"`
	ServerDuration float64          `json:"duration"`

	Durations Durations `json:"durations"`
	Sizes     Sizes     `json:"sizes"`
}

// ColumnType returns the base (innermost, array-unwrapped) type tag for
// the i'th column, or -1 if i is out of range.
func (r *Response) ColumnType(i int) int {
	if i < 0 || i >= len(r.ColTypes) {
		return -1
	}
	return int(baseColumnType(r.ColTypes[i]))
}

// BulkResponse is the enriched result of executeMany.
type BulkResponse struct {
	Cols     []string     `json:"cols"`
	ColTypes []any        `json:"col_types"`
	Results  []BulkResult `json:"results"`

	// BulkErrors lists the indices into Results whose RowCount equals the
	// server's failure sentinel (-2), per §4.4 and the GLOSSARY.
	BulkErrors []int `json:"-"`

	ServerDuration float64   `json:"duration"`
	Durations      Durations `json:"durations"`
	Sizes          Sizes     `json:"sizes"`
}

func deriveBulkErrors(results []BulkResult) []int {
	var errs []int
	for i, r := range results {
		if r.RowCount == bulkErrorSentinel {
			errs = append(errs, i)
		}
	}
	return errs
}

// reshapeRows converts positional rows (aligned with cols) into keyed
// maps for RowModeObject, preserving null cells (§4.4 "Row reshaping").
func reshapeRows(cols []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(cols))
		for j, col := range cols {
			if j < len(row) {
				m[col] = row[j]
			} else {
				m[col] = nil
			}
		}
		out[i] = m
	}
	return out
}
