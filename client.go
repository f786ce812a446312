package cratedb

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/proddata/go-cratedb/internal/serialize"
	"github.com/proddata/go-cratedb/internal/stmt"
	"github.com/proddata/go-cratedb/internal/transport"
)

// Client is the public façade: it resolves configuration once, then
// serializes, sends, and decodes statements over a shared pooled
// transport (§2, §4.4).
type Client struct {
	cfg       Config
	transport *transport.Transport
	gen       *stmt.Generator
	cursorSeq atomic.Int64
}

// NewClient resolves cfg (see Config, DefaultConfig) and builds a Client
// backed by a shared, pooled HTTP(S) transport.
func NewClient(cfg Config) (*Client, error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:       resolved,
		transport: transport.New(resolved.transportConfig()),
		gen:       stmt.NewGenerator(),
	}, nil
}

func (c Config) transportConfig() transport.Config {
	return transport.Config{
		BaseURL:              c.baseURL(),
		User:                 c.User,
		Password:             c.Password,
		JWT:                  c.JWT,
		DefaultSchema:        c.DefaultSchema,
		KeepAlive:            c.KeepAlive,
		MaxConnections:       c.MaxConnections,
		EnableCompression:    c.EnableCompression,
		CompressionThreshold: c.CompressionThreshold,
		Logger:               c.Logger,
	}
}

// execOptions carries per-call overlays that never mutate the client's
// resolved configuration (§3 invariant).
type execOptions struct {
	rowMode RowMode
}

// ExecOption overlays a per-call setting onto Execute/ExecuteMany.
type ExecOption func(*execOptions)

// WithRowMode overrides the client's default row mode for one Execute
// call. ExecuteMany has no such option: bulk responses are always array
// mode (§4.4).
func WithRowMode(mode RowMode) ExecOption {
	return func(o *execOptions) { o.rowMode = mode }
}

func resolveExecOptions(cfg Config, opts []ExecOption) execOptions {
	o := execOptions{rowMode: cfg.RowMode}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Execute sends one statement, optionally parameterized, and returns the
// enriched response (§4.4).
func (c *Client) Execute(ctx context.Context, sql string, args []any, opts ...ExecOption) (*Response, error) {
	o := resolveExecOptions(c.cfg, opts)
	result, err := c.transport.Execute(ctx, sql, args, nil)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	return decodeResponse(result, o.rowMode, c.cfg.Deserialization)
}

// ExecuteMany sends a bulk statement and returns the bulk response,
// always in array row mode, with BulkErrors derived from the server's
// per-row failure sentinel (§4.4).
func (c *Client) ExecuteMany(ctx context.Context, sql string, bulkArgs [][]any) (*BulkResponse, error) {
	result, err := c.transport.Execute(ctx, sql, nil, bulkArgs)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	return decodeBulkResponse(result)
}

// Insert builds and executes an INSERT for one row. When primaryKeys is
// non-empty the statement upserts via ON CONFLICT DO UPDATE; otherwise
// it is ON CONFLICT DO NOTHING (§4.2, §8).
func (c *Client) Insert(ctx context.Context, table string, row *Row, primaryKeys []string) (*Response, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	if row == nil || row.Len() == 0 {
		return nil, &ValidationError{Message: "insert requires a non-empty row"}
	}
	keys := row.Keys()
	values := make([]any, len(keys))
	for i, k := range keys {
		v, _ := row.Get(k)
		values[i] = v
	}
	sql, err := c.gen.Insert(table, keys, primaryKeys)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return c.Execute(ctx, sql, values, WithRowMode(RowModeArray))
}

// InsertMany builds and executes a bulk INSERT across heterogeneous
// rows. The column list is the union of keys across all rows in
// first-seen order; each row's positional args are aligned to that
// union, with nil filling absent keys (§4.4, §8).
func (c *Client) InsertMany(ctx context.Context, table string, rows []*Row, primaryKeys []string) (*BulkResponse, error) {
	start := time.Now()
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &ValidationError{Message: "insertMany requires at least one row"}
	}

	var unionKeys []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		if row == nil {
			return nil, &ValidationError{Message: "insertMany rows must be non-nil"}
		}
		for _, k := range row.Keys() {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				unionKeys = append(unionKeys, k)
			}
		}
	}

	bulkArgs := make([][]any, len(rows))
	for i, row := range rows {
		values := make([]any, len(unionKeys))
		for j, k := range unionKeys {
			v, ok := row.Get(k)
			if ok {
				values[j] = v
			} else {
				values[j] = nil
			}
		}
		bulkArgs[i] = values
	}

	sql, err := c.gen.Insert(table, unionKeys, primaryKeys)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	resp, err := c.ExecuteMany(ctx, sql, bulkArgs)
	if err != nil {
		return nil, err
	}
	totalMs := float64(time.Since(start).Microseconds()) / 1000.0
	prep := totalMs - resp.Durations.Request - resp.Durations.CrateDB
	if prep > 0 {
		resp.Durations.Preparation = prep
	}
	return resp, nil
}

// Update builds and executes an UPDATE (§4.2). where is interpolated
// verbatim; see §9 design note (b) on the resulting injection risk.
func (c *Client) Update(ctx context.Context, table string, values map[string]any, where string) (*Response, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	row := NewRow()
	for _, k := range sortedKeysForDeterminism(values) {
		row.Set(k, values[k])
	}
	cols := row.Keys()
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i], _ = row.Get(c)
	}
	sql, err := c.gen.Update(table, cols, where)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return c.Execute(ctx, sql, args, WithRowMode(RowModeArray))
}

// Delete builds and executes a DELETE (§4.2). where is interpolated
// verbatim, same caveat as Update.
func (c *Client) Delete(ctx context.Context, table string, where string) (*Response, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	return c.Execute(ctx, c.gen.Delete(table, where), nil, WithRowMode(RowModeArray))
}

// Drop builds and executes DROP TABLE IF EXISTS.
func (c *Client) Drop(ctx context.Context, table string) (*Response, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	return c.Execute(ctx, c.gen.DropTable(table), nil, WithRowMode(RowModeArray))
}

// Refresh builds and executes REFRESH TABLE.
func (c *Client) Refresh(ctx context.Context, table string) (*Response, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	return c.Execute(ctx, c.gen.Refresh(table), nil, WithRowMode(RowModeArray))
}

// CreateTable builds and executes CREATE TABLE (§4.2).
func (c *Client) CreateTable(ctx context.Context, table string, columns []Column, opts *TableOptions) (*Response, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	sql, err := c.gen.CreateTable(table, columns, opts)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return c.Execute(ctx, sql, nil, WithRowMode(RowModeArray))
}

// Optimize builds and executes OPTIMIZE TABLE.
func (c *Client) Optimize(ctx context.Context, table string, options []KV, partitions []KV) (*Response, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	return c.Execute(ctx, c.gen.Optimize(table, options, partitions), nil, WithRowMode(RowModeArray))
}

// GetPrimaryKeys splits "schema.table" (schema defaults to "doc") and
// returns the table's primary-key column names in ordinal position
// order (§4.2, §4.4).
func (c *Client) GetPrimaryKeys(ctx context.Context, table string) ([]string, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	schema, tbl := splitSchemaTable(table)
	sql, args := c.gen.PrimaryKeysQuery(schema, tbl)
	resp, err := c.Execute(ctx, sql, args, WithRowMode(RowModeArray))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// CreateCursor constructs an unopened Cursor over sql. Call Open before
// fetching (§4.5).
func (c *Client) CreateCursor(sql string) *Cursor {
	n := c.cursorSeq.Add(1)
	return &Cursor{
		client: c,
		sql:    sql,
		name:   fmt.Sprintf("cursor_%d", n),
		state:  cursorNew,
	}
}

// StreamQuery opens a cursor over sql and returns a channel of rows
// (keyed by column name) delivered batchSize at a time, plus an error
// channel. The cursor is closed automatically on normal completion,
// early consumer abandonment (ctx cancellation), or error (§4.4, §9).
func (c *Client) StreamQuery(ctx context.Context, sql string, batchSize int) (<-chan map[string]any, <-chan error) {
	if batchSize < 1 {
		batchSize = 100
	}
	rows := make(chan map[string]any)
	errc := make(chan error, 1)

	go func() {
		defer close(rows)
		defer close(errc)

		cur := c.CreateCursor(sql)
		if err := cur.Open(ctx); err != nil {
			errc <- err
			return
		}
		defer cur.Close(context.WithoutCancel(ctx))

		for {
			batch, err := cur.FetchMany(ctx, batchSize)
			if err != nil {
				errc <- err
				return
			}
			if len(batch) == 0 {
				return
			}
			for _, r := range batch {
				select {
				case rows <- r:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
		}
	}()

	return rows, errc
}

func validateTableName(table string) error {
	if table == "" {
		return &ValidationError{Message: "table must be a non-empty string"}
	}
	return nil
}

func splitSchemaTable(table string) (schema, name string) {
	for i := len(table) - 1; i >= 0; i-- {
		if table[i] == '.' {
			return table[:i], table[i+1:]
		}
	}
	return "doc", table
}

// sortedKeysForDeterminism orders a plain map's keys lexically. Update's
// input is a caller-supplied map[string]any (not a Row) because, unlike
// Insert/InsertMany, the column order of an UPDATE's SET list has no
// observable effect on semantics — only a stable order is needed so
// repeated calls with the same input produce identical SQL.
func sortedKeysForDeterminism(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func wrapTransportErr(err error) error {
	var te *transport.Error
	if errors.As(err, &te) {
		if te.Kind == transport.KindServer {
			return &CrateDBError{Message: te.Message, Code: te.Code, Trace: te.Trace, StatusCode: te.StatusCode}
		}
		return &RequestError{Message: te.Message, Cause: te.Cause}
	}
	return err
}

func decodeResponse(result *transport.Result, rowMode RowMode, deser DeserializationConfig) (*Response, error) {
	decoded, err := serialize.DecodeJSON(result.Body)
	if err != nil {
		return nil, &DeserializationError{Message: "failed to parse response body", Cause: err}
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, &DeserializationError{Message: "response body is not a JSON object"}
	}

	cols := toStringSlice(m["cols"])
	colTypes := toAnySlice(m["col_types"])
	rows := toRowSlice(m["rows"])
	serialize.ApplyColumnTypes(rows, colTypes, deser.toInternal())

	resp := &Response{
		Cols:           cols,
		ColTypes:       colTypes,
		RowCount:       toInt64(m["rowcount"]),
		ServerDuration: toFloat64(m["duration"]),
		Durations:      Durations{CrateDB: result.Durations.CrateDB, Request: result.Durations.Request},
		Sizes: Sizes{
			Request:             result.Sizes.Request,
			Response:            result.Sizes.Response,
			RequestUncompressed: result.Sizes.RequestUncompressed,
		},
	}
	if rowMode == RowModeObject {
		resp.ObjectRows = reshapeRows(cols, rows)
	} else {
		resp.Rows = rows
	}
	return resp, nil
}

func decodeBulkResponse(result *transport.Result) (*BulkResponse, error) {
	decoded, err := serialize.DecodeJSON(result.Body)
	if err != nil {
		return nil, &DeserializationError{Message: "failed to parse response body", Cause: err}
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, &DeserializationError{Message: "response body is not a JSON object"}
	}

	rawResults := toAnySlice(m["results"])
	results := make([]BulkResult, len(rawResults))
	for i, rr := range rawResults {
		rm, _ := rr.(map[string]any)
		br := BulkResult{RowCount: int(toInt64(rm["rowcount"]))}
		if em, ok := rm["error"].(map[string]any); ok {
			br.Error = &struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			}{
				Message: stringOr(em["message"], ""),
				Code:    int(toInt64(em["code"])),
			}
		}
		results[i] = br
	}

	return &BulkResponse{
		Cols:           toStringSlice(m["cols"]),
		ColTypes:       toAnySlice(m["col_types"]),
		Results:        results,
		BulkErrors:     deriveBulkErrors(results),
		ServerDuration: toFloat64(m["duration"]),
		Durations:      Durations{CrateDB: result.Durations.CrateDB, Request: result.Durations.Request},
		Sizes: Sizes{
			Request:             result.Sizes.Request,
			Response:            result.Sizes.Response,
			RequestUncompressed: result.Sizes.RequestUncompressed,
		},
	}, nil
}

func toStringSlice(v any) []string {
	arr, _ := v.([]any)
	out := make([]string, len(arr))
	for i, e := range arr {
		out[i], _ = e.(string)
	}
	return out
}

func toAnySlice(v any) []any {
	arr, _ := v.([]any)
	return arr
}

func toRowSlice(v any) [][]any {
	arr, _ := v.([]any)
	out := make([][]any, len(arr))
	for i, e := range arr {
		row, _ := e.([]any)
		out[i] = row
	}
	return out
}

func toInt64(v any) int64 {
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

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	default:
		return 0
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}
