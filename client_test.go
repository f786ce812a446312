package cratedb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Stmt            string
	ContentEncoding string
	BodyLen         int
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = port
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client, srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func readCaptured(r *http.Request) capturedRequest {
	body, _ := io.ReadAll(r.Body)
	var decoded struct {
		Stmt string `json:"stmt"`
	}
	_ = json.Unmarshal(body, &decoded)
	return capturedRequest{
		Stmt:            decoded.Stmt,
		ContentEncoding: r.Header.Get("Content-Encoding"),
		BodyLen:         len(body),
	}
}

func TestExecuteSelectReturnsRowsAndInstrumentation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		readCaptured(r)
		writeJSON(w, 200, `{"cols":["1"],"col_types":[9],"rows":[[1]],"rowcount":1,"duration":0.5}`)
	})

	resp, err := client.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, resp.Cols)
	assert.Equal(t, [][]any{{int64(1)}}, resp.Rows)
	assert.GreaterOrEqual(t, resp.Durations.Request, 0.0)
	assert.Greater(t, resp.Sizes.Request, 0)
	assert.Greater(t, resp.Sizes.Response, 0)
}

func TestExecuteObjectRowModePreservesNulls(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"cols":["id","name"],"col_types":[9,4],"rows":[[1,null]],"rowcount":1,"duration":1}`)
	})

	resp, err := client.Execute(context.Background(), "SELECT id, name FROM t", nil, WithRowMode(RowModeObject))
	require.NoError(t, err)
	require.Len(t, resp.ObjectRows, 1)
	assert.Equal(t, int64(1), resp.ObjectRows[0]["id"])
	assert.Nil(t, resp.ObjectRows[0]["name"])
}

func TestExecuteServerErrorMapsToCrateDBError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, `{"error":{"message":"SQLParseException: bad syntax","code":4000},"error_trace":"..."}`)
	})

	_, err := client.Execute(context.Background(), "NOT SQL", nil)
	require.Error(t, err)
	var cdbErr *CrateDBError
	require.ErrorAs(t, err, &cdbErr)
	assert.Equal(t, 4000, cdbErr.Code)
	assert.Equal(t, 400, cdbErr.StatusCode)
	assert.Contains(t, cdbErr.Message, "bad syntax")
}

func TestExecuteManyDerivesBulkErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"cols":["id"],"col_types":[9],
			"results":[{"rowcount":1},{"rowcount":-2,"error":{"message":"duplicate key","code":4091}},{"rowcount":1}],
			"duration":2}`)
	})

	resp, err := client.ExecuteMany(context.Background(), "INSERT INTO t (id) VALUES (?)", [][]any{{1}, {1}, {2}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, []int{1}, resp.BulkErrors)
	assert.Equal(t, "duplicate key", resp.Results[1].Error.Message)
}

func TestInsertEmitsUpsertStatement(t *testing.T) {
	var captured capturedRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = readCaptured(r)
		writeJSON(w, 200, `{"cols":[],"col_types":[],"rows":[],"rowcount":1,"duration":0}`)
	})

	row := NewRow()
	row.Set("id", 1)
	row.Set("name", "a")
	_, err := client.Insert(context.Background(), "t", row, []string{"id"})
	require.NoError(t, err)
	assert.Contains(t, captured.Stmt, `ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name"`)
}

func TestInsertRejectsEmptyRow(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be contacted for an invalid insert")
	})
	_, err := client.Insert(context.Background(), "t", NewRow(), nil)
	require.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestInsertManyUsesUnionOfKeysInFirstSeenOrder(t *testing.T) {
	var captured capturedRequest
	var bulkArgs [][]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded struct {
			Stmt     string  `json:"stmt"`
			BulkArgs [][]any `json:"bulk_args"`
		}
		_ = json.Unmarshal(body, &decoded)
		captured.Stmt = decoded.Stmt
		bulkArgs = decoded.BulkArgs
		writeJSON(w, 200, `{"cols":["id"],"col_types":[9],"results":[{"rowcount":1},{"rowcount":1}],"duration":0}`)
	})

	r1 := NewRow()
	r1.Set("id", float64(1))
	r1.Set("name", "x")
	r2 := NewRow()
	r2.Set("id", float64(2))
	r2.Set("age", float64(9))

	resp, err := client.InsertMany(context.Background(), "t", []*Row{r1, r2}, []string{"id"})
	require.NoError(t, err)
	assert.Contains(t, captured.Stmt, `"id", "name", "age"`)
	require.Len(t, bulkArgs, 2)
	assert.Equal(t, []any{float64(1), "x", nil}, bulkArgs[0])
	assert.Equal(t, []any{float64(2), nil, float64(9)}, bulkArgs[1])
	assert.GreaterOrEqual(t, resp.Durations.Preparation, 0.0)
}

func TestGetPrimaryKeysReturnsColumnNames(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"cols":["column_name"],"col_types":[4],"rows":[["id"],["tenant_id"]],"rowcount":2,"duration":0}`)
	})
	pks, err := client.GetPrimaryKeys(context.Background(), "myschema.t")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "tenant_id"}, pks)
}

func TestExecuteCompressesLargeRequestBody(t *testing.T) {
	var captured capturedRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = readCaptured(r)
		writeJSON(w, 200, `{"cols":[],"col_types":[],"rows":[],"rowcount":0,"duration":0}`)
	})

	bigArg := strings.Repeat("x", 4096)
	_, err := client.Execute(context.Background(), "SELECT ?", []any{bigArg})
	require.NoError(t, err)
	assert.Equal(t, "gzip", captured.ContentEncoding)
}

func TestExecuteSkipsCompressionForSmallBody(t *testing.T) {
	var captured capturedRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = readCaptured(r)
		writeJSON(w, 200, `{"cols":[],"col_types":[],"rows":[],"rowcount":0,"duration":0}`)
	})

	_, err := client.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.Empty(t, captured.ContentEncoding)
}

func TestExecutePropagatesContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"cols":[],"col_types":[],"rows":[],"rowcount":0,"duration":0}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Execute(ctx, "SELECT 1", nil)
	require.Error(t, err)
	var reqErr *RequestError
	assert.ErrorAs(t, err, &reqErr)
}
