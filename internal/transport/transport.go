// Package transport implements the HTTP(S) request/response exchange used
// by the client façade and by cursors: connection pooling, optional gzip
// compression of request bodies, basic/bearer authentication, and error
// classification (§4.3).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/proddata/go-cratedb/internal/serialize"
)

// ErrorKind classifies a Transport error so the caller can map it onto the
// public error taxonomy (§7) without this package importing the root
// package (which would create an import cycle).
type ErrorKind int

const (
	// KindServer means the server responded with a non-200 status and a
	// structured error body.
	KindServer ErrorKind = iota
	// KindRequest means the failure happened before or while talking to
	// the server: DNS, connect, reset, timeout, cancellation, gzip, or
	// request-payload serialization.
	KindRequest
)

// Error is returned by Transport.Execute on any failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	Code       int
	Trace      string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("transport: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Config configures a Transport instance. It is read-only once passed to
// New/NewPinned.
type Config struct {
	BaseURL              string
	User                 string
	Password             string
	JWT                  string
	DefaultSchema        string
	KeepAlive            bool
	MaxConnections       int
	EnableCompression    bool
	CompressionThreshold int
	Logger               zerolog.Logger
}

// Transport sends statements to CrateDB's /_sql endpoint over a pooled
// HTTP(S) connection.
type Transport struct {
	cfg    Config
	client *http.Client
}

// New builds a Transport with a shared pool capped at cfg.MaxConnections.
func New(cfg Config) *Transport {
	return &Transport{cfg: cfg, client: &http.Client{Transport: newHTTPTransport(cfg, cfg.MaxConnections)}}
}

// NewPinned builds a Transport with a pool of exactly one socket, used by
// Cursor to guarantee session affinity with the server (§3, §4.5, §9).
func NewPinned(cfg Config) *Transport {
	return &Transport{cfg: cfg, client: &http.Client{Transport: newHTTPTransport(cfg, 1)}}
}

func newHTTPTransport(cfg Config, maxConns int) *http.Transport {
	return &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   !cfg.KeepAlive,
	}
}

// Close releases the Transport's pooled connections. Used by Cursor on
// close to free the pinned socket.
func (t *Transport) Close() {
	t.client.CloseIdleConnections()
}

// Sizes records the byte sizes of one request/response exchange.
type Sizes struct {
	Request             int
	Response             int
	RequestUncompressed int
	compressed          bool
}

// Durations records the timing breakdown of one request/response exchange.
type Durations struct {
	CrateDB float64 // server-reported duration, ms
	Request float64 // transport time minus CrateDB, ms
}

// Result is the raw outcome of a successful Execute call. The caller
// (client façade / cursor) is responsible for decoding Body with
// internal/serialize.
type Result struct {
	Body      []byte
	Sizes     Sizes
	Durations Durations
}

type requestPayload struct {
	Stmt     string  `json:"stmt"`
	Args     []any   `json:"args,omitempty"`
	BulkArgs [][]any `json:"bulk_args,omitempty"`
}

type durationProbe struct {
	Duration float64 `json:"duration"`
}

type errorProbe struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
	ErrorTrace string `json:"error_trace"`
}

// Execute sends one statement. args and bulkArgs are mutually exclusive;
// pass both nil for a parameterless statement.
func (t *Transport) Execute(ctx context.Context, stmtSQL string, args []any, bulkArgs [][]any) (*Result, error) {
	payload, err := serialize.Encode(requestPayload{Stmt: stmtSQL, Args: args, BulkArgs: bulkArgs})
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: "failed to encode request payload", Cause: err}
	}

	body := payload
	uncompressedLen := len(payload)
	compressed := false
	if t.cfg.EnableCompression && uncompressedLen > t.cfg.CompressionThreshold {
		gz, err := gzipCompress(payload)
		if err != nil {
			return nil, &Error{Kind: KindRequest, Message: "failed to gzip request body", Cause: err}
		}
		body = gz
		compressed = true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/_sql?types", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: "failed to build request", Cause: err}
	}
	t.setHeaders(req, compressed)

	t.cfg.Logger.Debug().
		Int("bytes", len(body)).
		Bool("compressed", compressed).
		Str("stmt", truncate(stmtSQL, 200)).
		Msg("cratedb: sending request")

	start := time.Now()
	resp, err := t.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		var ep errorProbe
		_ = json.Unmarshal(respBody, &ep)
		return nil, &Error{
			Kind:       KindServer,
			Message:    ep.Error.Message,
			Code:       ep.Error.Code,
			Trace:      ep.ErrorTrace,
			StatusCode: resp.StatusCode,
		}
	}

	var dp durationProbe
	if err := json.Unmarshal(respBody, &dp); err != nil {
		return nil, &Error{Kind: KindRequest, Message: "failed to parse response duration", Cause: err}
	}

	elapsedMs := float64(elapsed.Microseconds()) / 1000.0
	sizes := Sizes{Response: len(respBody), Request: len(body), RequestUncompressed: uncompressedLen, compressed: compressed}
	durations := Durations{CrateDB: dp.Duration, Request: elapsedMs - dp.Duration}

	t.cfg.Logger.Debug().
		Int("status", resp.StatusCode).
		Int("response_bytes", len(respBody)).
		Float64("cratedb_ms", durations.CrateDB).
		Float64("request_ms", durations.Request).
		Msg("cratedb: received response")

	return &Result{Body: respBody, Sizes: sizes, Durations: durations}, nil
}

func (t *Transport) setHeaders(req *http.Request, compressed bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.cfg.KeepAlive {
		req.Header.Set("Connection", "keep-alive")
	}
	if compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}
	switch {
	case t.cfg.JWT != "":
		req.Header.Set("Authorization", "Bearer "+t.cfg.JWT)
	case t.cfg.User != "" && t.cfg.Password != "":
		req.SetBasicAuth(t.cfg.User, t.cfg.Password)
	}
	if t.cfg.DefaultSchema != "" {
		req.Header.Set("Default-Schema", t.cfg.DefaultSchema)
	}
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
