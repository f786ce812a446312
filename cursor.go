package cratedb

import (
	"context"
	"fmt"

	"github.com/proddata/go-cratedb/internal/transport"
)

type cursorState int

const (
	cursorNew cursorState = iota
	cursorOpen
	cursorClosed
)

// Cursor is a server-side iteration handle, scoped to its own
// transaction and pinned to a single physical connection so that every
// FETCH lands on the same backend session as the originating DECLARE
// (§3, §4.5, §9 "Cursor ownership of a connection").
//
// A Cursor is single-consumer: concurrent fetch calls on one Cursor are
// undefined, per §4.5.
type Cursor struct {
	client *Client
	sql    string
	name   string
	state  cursorState
	tr     *transport.Transport
}

// Open begins a transaction and declares the cursor on a dedicated,
// size-one connection pool. Calling Open twice returns a
// CursorStateError.
func (cur *Cursor) Open(ctx context.Context) error {
	if cur.state != cursorNew {
		return &CursorStateError{Message: "cursor is already open"}
	}
	cur.tr = transport.NewPinned(cur.client.cfg.transportConfig())

	if _, err := cur.exec(ctx, "BEGIN"); err != nil {
		return err
	}
	declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR WITH HOLD FOR %s", cur.name, cur.sql)
	if _, err := cur.exec(ctx, declare); err != nil {
		return err
	}
	cur.state = cursorOpen
	return nil
}

// FetchOne returns the next row, or nil if the cursor is exhausted.
func (cur *Cursor) FetchOne(ctx context.Context) (map[string]any, error) {
	rows, err := cur.fetch(ctx, "FETCH NEXT")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchMany returns up to n rows. If n < 1 it returns an empty slice
// without contacting the server (§4.5, §9 open question (a)).
func (cur *Cursor) FetchMany(ctx context.Context, n int) ([]map[string]any, error) {
	if n < 1 {
		return []map[string]any{}, nil
	}
	return cur.fetch(ctx, fmt.Sprintf("FETCH %d", n))
}

// FetchAll returns every remaining row.
func (cur *Cursor) FetchAll(ctx context.Context) ([]map[string]any, error) {
	return cur.fetch(ctx, "FETCH ALL")
}

// Iterate returns a lazy channel of rows, drawn batch at a time via
// FetchMany, terminating on the first empty batch (§4.5, §9 "Generators
// / async iteration"). The returned error channel receives at most one
// value before closing.
func (cur *Cursor) Iterate(ctx context.Context, batch int) (<-chan map[string]any, <-chan error) {
	rows := make(chan map[string]any)
	errc := make(chan error, 1)

	go func() {
		defer close(rows)
		defer close(errc)
		for {
			batchRows, err := cur.FetchMany(ctx, batch)
			if err != nil {
				errc <- err
				return
			}
			if len(batchRows) == 0 {
				return
			}
			for _, r := range batchRows {
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

// Close closes the server-side cursor, commits the owning transaction,
// and releases the pinned connection. Any fetch on a non-open cursor
// fails with a CursorStateError.
func (cur *Cursor) Close(ctx context.Context) error {
	if cur.state != cursorOpen {
		return &CursorStateError{Message: "cursor is not open"}
	}
	_, closeErr := cur.exec(ctx, fmt.Sprintf("CLOSE %s", cur.name))
	_, commitErr := cur.exec(ctx, "COMMIT")
	cur.tr.Close()
	cur.state = cursorClosed
	if closeErr != nil {
		return closeErr
	}
	return commitErr
}

func (cur *Cursor) fetch(ctx context.Context, fetchSQL string) ([]map[string]any, error) {
	if cur.state != cursorOpen {
		return nil, &CursorStateError{Message: "cursor is not open"}
	}
	resp, err := cur.exec(ctx, fetchSQL)
	if err != nil {
		return nil, err
	}
	return resp.ObjectRows, nil
}

func (cur *Cursor) exec(ctx context.Context, sql string) (*Response, error) {
	result, err := cur.tr.Execute(ctx, sql, nil, nil)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	return decodeResponse(result, RowModeObject, cur.client.cfg.Deserialization)
}
