package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// QueryFilter selects named objects with a predicate over props, label,
// typeName and id. Bindings are visible to the predicate as params.
type QueryFilter struct {
	Query             string         `json:"query"`
	TypeNames         []string       `json:"type_names,omitempty"`
	Bindings          map[string]any `json:"bindings,omitempty"`
	Limit             int            `json:"limit,omitempty"`
	BatchSize         int            `json:"batch_size,omitempty"`
	ProvideProvenance bool           `json:"provide_provenance,omitempty"`
}

// SearchFilter is a full-text search. Target is "entities",
// "relationships" or "both" (the default).
type SearchFilter struct {
	Text       string   `json:"text"`
	TypeNames  []string `json:"type_names,omitempty"`
	Target     string   `json:"target,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	BatchSize  int      `json:"batch_size,omitempty"`
}

// CursorState is the lifecycle state of a RowCursor.
type CursorState uint8

const (
	// CursorOpen has no buffered rows and may fetch more.
	CursorOpen CursorState = iota
	// CursorBuffered holds a batch that Advance walks through.
	CursorBuffered
	// CursorExhausted has delivered every row.
	CursorExhausted
	// CursorPoisoned failed or was cancelled while waiting; it must be closed.
	CursorPoisoned
	// CursorDisposed was closed.
	CursorDisposed
)

var cursorStateNames = []string{"open", "buffered", "exhausted", "poisoned", "disposed"}

func (s CursorState) String() string {
	if int(s) < len(cursorStateNames) {
		return cursorStateNames[s]
	}
	return fmt.Sprintf("CursorState(%d)", s)
}

// batchSource delivers the rows of a remote session.
type batchSource interface {
	next(ctx context.Context) (rows []graphvalue.Row, done bool, err error)
	close(ctx context.Context) error
}

// RowCursor iterates over the rows of a query or search, one batch at a
// time:
//
//	defer cur.Close(ctx)
//	for {
//	    ok, err := cur.WaitForNextBatch(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    for cur.Advance() {
//	        row := cur.Current()
//	    }
//	}
//
// A RowCursor is not safe for concurrent use.
type RowCursor struct {
	src     batchSource
	release func()

	state   CursorState
	drained bool
	batch   []graphvalue.Row
	pos     int
	err     error
}

func newRowCursor(src batchSource, release func()) *RowCursor {
	return &RowCursor{src: src, release: release, pos: -1}
}

// State returns the lifecycle state.
func (c *RowCursor) State() CursorState { return c.state }

// Err returns the failure that poisoned the cursor, if any.
func (c *RowCursor) Err() error { return c.err }

// WaitForNextBatch blocks until rows are ready to be read with Advance
// (true) or the stream is exhausted (false). Cancellation or a remote fault
// poisons the cursor; later calls fail with kgerr.ErrInvalidState.
func (c *RowCursor) WaitForNextBatch(ctx context.Context) (bool, error) {
	switch c.state {
	case CursorPoisoned:
		return false, fmt.Errorf("%w: cursor is poisoned: %v", kgerr.ErrInvalidState, c.err)
	case CursorDisposed:
		return false, fmt.Errorf("%w: cursor is closed", kgerr.ErrInvalidState)
	case CursorExhausted:
		return false, nil
	case CursorBuffered:
		if c.pos+1 < len(c.batch) {
			return true, nil
		}
	}

	for {
		if c.drained {
			c.batch, c.pos = nil, -1
			c.state = CursorExhausted
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, c.poison(kgerr.FromContext(err))
		}
		rows, done, err := c.src.next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, kgerr.ErrCancelled) && !errors.Is(err, kgerr.ErrTimedOut) {
				err = kgerr.FromContext(ctxErr)
			}
			return false, c.poison(err)
		}
		c.drained = done
		if len(rows) > 0 {
			c.batch, c.pos = rows, -1
			c.state = CursorBuffered
			return true, nil
		}
	}
}

func (c *RowCursor) poison(err error) error {
	c.state = CursorPoisoned
	c.batch, c.pos = nil, -1
	c.err = err
	return err
}

// Advance moves to the next buffered row. It returns false when the batch
// is used up; call WaitForNextBatch to continue.
func (c *RowCursor) Advance() bool {
	if c.state != CursorBuffered || c.pos+1 >= len(c.batch) {
		return false
	}
	c.pos++
	return true
}

// Current returns the row under the cursor, or nil before the first
// Advance of a batch. The row is only valid until the next Advance; use
// Row.Clone to keep it.
func (c *RowCursor) Current() graphvalue.Row {
	if c.state != CursorBuffered || c.pos < 0 || c.pos >= len(c.batch) {
		return nil
	}
	return c.batch[c.pos]
}

// Close releases the remote session and the client session. It is
// idempotent; the client session is released even when the remote call fails.
func (c *RowCursor) Close(ctx context.Context) error {
	if c.state == CursorDisposed {
		return nil
	}
	c.state = CursorDisposed
	c.batch = nil
	defer c.release()
	return c.src.close(ctx)
}

// httpBatchSource reads a server cursor session.
type httpBatchSource struct {
	client *Client
	id     string
}

type batchResponse struct {
	Rows []graphvalue.Row `json:"rows"`
	Done bool             `json:"done"`
}

func (s *httpBatchSource) next(ctx context.Context) ([]graphvalue.Row, bool, error) {
	body, err := s.client.jsonRequest(ctx, http.MethodPost, "/cursors/"+url.PathEscape(s.id)+"/next", nil)
	if err != nil {
		return nil, false, err
	}
	var resp batchResponse
	if err := decode(body, &resp); err != nil {
		return nil, false, err
	}
	return resp.Rows, resp.Done, nil
}

func (s *httpBatchSource) close(ctx context.Context) error {
	_, err := s.client.jsonRequest(ctx, http.MethodDelete, "/cursors/"+url.PathEscape(s.id), nil)
	return err
}

type cursorResponse struct {
	CursorID string `json:"cursor_id"`
}

// SubmitQuery opens a cursor over the rows of a query. The cursor holds
// the session until it is closed.
func (c *Client) SubmitQuery(ctx context.Context, filter QueryFilter) (*RowCursor, error) {
	return c.submit(ctx, "/query", filter)
}

// SubmitSearch opens a cursor over the [object, score] rows of a full-text
// search. The cursor holds the session until it is closed.
func (c *Client) SubmitSearch(ctx context.Context, filter SearchFilter) (*RowCursor, error) {
	return c.submit(ctx, "/search", filter)
}

func (c *Client) submit(ctx context.Context, endpoint string, payload any) (*RowCursor, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	body, err := c.jsonRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		c.release()
		return nil, err
	}
	var resp cursorResponse
	if err := decode(body, &resp); err != nil {
		c.release()
		return nil, err
	}
	return newRowCursor(&httpBatchSource{client: c, id: resp.CursorID}, c.release), nil
}
