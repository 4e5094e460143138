package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/metrics"
)

// session is a server-side cursor. The matching records are captured when
// the session is created; rows are built batch by batch as they are read.
type session struct {
	id        string
	kind      string
	batchSize int

	mu       sync.Mutex
	n        int
	row      func(i int) graphvalue.Row
	pos      int
	lastUsed time.Time
}

// next returns the next batch and whether the session is drained.
func (s *session) next(now time.Time) ([]graphvalue.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = now

	end := min(s.pos+s.batchSize, s.n)
	rows := make([]graphvalue.Row, 0, end-s.pos)
	for ; s.pos < end; s.pos++ {
		rows = append(rows, s.row(s.pos))
	}
	return rows, s.pos >= s.n
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (st *sessionStore) open(kind string, batchSize, n int, row func(int) graphvalue.Row) *session {
	s := &session{
		id:        uuid.New().String(),
		kind:      kind,
		batchSize: batchSize,
		n:         n,
		row:       row,
		lastUsed:  time.Now(),
	}
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

func (st *sessionStore) get(id string) (*session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown cursor session %q", kgerr.ErrInvalidState, id)
	}
	return s, nil
}

func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

func (st *sessionStore) evictIdle(cutoff time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

func (st *sessionStore) closeAll() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := len(st.sessions)
	clear(st.sessions)
	return n
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// NextBatch returns the next rows of a cursor session. done is true once
// the session has no more rows; the session stays open until CloseSession.
func (e *Engine) NextBatch(id string) (rows []graphvalue.Row, done bool, err error) {
	s, err := e.sessions.get(id)
	if err != nil {
		return nil, false, err
	}
	rows, done = s.next(time.Now())
	metrics.RowsStreamed.WithLabelValues(s.kind).Add(float64(len(rows)))
	return rows, done, nil
}

// CloseSession releases a cursor session. Unknown ids are ignored so that
// closing is idempotent.
func (e *Engine) CloseSession(id string) {
	if e.sessions.remove(id) {
		metrics.OpenCursors.Dec()
	}
}

// OpenSessions returns the number of live cursor sessions.
func (e *Engine) OpenSessions() int { return e.sessions.len() }
