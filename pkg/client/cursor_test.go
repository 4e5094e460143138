package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

type batch struct {
	rows []graphvalue.Row
	done bool
	err  error
}

// fakeSource replays scripted batches.
type fakeSource struct {
	batches []batch
	calls   int
	closed  int
	block   bool
}

func (f *fakeSource) next(ctx context.Context) ([]graphvalue.Row, bool, error) {
	if f.block {
		<-ctx.Done()
		return nil, false, kgerr.FromContext(ctx.Err())
	}
	b := f.batches[f.calls]
	f.calls++
	return b.rows, b.done, b.err
}

func (f *fakeSource) close(context.Context) error {
	f.closed++
	return nil
}

func intRows(values ...int64) []graphvalue.Row {
	rows := make([]graphvalue.Row, len(values))
	for i, v := range values {
		rows[i] = graphvalue.Row{graphvalue.Int64(v)}
	}
	return rows
}

func readAll(t *testing.T, cur *RowCursor) []int64 {
	t.Helper()
	var got []int64
	for {
		ok, err := cur.WaitForNextBatch(context.Background())
		require.NoError(t, err)
		if !ok {
			return got
		}
		for cur.Advance() {
			v, ok := cur.Current()[0].(graphvalue.Primitive).AsInt64()
			require.True(t, ok)
			got = append(got, v)
		}
	}
}

func TestCursorBatches(t *testing.T) {
	src := &fakeSource{batches: []batch{
		{rows: intRows(1, 2)},
		{rows: nil},
		{rows: intRows(3), done: true},
	}}
	released := 0
	cur := newRowCursor(src, func() { released++ })

	assert.Equal(t, CursorOpen, cur.State())
	assert.Nil(t, cur.Current())
	assert.Equal(t, []int64{1, 2, 3}, readAll(t, cur))
	assert.Equal(t, CursorExhausted, cur.State())
	assert.Equal(t, 3, src.calls)

	ok, err := cur.WaitForNextBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, cur.Advance())

	require.NoError(t, cur.Close(context.Background()))
	require.NoError(t, cur.Close(context.Background()))
	assert.Equal(t, 1, src.closed)
	assert.Equal(t, 1, released)
	assert.Equal(t, CursorDisposed, cur.State())

	_, err = cur.WaitForNextBatch(context.Background())
	assert.ErrorIs(t, err, kgerr.ErrInvalidState)
}

func TestCursorWithoutRows(t *testing.T) {
	src := &fakeSource{batches: []batch{{done: true}}}
	cur := newRowCursor(src, func() {})

	ok, err := cur.WaitForNextBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, CursorExhausted, cur.State())
	assert.Nil(t, cur.Current())
}

func TestCursorWaitKeepsUnreadBatch(t *testing.T) {
	src := &fakeSource{batches: []batch{{rows: intRows(1, 2), done: true}}}
	cur := newRowCursor(src, func() {})

	ok, err := cur.WaitForNextBatch(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cur.Advance())

	// The second row is still buffered: no fetch happens.
	ok, err = cur.WaitForNextBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, src.calls)
}

func TestCursorCancellationPoisons(t *testing.T) {
	src := &fakeSource{block: true}
	released := false
	cur := newRowCursor(src, func() { released = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cur.WaitForNextBatch(ctx)
	require.ErrorIs(t, err, kgerr.ErrCancelled)
	assert.Equal(t, CursorPoisoned, cur.State())
	assert.ErrorIs(t, cur.Err(), kgerr.ErrCancelled)

	_, err = cur.WaitForNextBatch(context.Background())
	assert.ErrorIs(t, err, kgerr.ErrInvalidState)
	assert.False(t, cur.Advance())

	require.NoError(t, cur.Close(context.Background()))
	assert.True(t, released)
}

func TestCursorRemoteFaultPoisons(t *testing.T) {
	fault := errors.New("boom")
	src := &fakeSource{batches: []batch{
		{rows: intRows(1)},
		{err: fault},
	}}
	cur := newRowCursor(src, func() {})

	ok, err := cur.WaitForNextBatch(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	for cur.Advance() {
	}

	_, err = cur.WaitForNextBatch(context.Background())
	assert.ErrorIs(t, err, fault)
	assert.Equal(t, CursorPoisoned, cur.State())
	_, err = cur.WaitForNextBatch(context.Background())
	assert.ErrorIs(t, err, kgerr.ErrInvalidState)
}

func TestCursorStateString(t *testing.T) {
	assert.Equal(t, "buffered", CursorBuffered.String())
	assert.Equal(t, "CursorState(9)", CursorState(9).String())
}
