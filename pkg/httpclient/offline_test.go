package httpclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConn struct{ online atomic.Bool }

func (s *staticConn) Online() bool { return s.online.Load() }

type recordingDeferrer struct {
	names []string
	runs  []func(ctx context.Context) error
}

func (d *recordingDeferrer) Enqueue(name string, run func(ctx context.Context) error) string {
	d.names = append(d.names, name)
	d.runs = append(d.runs, run)
	return "op-1"
}

func TestOfflineClient_RunsInlineWhenOnline(t *testing.T) {
	conn := &staticConn{}
	conn.online.Store(true)
	queue := &recordingDeferrer{}
	client := NewOfflineClient(conn, queue, newTestLogger())

	var calls int
	queued, err := client.Run(context.Background(), "add-to-cart", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 1, calls)
	assert.Empty(t, queue.names)
}

func TestOfflineClient_PropagatesInlineFailure(t *testing.T) {
	conn := &staticConn{}
	conn.online.Store(true)
	client := NewOfflineClient(conn, &recordingDeferrer{}, newTestLogger())

	boom := errors.New("boom")
	queued, err := client.Run(context.Background(), "add-to-cart", func(ctx context.Context) error { return boom })
	assert.False(t, queued)
	assert.ErrorIs(t, err, boom)
}

func TestOfflineClient_DefersWhenOffline(t *testing.T) {
	conn := &staticConn{}
	queue := &recordingDeferrer{}
	client := NewOfflineClient(conn, queue, newTestLogger())

	var calls int
	queued, err := client.Run(context.Background(), "remove-from-wishlist", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Zero(t, calls, "deferred call must not run inline")
	require.Equal(t, []string{"remove-from-wishlist"}, queue.names)

	require.NoError(t, queue.runs[0](context.Background()))
	assert.Equal(t, 1, calls)
}
