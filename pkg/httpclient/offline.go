package httpclient

import (
	"context"
	"log/slog"
)

// Call is one self-contained remote operation: it builds its request from
// the parameters it captured, executes it and checks the reply.
type Call func(ctx context.Context) error

// Connectivity reports whether the client currently believes it is online.
type Connectivity interface {
	Online() bool
}

// Deferrer accepts calls for later replay.
type Deferrer interface {
	Enqueue(name string, run func(ctx context.Context) error) string
}

// OfflineClient runs calls inline while online and defers them to a queue
// while offline, so a connectivity gap never blocks or fails the caller.
type OfflineClient struct {
	conn   Connectivity
	queue  Deferrer
	logger *slog.Logger
}

// NewOfflineClient creates an offline-aware call runner.
func NewOfflineClient(conn Connectivity, queue Deferrer, logger *slog.Logger) *OfflineClient {
	return &OfflineClient{conn: conn, queue: queue, logger: logger}
}

// Run executes call, or enqueues it when the client is offline at call time.
// A deferred call reports queued=true and a nil error as its synthetic success.
func (c *OfflineClient) Run(ctx context.Context, name string, call Call) (queued bool, err error) {
	if !c.conn.Online() {
		id := c.queue.Enqueue(name, call)
		offlineDeferredTotal.WithLabelValues(name).Inc()
		c.logger.InfoContext(ctx, "offline, call deferred",
			slog.String("operation", name),
			slog.String("op_id", id),
		)
		return true, nil
	}
	return false, call(ctx)
}
