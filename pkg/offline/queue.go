// Package offline holds mutations that were issued while the client had no
// connectivity and replays them, in order, once connectivity returns.
package offline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
)

// DefaultMaxLen bounds the queue when Options.MaxLen is not set.
const DefaultMaxLen = 1000

// Op is a deferred remote operation. Run is self-contained: it rebuilds and
// executes the exact request captured when the op was enqueued.
type Op struct {
	ID         string
	Name       string
	Run        func(ctx context.Context) error
	EnqueuedAt time.Time
}

// Monitor is the connectivity source the queue follows.
type Monitor interface {
	Online() bool
	Subscribe(fn func()) (unsubscribe func())
}

// Options tunes capacity and replay pacing.
type Options struct {
	// MaxLen caps the number of pending ops. When full the oldest op that is
	// not being replayed is dropped.
	MaxLen int
	// ReplayRate limits replayed ops per second. Zero or less means unlimited.
	ReplayRate float64
}

// Queue is a FIFO of deferred ops with a single serialized drain.
type Queue struct {
	mu       sync.Mutex
	ops      []Op
	draining bool
	closed   bool

	monitor     Monitor
	limiter     *rate.Limiter
	maxLen      int
	logger      *slog.Logger
	unsubscribe func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue and subscribes it to the monitor's became-online event.
func New(monitor Monitor, logger *slog.Logger, opts Options) *Queue {
	if opts.MaxLen <= 0 {
		opts.MaxLen = DefaultMaxLen
	}
	limit := rate.Inf
	if opts.ReplayRate > 0 {
		limit = rate.Limit(opts.ReplayRate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		monitor: monitor,
		limiter: rate.NewLimiter(limit, 1),
		maxLen:  opts.MaxLen,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	q.unsubscribe = monitor.Subscribe(q.trigger)
	queueDepth.Set(0)
	return q
}

// Enqueue appends an op and kicks off a drain. It returns the op id.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) string {
	op := Op{
		ID:         uuid.New().String(),
		Name:       name,
		Run:        run,
		EnqueuedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	if len(q.ops) >= q.maxLen {
		// The head is in flight while a pass runs; drop the oldest one behind it.
		idx := 0
		if q.draining && len(q.ops) > 1 {
			idx = 1
		}
		dropped := q.ops[idx]
		q.ops = append(q.ops[:idx], q.ops[idx+1:]...)
		droppedTotal.WithLabelValues("capacity").Inc()
		q.logger.Warn("offline queue full, dropping oldest op",
			slog.String("op_id", dropped.ID),
			slog.String("operation", dropped.Name),
			slog.Int("max_len", q.maxLen),
		)
	}
	q.ops = append(q.ops, op)
	queueDepth.Set(float64(len(q.ops)))
	q.mu.Unlock()

	q.logger.Debug("op enqueued",
		slog.String("op_id", op.ID),
		slog.String("operation", op.Name),
	)

	q.trigger()
	return op.ID
}

// Len returns the number of pending ops.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a copy of the pending ops, front first.
func (q *Queue) Pending() []Op {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Op(nil), q.ops...)
}

// Drain replays pending ops front to back while the monitor reports online.
// A retryable failure stops the pass and leaves the op at the front; any
// other failure drops the op and the pass continues. When a pass is already
// running Drain returns immediately; that pass picks up the backlog.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	for {
		op, ok := q.next(ctx)
		if !ok {
			return
		}

		if err := q.limiter.Wait(ctx); err != nil {
			q.stop()
			return
		}

		err := op.Run(ctx)
		switch {
		case err == nil:
			q.remove(op.ID)
			replayedTotal.WithLabelValues("success").Inc()
			q.logger.Info("offline op replayed",
				slog.String("op_id", op.ID),
				slog.String("operation", op.Name),
				slog.Duration("queued_for", time.Since(op.EnqueuedAt)),
			)
		case apperrors.IsRetryable(err):
			replayedTotal.WithLabelValues("retry_later").Inc()
			q.logger.Warn("offline op replay failed, will retry",
				slog.String("op_id", op.ID),
				slog.String("operation", op.Name),
				slog.String("error", err.Error()),
			)
			q.stop()
			return
		default:
			q.remove(op.ID)
			replayedTotal.WithLabelValues("dropped").Inc()
			droppedTotal.WithLabelValues("rejected").Inc()
			q.logger.Error("offline op rejected, dropping",
				slog.String("op_id", op.ID),
				slog.String("operation", op.Name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close stops accepting drain triggers and waits for a running pass to end.
// Pending ops are kept in memory and simply not replayed any more.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.unsubscribe()
	q.cancel()
	q.wg.Wait()
}

// next returns the front op, or ends the pass. The empty check and clearing
// the draining flag happen under one lock so an Enqueue racing with the end
// of a pass always starts a new one.
func (q *Queue) next(ctx context.Context) (Op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 || ctx.Err() != nil || !q.monitor.Online() {
		q.draining = false
		return Op{}, false
	}
	return q.ops[0], true
}

func (q *Queue) stop() {
	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.ops {
		if q.ops[i].ID == id {
			q.ops = append(q.ops[:i], q.ops[i+1:]...)
			break
		}
	}
	queueDepth.Set(float64(len(q.ops)))
}

func (q *Queue) trigger() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		q.Drain(q.ctx)
	}()
}
