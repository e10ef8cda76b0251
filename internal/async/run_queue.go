package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunQueue executes triggers one at a time on a single worker. While a run is
// in progress, new triggers collapse into one pending trigger.
type RunQueue struct {
	run     RunFunc
	logger  *slog.Logger
	timeout time.Duration

	ch   chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending *Trigger
	closed  bool
}

var _ Queue = (*RunQueue)(nil)

type Option func(*RunQueue)

// WithRunTimeout bounds every run; zero or negative leaves runs unbounded.
func WithRunTimeout(d time.Duration) Option {
	return func(q *RunQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewRunQueue(ctx context.Context, run RunFunc, logger *slog.Logger, opts ...Option) *RunQueue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	q := &RunQueue{
		run:    run,
		logger: logger,
		ch:     make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RunQueue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.logger.Debug("run queue worker started")
			for range q.ch {
				t, ok := q.take()
				if !ok {
					continue
				}
				q.execute(t)
			}
			q.logger.Debug("run queue worker stopped")
		}()
	})
}

func (q *RunQueue) take() (Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return Trigger{}, false
	}
	t := *q.pending
	q.pending = nil
	return t, true
}

func (q *RunQueue) execute(t Trigger) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	start := time.Now()
	q.logger.Info("queue.run.start", "reason", t.Reason, "paths", len(t.Paths), "waited_ms", start.Sub(t.SubmittedAt).Milliseconds())
	if err := q.run(ctx, t); err != nil {
		q.logger.Error("queue.run.failed", "reason", t.Reason, "error", err)
		return
	}
	q.logger.Info("queue.run.ok", "reason", t.Reason, "elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue schedules a run, merging t into any run that has not started yet.
func (q *RunQueue) Enqueue(_ context.Context, t Trigger) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "reason", t.Reason)
		return ErrClosed
	}
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now()
	}
	if q.pending != nil {
		q.pending.Paths = append(q.pending.Paths, t.Paths...)
		q.logger.Debug("queue.coalesced", "reason", t.Reason, "paths", len(q.pending.Paths))
		return nil
	}
	q.pending = &t
	select {
	case q.ch <- struct{}{}:
	default:
	}
	return nil
}

// Shutdown stops accepting triggers, drops anything pending and waits for the
// current run. If ctx ends first, the current run is cancelled.
func (q *RunQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.pending = nil
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
	q.cancel()
}
