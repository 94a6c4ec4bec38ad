// Package queue serialises floor request submissions to the remote service.
//
// The Coordinator keeps an ordered backlog and delivers it one request at a
// time: at most one Deliver call is outstanding at any instant, and a request
// leaves the backlog only when it was delivered or abandoned.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/lestrrat-go/backoff/v2"

	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
	"github.com/okian/liftcall/pkg/metrics"
)

// Default coordinator configuration constants.
const (
	defaultCallTimeout = 5 * time.Second
	defaultMaxAttempts = 5
	defaultMinInterval = 250 * time.Millisecond
	defaultMaxInterval = 10 * time.Second
)

// Deliverer submits one request to the remote service.
type Deliverer interface {
	Deliver(ctx context.Context, req model.FloorRequest) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, req model.FloorRequest) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, req model.FloorRequest) error {
	return f(ctx, req)
}

// State is the user-visible queue state.
type State int

const (
	StateClear State = iota
	StateQueued
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateQueued:
		return "queued"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State     State  `json:"-"`
	Backlog   int    `json:"backlog"`
	Attempt   int    `json:"attempt"`
	Stalled   bool   `json:"stalled"`
	Delivered uint64 `json:"delivered"`
	Abandoned uint64 `json:"abandoned"`
}

// Line is the one-line queue summary shown to users.
func (s Status) Line() string {
	switch s.State {
	case StateProcessing:
		return "Processing request..."
	case StateQueued:
		if s.Stalled {
			return "Request queued (delivery stalled)"
		}
		return "Request queued"
	default:
		return "Queue clear"
	}
}

// Coordinator is a single-flight FIFO of floor requests.
type Coordinator struct {
	deliverer   Deliverer
	log         logger.Logger
	callTimeout time.Duration
	retry       RetryPolicy
	onChange    func(Status)
	onAbandon   func(model.FloorRequest, error)

	mu         sync.Mutex
	backlog    []model.FloorRequest
	draining   bool // drain lease
	processing bool // a Deliver call is outstanding
	stalled    bool
	attempt    int
	delivered  uint64
	abandoned  uint64
	closed     bool
	changed    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordinator delivering through d.
func New(d Deliverer, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Coordinator{
		deliverer:   d,
		callTimeout: defaultCallTimeout,
		retry: RetryPolicy{
			MaxAttempts: defaultMaxAttempts,
			MinInterval: defaultMinInterval,
			MaxInterval: defaultMaxInterval,
		},
		changed: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		q.log = logger.Get().Named("queue")
	}
	if q.retry.MaxInterval < q.retry.MinInterval {
		q.retry.MaxInterval = q.retry.MinInterval
	}

	metrics.UpdateBacklogSize(0)
	metrics.UpdateQueueState(int(StateClear))
	return q
}

// Enqueue appends req to the backlog and starts delivery if idle. It never
// waits for delivery. A stalled head is retried as a side effect.
func (q *Coordinator) Enqueue(ctx context.Context, req model.FloorRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		metrics.RecordError("queue", "closed")
		return ErrClosed
	}
	q.backlog = append(q.backlog, req)
	q.stalled = false
	st := q.changedLocked()
	q.mu.Unlock()

	q.log.Debug(ctx, "request enqueued",
		logger.String("user_id", req.UserID.String()),
		logger.Int("floor", req.Floor),
		logger.Int("backlog", st.Backlog))
	q.emit(st)
	q.drain()
	return nil
}

// Retry redelivers a stalled head. It is a no-op otherwise.
func (q *Coordinator) Retry() {
	q.mu.Lock()
	if q.closed || !q.stalled {
		q.mu.Unlock()
		return
	}
	q.stalled = false
	st := q.changedLocked()
	q.mu.Unlock()

	q.emit(st)
	q.drain()
}

// State returns the current queue state.
func (q *Coordinator) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked()
}

// Status returns the current status.
func (q *Coordinator) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// Pending returns a copy of the backlog, head first.
func (q *Coordinator) Pending() []model.FloorRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.FloorRequest(nil), q.backlog...)
}

// WaitIdle blocks until the backlog is empty and no call is outstanding.
// It returns ErrStalled when the head is stalled and ErrClosed once closed.
func (q *Coordinator) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		switch {
		case q.stateLocked() == StateClear:
			q.mu.Unlock()
			return nil
		case q.closed:
			q.mu.Unlock()
			return ErrClosed
		case q.stalled:
			q.mu.Unlock()
			return ErrStalled
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops delivery, waits for the drain goroutine and discards any result
// it produces afterwards. Pending requests are dropped.
func (q *Coordinator) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.cancel()
	close(q.changed)
	q.changed = make(chan struct{})
	dropped := len(q.backlog)
	q.mu.Unlock()

	q.wg.Wait()
	if dropped > 0 {
		q.log.Warn(context.Background(), "coordinator closed with pending requests", logger.Int("pending", dropped))
	}
	return nil
}

// IsClosed returns true if the coordinator has been closed.
func (q *Coordinator) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// drain takes the lease and starts delivering the head, unless the lease is
// held, the head is stalled, the backlog is empty or the coordinator closed.
func (q *Coordinator) drain() {
	q.mu.Lock()
	if q.closed || q.draining || q.stalled || len(q.backlog) == 0 {
		q.mu.Unlock()
		return
	}
	q.draining = true
	head := q.backlog[0]
	q.wg.Add(1)
	q.mu.Unlock()

	go q.deliverHead(head)
}

func (q *Coordinator) deliverHead(head model.FloorRequest) { //nolint:gocritic // hugeParam: request is copied out of the backlog
	defer q.wg.Done()

	ctx, cancel := context.WithCancel(q.ctx)
	defer cancel()
	b := q.policy().Start(ctx)

	var (
		attempt int
		lastErr error
	)
	for backoff.Continue(b) {
		attempt++
		if !q.beginAttempt(attempt) {
			return
		}

		start := time.Now()
		callCtx, callCancel := context.WithTimeout(ctx, q.callTimeout)
		err := q.deliverer.Deliver(callCtx, head)
		callCancel()
		latency := float64(time.Since(start).Milliseconds())

		if err == nil {
			metrics.RecordDelivery(metrics.OutcomeSuccess, latency)
			if q.complete(head, false, nil) {
				q.drain()
			}
			return
		}

		lastErr = err
		metrics.RecordDelivery(metrics.OutcomeFailure, latency)
		metrics.RecordError("queue", "delivery_failed")
		q.log.Warn(ctx, "delivery failed",
			logger.String("user_id", head.UserID.String()),
			logger.Int("floor", head.Floor),
			logger.Int("attempt", attempt),
			logger.Error(err))

		if q.retry.MaxAttempts <= 0 {
			q.stall()
			return
		}
		if attempt >= q.retry.MaxAttempts {
			break
		}
		q.endAttempt()
	}

	if ctx.Err() != nil || lastErr == nil {
		q.release()
		return
	}
	metrics.RecordDelivery(metrics.OutcomeAbandoned, 0)
	if q.complete(head, true, lastErr) {
		q.drain()
	}
}

func (q *Coordinator) policy() backoff.Policy {
	retries := q.retry.MaxAttempts
	if retries <= 0 {
		retries = 1
	}
	return backoff.Exponential(
		backoff.WithMinInterval(q.retry.MinInterval),
		backoff.WithMaxInterval(q.retry.MaxInterval),
		backoff.WithMaxRetries(retries),
	)
}

// beginAttempt marks a call outstanding. It reports false once closed.
func (q *Coordinator) beginAttempt(attempt int) bool {
	q.mu.Lock()
	if q.closed {
		q.draining = false
		q.mu.Unlock()
		return false
	}
	q.processing = true
	q.attempt = attempt
	st := q.changedLocked()
	q.mu.Unlock()

	q.emit(st)
	return true
}

// endAttempt clears the outstanding flag while the lease is kept for the
// backoff wait.
func (q *Coordinator) endAttempt() {
	q.mu.Lock()
	q.processing = false
	st := q.changedLocked()
	closed := q.closed
	q.mu.Unlock()

	if !closed {
		q.emit(st)
	}
}

func (q *Coordinator) stall() {
	q.mu.Lock()
	q.processing = false
	q.draining = false
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.stalled = true
	st := q.changedLocked()
	q.mu.Unlock()

	q.emit(st)
}

func (q *Coordinator) release() {
	q.mu.Lock()
	q.processing = false
	q.draining = false
	st := q.changedLocked()
	closed := q.closed
	q.mu.Unlock()

	if !closed {
		q.emit(st)
	}
}

// complete removes the head and releases the lease. It reports false when
// the coordinator was closed meanwhile, in which case nothing is committed.
func (q *Coordinator) complete(head model.FloorRequest, abandoned bool, cause error) bool { //nolint:gocritic // hugeParam: see deliverHead
	q.mu.Lock()
	q.processing = false
	q.draining = false
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.backlog = q.backlog[1:]
	if len(q.backlog) == 0 {
		q.backlog = nil
	}
	q.attempt = 0
	if abandoned {
		q.abandoned++
	} else {
		q.delivered++
	}
	st := q.changedLocked()
	q.mu.Unlock()

	if abandoned {
		q.log.Error(q.ctx, "request abandoned",
			logger.String("user_id", head.UserID.String()),
			logger.Int("floor", head.Floor),
			logger.Int("attempts", q.retry.MaxAttempts),
			logger.Error(cause))
		if q.onAbandon != nil {
			q.onAbandon(head, cause)
		}
	}
	q.emit(st)
	return true
}

func (q *Coordinator) stateLocked() State {
	switch {
	case q.processing:
		return StateProcessing
	case len(q.backlog) > 0:
		return StateQueued
	default:
		return StateClear
	}
}

func (q *Coordinator) statusLocked() Status {
	return Status{
		State:     q.stateLocked(),
		Backlog:   len(q.backlog),
		Attempt:   q.attempt,
		Stalled:   q.stalled,
		Delivered: q.delivered,
		Abandoned: q.abandoned,
	}
}

// changedLocked wakes WaitIdle callers, updates gauges and returns the new
// status for emit.
func (q *Coordinator) changedLocked() Status {
	if !q.closed {
		close(q.changed)
		q.changed = make(chan struct{})
	}
	st := q.statusLocked()
	metrics.UpdateBacklogSize(st.Backlog)
	metrics.UpdateQueueState(int(st.State))
	return st
}

func (q *Coordinator) emit(st Status) {
	if q.onChange != nil {
		q.onChange(st)
	}
}
