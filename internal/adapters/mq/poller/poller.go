// Package poller refreshes elevator positions on a fixed schedule.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
	"github.com/okian/liftcall/pkg/metrics"
)

const defaultInterval = 5 * time.Second

// Fetcher reads the current position of every elevator.
type Fetcher interface {
	Positions(ctx context.Context) (model.Snapshots, error)
}

// Sink receives every successfully fetched collection.
type Sink func(ctx context.Context, snapshots model.Snapshots)

// Gate is consulted before every fetch. It returns the sink that should
// receive this fetch's result, or false to skip the fetch entirely. Binding
// the sink before the fetch lets the owner reject results that went stale
// while the call was in flight.
type Gate func() (Sink, bool)

// Poller calls a Fetcher every interval and hands results to a Sink. A failed
// fetch is logged and skipped; the schedule does not change.
type Poller struct {
	fetcher      Fetcher
	sink         Sink
	gate         Gate
	name         string
	interval     time.Duration
	fetchTimeout time.Duration

	mu       sync.Mutex
	started  bool
	stopped  bool
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a poller. It does nothing until Start.
func New(f Fetcher, sink Sink, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  f,
		sink:     sink,
		name:     "poller",
		interval: defaultInterval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetchTimeout == 0 {
		p.fetchTimeout = p.interval
	}
	if p.name != "poller" {
		p.logger = p.logger.Named(p.name)
	}
	return p
}

// Start launches the polling loop. Later calls are no-ops, as are calls after
// Stop. The loop ends when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	go p.run(ctx)
	p.logger.Info(ctx, "polling started", logger.Duration("interval", p.interval))
}

// Running reports whether the loop was started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			_ = p.poll(ctx)
		}
	}
}

// PollOnce fetches once and feeds the sink synchronously.
func (p *Poller) PollOnce(ctx context.Context) error {
	return p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) error {
	sink := p.sink
	if p.gate != nil {
		var ok bool
		if sink, ok = p.gate(); !ok {
			metrics.RecordPoll(metrics.OutcomeSkipped)
			return nil
		}
	}

	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	snaps, err := p.fetcher.Positions(fctx)
	if err != nil {
		metrics.RecordPoll(metrics.OutcomeFailure)
		metrics.RecordError("poller", "fetch_failed")
		p.logger.Warn(ctx, "position poll failed", logger.Error(err))
		return fmt.Errorf("poll positions: %w", err)
	}

	// A fetch that raced with Stop must not reach the sink.
	select {
	case <-p.shutdown:
		metrics.RecordPoll(metrics.OutcomeStale)
		return nil
	default:
	}

	metrics.RecordPoll(metrics.OutcomeSuccess)
	if sink != nil {
		sink(ctx, snaps)
	}
	return nil
}

// Stop ends the loop and waits for it to exit or for ctx to expire. It is
// safe to call more than once and before Start.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.shutdown)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
