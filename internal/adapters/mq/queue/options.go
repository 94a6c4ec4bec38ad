package queue

import (
	"time"

	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
)

// RetryPolicy bounds redelivery of a failed head. MaxAttempts <= 0 selects
// stalled mode: the head is kept after one failure and only redelivered on
// Retry or the next Enqueue.
type RetryPolicy struct {
	MaxAttempts int
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithRetryPolicy sets the redelivery policy. Zero intervals keep the defaults.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(q *Coordinator) {
		q.retry.MaxAttempts = p.MaxAttempts
		if p.MinInterval > 0 {
			q.retry.MinInterval = p.MinInterval
		}
		if p.MaxInterval > 0 {
			q.retry.MaxInterval = p.MaxInterval
		}
	}
}

// WithMaxAttempts sets how many times a head is tried before it is abandoned.
func WithMaxAttempts(n int) Option {
	return func(q *Coordinator) {
		q.retry.MaxAttempts = n
	}
}

// WithCallTimeout bounds every delivery attempt.
func WithCallTimeout(d time.Duration) Option {
	return func(q *Coordinator) {
		if d > 0 {
			q.callTimeout = d
		}
	}
}

// WithOnChange registers an observer for every status change. It runs
// outside the coordinator lock and may be called from any goroutine.
func WithOnChange(fn func(Status)) Option {
	return func(q *Coordinator) {
		q.onChange = fn
	}
}

// WithOnAbandon registers an observer for requests dropped after the last
// attempt failed.
func WithOnAbandon(fn func(model.FloorRequest, error)) Option {
	return func(q *Coordinator) {
		q.onAbandon = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(q *Coordinator) {
		if l != nil {
			q.log = l
		}
	}
}
