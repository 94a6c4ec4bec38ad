package service

import (
	"time"

	"github.com/okian/liftcall/internal/adapters/mq/poller"
	"github.com/okian/liftcall/internal/adapters/mq/queue"
	"github.com/okian/liftcall/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPollInterval sets how often positions are refreshed.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollerOpts = append(s.pollerOpts, poller.WithInterval(d))
		}
	}
}

// WithQueueOptions passes options through to the request coordinator.
func WithQueueOptions(opts ...queue.Option) Option {
	return func(s *Session) {
		s.queueOpts = append(s.queueOpts, opts...)
	}
}

// WithPollerOptions passes options through to the position poller.
func WithPollerOptions(opts ...poller.Option) Option {
	return func(s *Session) {
		s.pollerOpts = append(s.pollerOpts, opts...)
	}
}
