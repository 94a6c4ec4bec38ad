package poller

import (
	"time"

	"github.com/okian/liftcall/pkg/logger"
)

// Option applies a configuration option to the Poller.
type Option func(*Poller)

// WithInterval sets the time between fetches.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithFetchTimeout bounds a single fetch. It defaults to the interval.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// WithName sets the poller name for identification and logging.
func WithName(name string) Option {
	return func(p *Poller) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the poller.
func WithLogger(l logger.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithGate installs a gate consulted before every fetch. When set, the sink
// it returns replaces the one given to New.
func WithGate(g Gate) Option {
	return func(p *Poller) {
		p.gate = g
	}
}
