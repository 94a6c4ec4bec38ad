// Package config defines client configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Durations are configured in milliseconds and exposed as time.Duration.
// - External errors must be wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/okian/liftcall/internal/domain/fleet"
	"github.com/okian/liftcall/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// BaseURL is the root of the remote elevator service.
	BaseURL string `koanf:"base_url"`

	// StatusAddr is the listen address of the local status API, e.g. ":9180".
	StatusAddr string `koanf:"status_addr"`

	// RequestTimeoutMS bounds every remote call.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// PollIntervalMS is the position refresh period.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// DeliveryMaxAttempts bounds floor request redelivery. Zero or less
	// stalls the queue after the first failure instead.
	DeliveryMaxAttempts int `koanf:"delivery_max_attempts"`

	// DeliveryBackoffMinMS and DeliveryBackoffMaxMS bound the wait between
	// delivery attempts.
	DeliveryBackoffMinMS int `koanf:"delivery_backoff_min_ms"`
	DeliveryBackoffMaxMS int `koanf:"delivery_backoff_max_ms"`

	// TraceEnabled turns on span export; TraceOutput names the file spans
	// are written to (stdout when empty).
	TraceEnabled bool   `koanf:"trace_enabled"`
	TraceOutput  string `koanf:"trace_output"`

	// Fleet is submitted by `configure` and on `serve` startup when present.
	Fleet []model.FleetEntry `koanf:"fleet"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		BaseURL:              "http://localhost:8000",
		StatusAddr:           ":9180",
		RequestTimeoutMS:     5000,
		PollIntervalMS:       5000,
		DeliveryMaxAttempts:  5,
		DeliveryBackoffMinMS: 250,
		DeliveryBackoffMaxMS: 10_000,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// PollInterval returns PollIntervalMS as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// DeliveryBackoff returns the min and max wait between delivery attempts.
func (c *Config) DeliveryBackoff() (minWait, maxWait time.Duration) {
	return time.Duration(c.DeliveryBackoffMinMS) * time.Millisecond,
		time.Duration(c.DeliveryBackoffMaxMS) * time.Millisecond
}

// Validate checks the configuration. Failures wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url must not be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: base_url must be an absolute http(s) url, got %q", ErrInvalidConfig, c.BaseURL)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("%w: poll_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.DeliveryBackoffMinMS < 0 || c.DeliveryBackoffMaxMS < 0 {
		return fmt.Errorf("%w: delivery backoff must not be negative", ErrInvalidConfig)
	}
	if len(c.Fleet) > 0 {
		if errs := fleet.ValidateEntries(c.Fleet); len(errs) > 0 {
			return fmt.Errorf("%w: fleet: %w", ErrInvalidConfig, errs)
		}
	}
	return nil
}
