package service

import (
	"time"

	"github.com/layer-3/twofa/internal/metrics"
)

type options struct {
	now        func() time.Time
	metrics    *metrics.Metrics
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Option configures the services of this package
type Option func(*options)

// WithClock replaces time.Now as the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMetrics records the flow's outcomes in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTokenTTLs sets the lifetimes of the final access and refresh tokens
func WithTokenTTLs(access, refresh time.Duration) Option {
	return func(o *options) {
		if access > 0 {
			o.accessTTL = access
		}
		if refresh > 0 {
			o.refreshTTL = refresh
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		accessTTL:  5 * time.Minute,
		refreshTTL: 5 * 24 * time.Hour, // 5 days
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
