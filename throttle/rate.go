// Package throttle implements the two abuse limits of the login flow: a
// sliding window on code token requests per client and a fixed interval gate
// on verification attempts per code token.
package throttle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/layer-3/twofa/core"
)

var periodUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// Rate is a request quota per period
type Rate struct {
	Requests int
	Period   time.Duration
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Requests, r.Period)
}

// ParseRate parses "<count>/<period>" where period is an optional integer
// followed by one of s, m, h or d, e.g. "12/3h" or "5/m". An empty string
// disables throttling and yields a nil Rate.
func ParseRate(s string) (*Rate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	countStr, periodStr, ok := strings.Cut(s, "/")
	if !ok || periodStr == "" {
		return nil, rateError(s, "expected <count>/<period>")
	}

	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		return nil, rateError(s, "count must be a positive integer")
	}

	unit, ok := periodUnits[periodStr[len(periodStr)-1]]
	if !ok {
		return nil, rateError(s, "period unit must be one of s, m, h, d")
	}

	multiplier := 1
	if numStr := periodStr[:len(periodStr)-1]; numStr != "" {
		multiplier, err = strconv.Atoi(numStr)
		if err != nil || multiplier <= 0 {
			return nil, rateError(s, "period length must be a positive integer")
		}
	}

	return &Rate{Requests: count, Period: time.Duration(multiplier) * unit}, nil
}

func rateError(s, reason string) error {
	return &core.ConfigError{Field: "CODE_TOKEN_THROTTLE_RATE", Reason: fmt.Sprintf("%q: %s", s, reason)}
}

type options struct {
	now func() time.Time
}

// Option configures a throttle
type Option func(*options)

// WithClock replaces time.Now as the throttle's time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func ceilSeconds(d time.Duration) time.Duration {
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
