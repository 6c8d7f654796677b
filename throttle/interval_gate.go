package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/twofa/internal/hashutil"
	"github.com/layer-3/twofa/ports"
	"github.com/rs/zerolog/log"
)

const codeVerificationKeyPrefix = "twofa-ta-"

// IntervalGate lets through at most one attempt per interval for a given
// code token. Every allowed attempt moves the gate to now + interval.
type IntervalGate struct {
	store    ports.CacheStore
	interval time.Duration
	now      func() time.Time
}

// NewIntervalGate creates a gate, a non-positive interval disables it
func NewIntervalGate(store ports.CacheStore, interval time.Duration, opts ...Option) *IntervalGate {
	o := buildOptions(opts)
	return &IntervalGate{
		store:    store,
		interval: interval,
		now:      o.now,
	}
}

// Allow reports whether an attempt with codeToken may proceed. An empty token
// is always allowed, such a request fails validation elsewhere.
func (g *IntervalGate) Allow(ctx context.Context, codeToken string) (bool, time.Duration, error) {
	if codeToken == "" || g.interval <= 0 {
		return true, 0, nil
	}

	key := codeVerificationKeyPrefix + hashutil.SHA1String(codeToken)
	now := g.now()

	raw, found, err := g.store.Get(ctx, key)
	if err != nil {
		return false, 0, fmt.Errorf("failed to load verification gate: %w", err)
	}

	if found {
		nextNanos, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("discarding unreadable verification gate")
		} else if next := time.Unix(0, nextNanos); next.After(now) {
			retryAfter := next.Sub(now)
			log.Ctx(ctx).Debug().
				Str("key", key).
				Dur("retry_after", retryAfter).
				Msg("code verification throttled")
			return false, retryAfter, nil
		}
	}

	next := now.Add(g.interval)
	if err := g.store.Set(ctx, key, []byte(strconv.FormatInt(next.UnixNano(), 10)), g.interval); err != nil {
		return false, 0, fmt.Errorf("failed to save verification gate: %w", err)
	}

	return true, 0, nil
}
