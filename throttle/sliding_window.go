package throttle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/twofa/internal/hashutil"
	"github.com/layer-3/twofa/ports"
	"github.com/rs/zerolog/log"
)

const codeRequestKeyPrefix = "twofa-tc-"

// SlidingWindow limits how many events a client may cause within any window
// of Rate.Period. The store keeps the timestamps of allowed events, most
// recent first, never more than Rate.Requests of them.
type SlidingWindow struct {
	store ports.CacheStore
	rate  *Rate
	now   func() time.Time
}

// NewSlidingWindow creates a sliding window throttle. A nil rate disables it.
func NewSlidingWindow(store ports.CacheStore, rate *Rate, opts ...Option) *SlidingWindow {
	o := buildOptions(opts)
	return &SlidingWindow{
		store: store,
		rate:  rate,
		now:   o.now,
	}
}

// Allow records an event for ident if the quota permits it. When denied,
// retryAfter is the time until the oldest counted event leaves the window,
// rounded up to whole seconds.
func (w *SlidingWindow) Allow(ctx context.Context, ident string) (bool, time.Duration, error) {
	if w.rate == nil {
		return true, 0, nil
	}

	key := codeRequestKeyPrefix + hashutil.SHA1String(ident)
	now := w.now()

	history, err := w.load(ctx, key)
	if err != nil {
		return false, 0, err
	}

	// entries at or before the window start have aged out
	windowStart := now.Add(-w.rate.Period).UnixNano()
	kept := history[:0]
	for _, ts := range history {
		if ts > windowStart {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= w.rate.Requests {
		oldest := time.Unix(0, kept[len(kept)-1])
		retryAfter := ceilSeconds(w.rate.Period - now.Sub(oldest))
		log.Ctx(ctx).Debug().
			Str("key", key).
			Int("count", len(kept)).
			Dur("retry_after", retryAfter).
			Msg("code request throttled")
		return false, retryAfter, nil
	}

	kept = append([]int64{now.UnixNano()}, kept...)
	if len(kept) > w.rate.Requests {
		kept = kept[:w.rate.Requests]
	}

	if err := w.save(ctx, key, kept); err != nil {
		return false, 0, err
	}

	return true, 0, nil
}

func (w *SlidingWindow) load(ctx context.Context, key string) ([]int64, error) {
	raw, found, err := w.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load throttle history: %w", err)
	}
	if !found {
		return nil, nil
	}

	var history []int64
	if err := json.Unmarshal(raw, &history); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("discarding unreadable throttle history")
		return nil, nil
	}

	return history, nil
}

func (w *SlidingWindow) save(ctx context.Context, key string, history []int64) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode throttle history: %w", err)
	}

	if err := w.store.Set(ctx, key, raw, w.rate.Period); err != nil {
		return fmt.Errorf("failed to save throttle history: %w", err)
	}

	return nil
}
