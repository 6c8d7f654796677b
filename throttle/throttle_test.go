package throttle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/internal/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore is a CacheStore that ignores TTLs so tests can inspect entries
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

// fakeClock is advanced manually by tests
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1577970000, 0)} }

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func TestParseRate(t *testing.T) {
	tests := []struct {
		in       string
		requests int
		period   time.Duration
	}{
		{"1/s", 1, time.Second},
		{"42/7s", 42, 7 * time.Second},
		{"5/m", 5, time.Minute},
		{"938383/10m", 938383, 10 * time.Minute},
		{"12/3h", 12, 3 * time.Hour},
		{"2/h", 2, time.Hour},
		{"1/d", 1, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rate, err := ParseRate(tt.in)
			require.NoError(t, err)
			require.NotNil(t, rate)
			assert.Equal(t, tt.requests, rate.Requests)
			assert.Equal(t, tt.period, rate.Period)
		})
	}
}

func TestParseRate_Disabled(t *testing.T) {
	rate, err := ParseRate("")
	require.NoError(t, err)
	assert.Nil(t, rate)
}

func TestParseRate_Invalid(t *testing.T) {
	for _, in := range []string{"12", "12/", "/3h", "x/3h", "0/3h", "12/3x", "12/3", "12/0h", "12/-1h"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRate(in)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestSlidingWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMapStore()
	start := clock.Now()

	w := NewSlidingWindow(store, &Rate{Requests: 2, Period: 10 * time.Second}, WithClock(clock.Now))
	key := codeRequestKeyPrefix + hashutil.SHA1String("127.0.0.1")

	history := func() []int64 {
		var h []int64
		require.NoError(t, json.Unmarshal(store.data[key], &h))
		return h
	}
	at := func(s int) int64 { return start.Add(time.Duration(s) * time.Second).UnixNano() }

	// t=0
	allowed, _, err := w.Allow(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []int64{at(0)}, history())
	assert.Equal(t, 10*time.Second, store.ttls[key])

	// t=1
	clock.Advance(time.Second)
	allowed, _, err = w.Allow(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []int64{at(1), at(0)}, history())

	// t=2, quota used up
	clock.Advance(time.Second)
	allowed, retryAfter, err := w.Allow(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 8*time.Second, retryAfter)
	assert.Equal(t, []int64{at(1), at(0)}, history())

	// another client is counted separately
	allowed, _, err = w.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	// t=10, the t=0 entry has left the window
	clock.Advance(8 * time.Second)
	allowed, _, err = w.Allow(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []int64{at(10), at(1)}, history())
}

func TestSlidingWindow_RetryAfterRoundsUp(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	w := NewSlidingWindow(newMapStore(), &Rate{Requests: 1, Period: 10 * time.Second}, WithClock(clock.Now))

	allowed, _, err := w.Allow(ctx, "client")
	require.NoError(t, err)
	require.True(t, allowed)

	clock.Advance(seconds(2.5))
	allowed, retryAfter, err := w.Allow(ctx, "client")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 8*time.Second, retryAfter)
}

func TestSlidingWindow_HistoryBoundedByQuota(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMapStore()
	w := NewSlidingWindow(store, &Rate{Requests: 3, Period: time.Second}, WithClock(clock.Now))

	for i := 0; i < 20; i++ {
		_, _, err := w.Allow(ctx, "client")
		require.NoError(t, err)
		clock.Advance(400 * time.Millisecond)
	}

	var h []int64
	require.NoError(t, json.Unmarshal(store.data[codeRequestKeyPrefix+hashutil.SHA1String("client")], &h))
	assert.LessOrEqual(t, len(h), 3)
	for i := 1; i < len(h); i++ {
		assert.Greater(t, h[i-1], h[i], "history must be most recent first")
	}
}

func TestSlidingWindow_Disabled(t *testing.T) {
	w := NewSlidingWindow(failingStore{}, nil)

	for i := 0; i < 100; i++ {
		allowed, _, err := w.Allow(context.Background(), "client")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestSlidingWindow_StoreError(t *testing.T) {
	w := NewSlidingWindow(failingStore{}, &Rate{Requests: 1, Period: time.Second})

	_, _, err := w.Allow(context.Background(), "client")
	assert.Error(t, err)
}

func TestSlidingWindow_CorruptHistory(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.data[codeRequestKeyPrefix+hashutil.SHA1String("client")] = []byte("garbage")
	w := NewSlidingWindow(store, &Rate{Requests: 1, Period: time.Second})

	allowed, _, err := w.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIntervalGate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMapStore()
	gate := NewIntervalGate(store, 2*time.Second, WithClock(clock.Now))

	allowed, _, err := gate.Allow(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2*time.Second, store.ttls[codeVerificationKeyPrefix+hashutil.SHA1String("token-1")])

	clock.Advance(seconds(0.5))
	allowed, retryAfter, err := gate.Allow(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, seconds(1.5), retryAfter)

	// a denied attempt does not move the gate
	clock.Advance(seconds(1.5))
	allowed, _, err = gate.Allow(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIntervalGate_AttemptSequence(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	gate := NewIntervalGate(newMapStore(), 2*time.Second, WithClock(clock.Now))

	steps := []struct {
		advance time.Duration
		token   string
		allowed bool
	}{
		{time.Second, "token-1", true},
		{seconds(0.5), "token-1", false},
		{seconds(1.75), "token-1", true},
		{seconds(0.75), "token-1", false},
		{0, "token-2", true},
		{0, "", true},
		{seconds(1.5), "token-1", true},
	}

	for i, step := range steps {
		clock.Advance(step.advance)
		allowed, _, err := gate.Allow(ctx, step.token)
		require.NoError(t, err)
		assert.Equal(t, step.allowed, allowed, "step %d", i)
	}
}

func TestIntervalGate_Disabled(t *testing.T) {
	gate := NewIntervalGate(failingStore{}, 0)

	allowed, _, err := gate.Allow(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIntervalGate_StoreError(t *testing.T) {
	gate := NewIntervalGate(failingStore{}, time.Second)

	_, _, err := gate.Allow(context.Background(), "token")
	assert.Error(t, err)

	// no token, no store access
	allowed, _, err := gate.Allow(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, allowed)
}
