package ports

import (
	"context"
	"time"
)

// Throttle decides whether a request identified by key may proceed
type Throttle interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}
