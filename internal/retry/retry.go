package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy controls backoff between attempts. Delay grows exponentially from
// Base and is capped at Max, with up to 20% jitter to avoid thundering herds.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultPolicy suits infrastructure bring-up: dependencies that are usually
// seconds away from ready (a database container still starting, a broker
// mid-restart).
var DefaultPolicy = Policy{Attempts: 5, Base: 500 * time.Millisecond, Max: 10 * time.Second}

// Do invokes fn until it succeeds, the attempts are exhausted, or ctx is
// canceled. The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	var lastErr error
	delay := p.Base
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.Attempts {
			break
		}

		sleep := delay
		if sleep > 0 {
			sleep += time.Duration(rand.Int63n(int64(sleep)/5 + 1))
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
	}
	return fmt.Errorf("after %d attempts: %w", p.Attempts, lastErr)
}
