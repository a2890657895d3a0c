package session

import (
	"context"
	"math"
	"time"
)

// Backoff calculates delays between step retry attempts.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps the delay regardless of attempt count.
	Max time.Duration
	// Multiplier grows the delay per attempt.
	Multiplier float64
}

// DefaultBackoff returns the pipeline's standard retry curve.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 500 * time.Millisecond, Max: 15 * time.Second, Multiplier: 2.0}
}

// Delay returns the wait before retry attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := time.Duration(float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt)))
	if d > b.Max {
		d = b.Max
	}
	return d
}

// sleep waits for d or until ctx is cancelled, reporting which happened.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
