package supervisor

import (
	"context"
	"math"
	"time"
)

// Backoff returns the delay before the attempt that follows `attempts`
// failed ones: base^attempts seconds, so a 2s base waits 1s, 2s, 4s, 8s, 16s.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	secs := math.Pow(base.Seconds(), float64(attempts))
	if secs > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs * float64(time.Second))
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
