package schedule

import (
	"context"
	"time"
)

// Every runs execute at each time matched by cron until ctx is done.
// It blocks, and returns an error only if cron does not parse.
func Every(ctx context.Context, cron string, execute func(ctx context.Context, at time.Time)) error {
	expr, err := parse(cron)
	if err != nil {
		return err
	}
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return nil
		}
		if !wait(ctx, time.Until(next)) {
			return nil
		}
		execute(ctx, next)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
