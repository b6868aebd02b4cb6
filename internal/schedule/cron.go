package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// ErrNoAutostart is returned by Upcoming when the expression never fires
// after the given time, such as a year field already in the past.
var ErrNoAutostart = errors.New("cron expression never fires")

func parse(cron string) (*cronexpr.Expression, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cron, err)
	}
	return expr, nil
}

// ValidateCron reports whether cron can drive the radio auto-start.
func ValidateCron(cron string) error {
	_, err := parse(cron)
	return err
}

// Upcoming returns the next n auto-start times after the given time, in UTC.
func Upcoming(cron string, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be greater than 0, got %d", n)
	}
	expr, err := parse(cron)
	if err != nil {
		return nil, err
	}
	times := expr.NextN(after.UTC(), uint(n))
	if len(times) == 0 {
		return nil, ErrNoAutostart
	}
	for i := range times {
		times[i] = times[i].UTC()
	}
	return times, nil
}
