package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glizzus/radio-relay/internal/schedule"
)

func TestEvery(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Second)
	defer cancel()

	var ticks atomic.Int32
	// Seven fields: every second.
	err := schedule.Every(ctx, "* * * * * * *", func(ctx context.Context, at time.Time) {
		if ticks.Add(1) == 2 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("Every returned error: %v", err)
	}
	if got := ticks.Load(); got != 2 {
		t.Errorf("expected 2 ticks, got %d", got)
	}
}

func TestEveryInvalidCron(t *testing.T) {
	err := schedule.Every(t.Context(), "not a cron", func(context.Context, time.Time) {
		t.Error("execute should not be called")
	})
	if err == nil {
		t.Fatal("expected error but got none")
	}
}
