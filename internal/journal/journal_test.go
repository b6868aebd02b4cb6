package journal_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/glizzus/radio-relay/internal/journal"
)

type recorderFunc func(ctx context.Context, e journal.Event) error

func (f recorderFunc) Record(ctx context.Context, e journal.Event) error { return f(ctx, e) }

func TestLogRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := journal.NewLog(logger).Record(t.Context(), journal.Event{
		ID:      "e1",
		GuildID: "42",
		Kind:    journal.KindAttempt,
		State:   "recovering",
		Attempt: 3,
		Delay:   4 * time.Second,
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"guildID=42", "kind=attempt", "attempt=3", "delay=4s", "component=journal"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}
	if strings.Contains(out, "reason=") {
		t.Errorf("empty reason was logged: %q", out)
	}
}

func TestMultiRecord(t *testing.T) {
	var seen []string
	first := recorderFunc(func(ctx context.Context, e journal.Event) error {
		seen = append(seen, "first:"+e.ID)
		return errors.New("first failed")
	})
	second := recorderFunc(func(ctx context.Context, e journal.Event) error {
		seen = append(seen, "second:"+e.ID)
		return nil
	})

	err := journal.Multi{first, second}.Record(t.Context(), journal.Event{ID: "x"})
	if err == nil || !strings.Contains(err.Error(), "first failed") {
		t.Errorf("expected joined error from first recorder, got %v", err)
	}
	if len(seen) != 2 || seen[0] != "first:x" || seen[1] != "second:x" {
		t.Errorf("recorders called as %v", seen)
	}

	if err := (journal.Multi{}).Record(t.Context(), journal.Event{}); err != nil {
		t.Errorf("empty Multi returned %v", err)
	}
}
