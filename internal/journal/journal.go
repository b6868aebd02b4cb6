// Package journal records supervisor transitions for later diagnosis.
//
// The journal is append-only. Nothing in the relay reads it back to decide
// what to do; it exists for operators and the CLI.
package journal

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Kind string

const (
	KindJoin            Kind = "join"
	KindRadioStarted    Kind = "radio_started"
	KindRadioFailed     Kind = "radio_failed"
	KindStopped         Kind = "stopped"
	KindStreamEnded     Kind = "stream_ended"
	KindRecoveryStarted Kind = "recovery_started"
	KindAttempt         Kind = "attempt"
	KindStaleSession    Kind = "stale_session"
	KindReconnected     Kind = "reconnected"
	KindGaveUp          Kind = "gave_up"
)

type Event struct {
	ID      string
	GuildID string
	Kind    Kind
	State   string
	Attempt int
	Delay   time.Duration
	Reason  string
	At      time.Time
}

type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Log writes events to a slog.Logger.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "journal")}
}

func (l *Log) Record(ctx context.Context, e Event) error {
	attrs := []any{
		"eventID", e.ID,
		"guildID", e.GuildID,
		"kind", string(e.Kind),
		"state", e.State,
	}
	if e.Attempt > 0 {
		attrs = append(attrs, "attempt", e.Attempt)
	}
	if e.Delay > 0 {
		attrs = append(attrs, "delay", e.Delay)
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}
	l.logger.InfoContext(ctx, "Radio event", attrs...)
	return nil
}

var _ Recorder = (*Log)(nil)

// Multi records every event to each of its recorders.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Recorder = Multi(nil)

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

var _ Recorder = Nop{}
