package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis appends events to a capped Redis stream.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedis(client *redis.Client, stream string, maxLen int64) *Redis {
	return &Redis{client: client, stream: stream, maxLen: maxLen}
}

func (r *Redis) Record(ctx context.Context, e Event) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"eventID": e.ID,
			"guildID": e.GuildID,
			"kind":    string(e.Kind),
			"state":   e.State,
			"attempt": strconv.Itoa(e.Attempt),
			"delayMS": strconv.FormatInt(e.Delay.Milliseconds(), 10),
			"reason":  e.Reason,
			"at":      e.At.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append radio event to %s: %w", r.stream, err)
	}
	return nil
}

// Recent returns up to n of the newest events, newest first.
func (r *Redis) Recent(ctx context.Context, n int64) ([]Event, error) {
	msgs, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.stream, err)
	}

	events := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		e, err := eventFromValues(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("malformed stream entry %s: %w", msg.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func eventFromValues(values map[string]any) (Event, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	e := Event{
		ID:      str("eventID"),
		GuildID: str("guildID"),
		Kind:    Kind(str("kind")),
		State:   str("state"),
		Reason:  str("reason"),
	}

	var err error
	if e.Attempt, err = strconv.Atoi(str("attempt")); err != nil {
		return Event{}, fmt.Errorf("attempt: %w", err)
	}
	delayMS, err := strconv.ParseInt(str("delayMS"), 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("delayMS: %w", err)
	}
	e.Delay = time.Duration(delayMS) * time.Millisecond
	if e.At, err = time.Parse(time.RFC3339Nano, str("at")); err != nil {
		return Event{}, fmt.Errorf("at: %w", err)
	}
	return e, nil
}

var _ Recorder = (*Redis)(nil)
