package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores events in the radio_event table. The schema is created by
// datalayer.MigratePostgres.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func eventToRowParams(e Event) []any {
	return []any{
		e.ID,
		e.GuildID,
		string(e.Kind),
		e.State,
		e.Attempt,
		e.Delay.Milliseconds(),
		e.Reason,
		e.At,
	}
}

func (p *Postgres) Record(ctx context.Context, e Event) error {
	const query = `
	INSERT INTO radio_event (id, guild_id, kind, state, attempt, delay_ms, reason, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
	`
	if _, err := p.db.Exec(ctx, query, eventToRowParams(e)...); err != nil {
		return fmt.Errorf("failed to insert radio event: %w", err)
	}
	return nil
}

// List returns the newest events for guildID, newest first.
func (p *Postgres) List(ctx context.Context, guildID string, limit int) ([]Event, error) {
	const query = `
	SELECT id::text, guild_id, kind, state, attempt, delay_ms, reason, occurred_at
	FROM radio_event
	WHERE guild_id = $1
	ORDER BY occurred_at DESC, id
	LIMIT $2
	`
	rows, err := p.db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query radio events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			e       Event
			kind    string
			delayMS int64
		)
		if err := row.Scan(&e.ID, &e.GuildID, &kind, &e.State, &e.Attempt, &delayMS, &e.Reason, &e.At); err != nil {
			return Event{}, err
		}
		e.Kind = Kind(kind)
		e.Delay = time.Duration(delayMS) * time.Millisecond
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan radio events: %w", err)
	}
	return events, nil
}

var _ Recorder = (*Postgres)(nil)
