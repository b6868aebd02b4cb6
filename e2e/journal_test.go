package e2e_test

import (
	"testing"

	"github.com/glizzus/radio-relay/e2e"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/supervisor"
)

func TestRedisJournalTail(t *testing.T) {
	url := e2e.UseRedis(t)
	stream := "radio_events_" + newGuildID(t)
	events := e2e.GetRedisJournal(t, url, stream)
	radio := e2e.NewRadio(t, journal.Multi{events})

	guildID := newGuildID(t)
	out, err := radio.StartRadio(t.Context(), guildID, "200")
	if err != nil {
		t.Fatalf("StartRadio() error = %v", err)
	}
	if out.Code != supervisor.Started {
		t.Fatalf("StartRadio() code = %s, want started", out.Code)
	}
	if _, err := radio.Stop(t.Context(), guildID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	recent, err := events.Recent(t.Context(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(recent), recent)
	}
	if recent[0].Kind != journal.KindStopped || recent[1].Kind != journal.KindRadioStarted {
		t.Errorf("kinds = [%s %s], want [stopped radio_started]", recent[0].Kind, recent[1].Kind)
	}
	for _, e := range recent {
		if e.GuildID != guildID {
			t.Errorf("event for guild %s, want %s", e.GuildID, guildID)
		}
	}
}
