package e2e_test

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/radio-relay/e2e"
	"github.com/glizzus/radio-relay/internal/gateway/gatewaytest"
	"github.com/glizzus/radio-relay/internal/handler"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/session"
)

type determinsticIDGenerator struct{}

func (d *determinsticIDGenerator) Next() (string, error) {
	return "determinism", nil
}

var snowflakes = &e2e.RandomSnowFlakeGenerator{}

func newGuildID(t *testing.T) string {
	t.Helper()
	id, err := snowflakes.Next()
	if err != nil {
		t.Fatalf("failed to generate guild ID: %v", err)
	}
	return id
}

func slashCommand(guildID, userID, name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			Data:    discordgo.ApplicationCommandInteractionData{Name: name},
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
		},
	}
}

func inChannel(userID, channelID string) func(string) ([]*discordgo.VoiceState, error) {
	return func(guildID string) ([]*discordgo.VoiceState, error) {
		return []*discordgo.VoiceState{{GuildID: guildID, UserID: userID, ChannelID: channelID}}, nil
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition was not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func kindsOf(events []journal.Event) map[journal.Kind]bool {
	kinds := make(map[journal.Kind]bool)
	for _, e := range events {
		kinds[e.Kind] = true
	}
	return kinds
}

func editContent(s *mockSession) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Edit == nil || s.Edit.Content == nil {
		return ""
	}
	return *s.Edit.Content
}

func TestRadioRecoversFromStreamEnd(t *testing.T) {
	connStr := e2e.UsePostgres(t)
	events := e2e.GetPostgresJournal(t, connStr)
	radio := e2e.NewRadio(t, events)

	const (
		userID    = "100"
		channelID = "200"
	)
	guildID := newGuildID(t)
	h := handler.NewInteractionHandler(radio, inChannel(userID, channelID), &determinsticIDGenerator{})

	sess := &mockSession{}
	h(sess, slashCommand(guildID, userID, "radio"))

	if got, want := editContent(sess), "🎵 Now playing the radio in <#200>."; got != want {
		t.Fatalf("radio reply = %q, want %q", got, want)
	}
	if got := radio.Status(guildID).State; got != session.Streaming {
		t.Fatalf("state = %s, want streaming", got)
	}

	radio.Streams.End(0)

	eventually(t, func() bool {
		return radio.Streams.Opened() == 2 && radio.Status(guildID).State == session.Streaming
	})
	if got := radio.Gateway.Dials(guildID); got != 1 {
		t.Errorf("dialed %d times, want the connection to be reused", got)
	}

	var recorded []journal.Event
	eventually(t, func() bool {
		var err error
		recorded, err = events.List(t.Context(), guildID, 20)
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		return kindsOf(recorded)[journal.KindReconnected]
	})

	want := map[journal.Kind]bool{
		journal.KindRadioStarted:    true,
		journal.KindStreamEnded:     true,
		journal.KindRecoveryStarted: true,
		journal.KindAttempt:         true,
		journal.KindReconnected:     true,
	}
	if diff := cmp.Diff(want, kindsOf(recorded)); diff != "" {
		t.Errorf("recorded kinds mismatch (-want +got):\n%s", diff)
	}

	stop := &mockSession{}
	h(stop, slashCommand(guildID, userID, "stop"))
	if got, want := editContent(stop), "Stopped the radio and disconnected."; got != want {
		t.Errorf("stop reply = %q, want %q", got, want)
	}
	if radio.Gateway.IsConnected(guildID) {
		t.Error("guild is still connected after stop")
	}
	if got := radio.Gateway.Count(gatewaytest.OpDisconnect, guildID); got != 1 {
		t.Errorf("disconnected %d times, want 1", got)
	}
}

func TestRadioStatusReportsAutoConnect(t *testing.T) {
	connStr := e2e.UsePostgres(t)
	radio := e2e.NewRadio(t, e2e.GetPostgresJournal(t, connStr))

	guildID := newGuildID(t)
	radio.SetAutoChannel(guildID, "300")
	if err := radio.SetAutoConnect(guildID, true); err != nil {
		t.Fatalf("SetAutoConnect() error = %v", err)
	}

	sess := &mockSession{}
	h := handler.NewInteractionHandler(radio, inChannel("100", ""), &determinsticIDGenerator{})
	h(sess, slashCommand(guildID, "100", "status"))

	if sess.Resp == nil || sess.Resp.Data == nil {
		t.Fatal("expected a status response")
	}
	want := "**Radio status:** ⏹️ Idle\nConnected: no · Playing: no\nAuto-connect: on (<#300>)"
	if got := sess.Resp.Data.Content; got != want {
		t.Errorf("status = %q, want %q", got, want)
	}
}
