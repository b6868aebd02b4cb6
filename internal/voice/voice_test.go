package voice_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/voice"
)

const self = "bot-self"

func states() []*discordgo.VoiceState {
	return []*discordgo.VoiceState{
		{UserID: "u1", ChannelID: "a"},
		{UserID: "u2", ChannelID: "b"},
		{UserID: "u3", ChannelID: "b"},
		{UserID: self, ChannelID: "a"},
		{UserID: "music", ChannelID: "a", Member: &discordgo.Member{User: &discordgo.User{ID: "music", Bot: true}}},
		{UserID: "u4", ChannelID: ""},
	}
}

func TestChannelOf(t *testing.T) {
	tc := []struct {
		name   string
		userID string
		want   string
		found  bool
	}{
		{name: "in voice", userID: "u2", want: "b", found: true},
		{name: "disconnected state", userID: "u4", want: "", found: false},
		{name: "unknown user", userID: "nobody", want: "", found: false},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			got, found := voice.ChannelOf(states(), test.userID)
			if got != test.want || found != test.found {
				t.Errorf("ChannelOf(%q) = (%q, %v), want (%q, %v)", test.userID, got, found, test.want, test.found)
			}
		})
	}
}

func TestHumansIn(t *testing.T) {
	tc := []struct {
		channelID string
		want      int
	}{
		{channelID: "a", want: 1},
		{channelID: "b", want: 2},
		{channelID: "c", want: 0},
	}

	for _, test := range tc {
		if got := voice.HumansIn(states(), test.channelID, self); got != test.want {
			t.Errorf("HumansIn(%q) = %d, want %d", test.channelID, got, test.want)
		}
	}
}

func TestMaxAttendedChannel(t *testing.T) {
	if got := voice.MaxAttendedChannel(states(), self); got != "b" {
		t.Errorf("MaxAttendedChannel() = %q, want b", got)
	}

	onlyBots := []*discordgo.VoiceState{{UserID: self, ChannelID: "a"}}
	if got := voice.MaxAttendedChannel(onlyBots, self); got != "" {
		t.Errorf("MaxAttendedChannel() = %q, want empty", got)
	}

	tie := []*discordgo.VoiceState{{UserID: "x", ChannelID: "z"}, {UserID: "y", ChannelID: "m"}}
	if got := voice.MaxAttendedChannel(tie, self); got != "m" {
		t.Errorf("MaxAttendedChannel() = %q, want m on a tie", got)
	}
}

func TestFromState(t *testing.T) {
	state := discordgo.NewState()
	guild := &discordgo.Guild{ID: "g", VoiceStates: states()}
	if err := state.GuildAdd(guild); err != nil {
		t.Fatalf("GuildAdd returned error: %v", err)
	}

	got, err := voice.FromState(state)("g")
	if err != nil {
		t.Fatalf("FromState returned error: %v", err)
	}
	if len(got) != len(states()) {
		t.Errorf("got %d voice states, want %d", len(got), len(states()))
	}

	if _, err := voice.FromState(state)("missing"); err == nil {
		t.Error("expected error for a guild not in the cache")
	}
}
