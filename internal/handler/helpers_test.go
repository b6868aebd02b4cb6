package handler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/handler"
	"github.com/glizzus/radio-relay/internal/supervisor"
)

type mockSession struct {
	mu        sync.Mutex
	Responses []*discordgo.InteractionResponse
	Edits     []*discordgo.WebhookEdit
}

func (m *mockSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return nil
}

func (m *mockSession) InteractionResponseEdit(i *discordgo.Interaction, wh *discordgo.WebhookEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, wh)
	return &discordgo.Message{}, nil
}

var _ handler.DiscordSession = (*mockSession)(nil)

type mockSender struct {
	Sent []string
}

func (m *mockSender) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.Sent = append(m.Sent, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

var _ handler.MessageSender = (*mockSender)(nil)

// fakeRadio records calls and answers like a supervisor whose connections
// always succeed.
type fakeRadio struct {
	mu          sync.Mutex
	calls       []string
	autoChannel map[string]string
	autoConnect map[string]bool
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{autoChannel: make(map[string]string), autoConnect: make(map[string]bool)}
}

func (r *fakeRadio) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *fakeRadio) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRadio) Join(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error) {
	r.record("join %s %s", guildID, channelID)
	return supervisor.Outcome{Code: supervisor.Joined, GuildID: guildID, ChannelID: channelID}, nil
}

func (r *fakeRadio) StartRadio(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error) {
	r.record("radio %s %s", guildID, channelID)
	return supervisor.Outcome{Code: supervisor.Started, GuildID: guildID, ChannelID: channelID}, nil
}

func (r *fakeRadio) Stop(ctx context.Context, guildID string) (supervisor.Outcome, error) {
	r.record("stop %s", guildID)
	return supervisor.Outcome{Code: supervisor.Stopped, GuildID: guildID}, nil
}

func (r *fakeRadio) Status(guildID string) supervisor.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return supervisor.Status{
		GuildID:       guildID,
		MaxAttempts:   5,
		AutoChannelID: r.autoChannel[guildID],
		AutoConnect:   r.autoConnect[guildID],
	}
}

func (r *fakeRadio) SetAutoChannel(guildID, channelID string) {
	r.record("setchannel %s %s", guildID, channelID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoChannel[guildID] = channelID
}

func (r *fakeRadio) SetAutoConnect(guildID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled && r.autoChannel[guildID] == "" {
		return errors.New("no auto channel")
	}
	r.autoConnect[guildID] = enabled
	return nil
}

var _ handler.Radio = (*fakeRadio)(nil)

type determinsticIDGenerator struct{}

func (d *determinsticIDGenerator) Next() (string, error) {
	return "determinism", nil
}

const (
	testGuild   = "74241007174813750"
	testUser    = "100"
	testChannel = "42"
)

// userIn puts testUser in channelID. An empty channelID leaves them out of
// voice.
func userIn(channelID string) func(string) ([]*discordgo.VoiceState, error) {
	return func(guildID string) ([]*discordgo.VoiceState, error) {
		if channelID == "" {
			return nil, nil
		}
		return []*discordgo.VoiceState{{GuildID: guildID, UserID: testUser, ChannelID: channelID}}, nil
	}
}

func command(guildID, name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: testUser}},
		},
	}
}

func button(guildID, customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.ButtonComponent,
			},
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: testUser}},
		},
	}
}

func message(guildID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: "text",
			GuildID:   guildID,
			Content:   content,
			Author:    &discordgo.User{ID: testUser},
		},
	}
}
