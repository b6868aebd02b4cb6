// Package autoconnect starts the radio when people arrive in a guild's
// designated channel and stops it when the last of them leaves.
package autoconnect

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/session"
	"github.com/glizzus/radio-relay/internal/supervisor"
	"github.com/glizzus/radio-relay/internal/voice"
)

// Radio is the part of the supervisor auto-connect drives.
type Radio interface {
	AutoStartRadio(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error)
	Stop(ctx context.Context, guildID string) (supervisor.Outcome, error)
}

var _ Radio = (*supervisor.Supervisor)(nil)

type Controller struct {
	radio    Radio
	sessions *session.Store
	states   voice.States
	selfID   func() string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewController builds a controller. selfID returns the bot's own user ID,
// which is only known once the gateway is ready.
func NewController(radio Radio, sessions *session.Store, states voice.States, selfID func() string, timeout time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		radio:    radio,
		sessions: sessions,
		states:   states,
		selfID:   selfID,
		timeout:  timeout,
		logger:   logger.With("component", "autoconnect"),
	}
}

// OnVoiceStateUpdate reacts to a user joining or leaving a voice channel.
// The state cache must already reflect the update.
func (c *Controller) OnVoiceStateUpdate(ctx context.Context, update *discordgo.VoiceStateUpdate) {
	if update == nil || update.VoiceState == nil {
		return
	}
	if voice.IsBot(update.VoiceState, c.selfID()) {
		return
	}

	g, ok := c.sessions.Get(update.GuildID)
	if !ok {
		return
	}
	snap := g.Snapshot()
	if !snap.AutoConnect || snap.AutoChannelID == "" {
		return
	}

	before := ""
	if update.BeforeUpdate != nil {
		before = update.BeforeUpdate.ChannelID
	}
	after := update.ChannelID

	switch {
	case after == snap.AutoChannelID && before != snap.AutoChannelID && !snap.Active:
		c.start(ctx, snap.GuildID, snap.AutoChannelID, update.UserID)
	case before != "" && before == snap.TargetChannelID && after != before && snap.Active && snap.StartedByAuto:
		c.maybeStop(ctx, snap.GuildID, before)
	}
}

// Tick starts the radio in every auto-connect guild whose channel has
// people in it and no radio running.
func (c *Controller) Tick(ctx context.Context, at time.Time) {
	for _, g := range c.sessions.All() {
		snap := g.Snapshot()
		if !snap.AutoConnect || snap.AutoChannelID == "" || snap.Active {
			continue
		}
		states, err := c.states(snap.GuildID)
		if err != nil {
			c.logger.Warn("Unable to read voice states", "guildID", snap.GuildID, "error", err)
			continue
		}
		if voice.HumansIn(states, snap.AutoChannelID, c.selfID()) == 0 {
			continue
		}
		c.logger.Info("Scheduled auto-start", "guildID", snap.GuildID, "at", at)
		c.start(ctx, snap.GuildID, snap.AutoChannelID, "")
	}
}

func (c *Controller) start(ctx context.Context, guildID, channelID, userID string) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	c.logger.Info("Auto-starting radio", "guildID", guildID, "channelID", channelID, "userID", userID)
	out, err := c.radio.AutoStartRadio(ctx, guildID, channelID)
	if err != nil {
		c.logger.Warn("Auto-start failed", "guildID", guildID, "channelID", channelID, "error", err)
		return
	}
	c.logger.Debug("Auto-start finished", "guildID", guildID, "code", out.Code.String())
}

func (c *Controller) maybeStop(ctx context.Context, guildID, channelID string) {
	states, err := c.states(guildID)
	if err != nil {
		c.logger.Warn("Unable to read voice states", "guildID", guildID, "error", err)
		return
	}
	if voice.HumansIn(states, channelID, c.selfID()) > 0 {
		return
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	c.logger.Info("Channel is empty, stopping auto-started radio", "guildID", guildID, "channelID", channelID)
	if _, err := c.radio.Stop(ctx, guildID); err != nil {
		c.logger.Warn("Auto-stop failed", "guildID", guildID, "error", err)
	}
}

func (c *Controller) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
