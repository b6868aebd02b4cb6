package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/presenters"
	"github.com/glizzus/radio-relay/internal/supervisor"
	"github.com/glizzus/radio-relay/internal/util"
	"github.com/glizzus/radio-relay/internal/voice"
)

// Radio is the supervisor API commands are served by.
type Radio interface {
	Join(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error)
	StartRadio(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error)
	Stop(ctx context.Context, guildID string) (supervisor.Outcome, error)
	Status(guildID string) supervisor.Status
	SetAutoChannel(guildID, channelID string)
	SetAutoConnect(guildID string, enabled bool) error
}

var _ Radio = (*supervisor.Supervisor)(nil)

// ChannelLookup resolves a channel by ID, usually from the state cache.
type ChannelLookup func(channelID string) (*discordgo.Channel, error)

type radioFunc func(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error)

// radioCommands holds the behaviour shared by slash and prefix commands.
type radioCommands struct {
	radio    Radio
	states   voice.States
	channels ChannelLookup
	timeout  time.Duration
	logger   *slog.Logger
}

func (c *radioCommands) callerChannel(guildID, userID string) (string, error) {
	if c.states == nil {
		return "", ErrNotInVoice
	}
	states, err := c.states(guildID)
	if err != nil {
		c.logger.Warn("Failed to read voice states", "guildID", guildID, "error", err)
		return "", ErrNotInVoice
	}
	channelID, ok := voice.ChannelOf(states, userID)
	if !ok {
		return "", ErrNotInVoice
	}
	return channelID, nil
}

// busiestChannel returns the voice channel with the most people in it, or ""
// if nobody is in voice.
func (c *radioCommands) busiestChannel(guildID string) string {
	if c.states == nil {
		return ""
	}
	states, err := c.states(guildID)
	if err != nil {
		return ""
	}
	return voice.MaxAttendedChannel(states, "")
}

func (c *radioCommands) run(name string, fn radioFunc, guildID, channelID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	out, err := fn(ctx, guildID, channelID)
	if err != nil {
		c.logger.Warn("Radio command failed", "command", name, "guildID", guildID, "channelID", channelID, "error", err)
	} else {
		c.logger.Info("Radio command finished", "command", name, "guildID", guildID, "outcome", out.Code.String())
	}
	return presenters.OutcomeMessage(out, err)
}

func (c *radioCommands) join(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error) {
	return c.radio.Join(ctx, guildID, channelID)
}

func (c *radioCommands) start(ctx context.Context, guildID, channelID string) (supervisor.Outcome, error) {
	return c.radio.StartRadio(ctx, guildID, channelID)
}

func (c *radioCommands) stop(ctx context.Context, guildID, _ string) (supervisor.Outcome, error) {
	return c.radio.Stop(ctx, guildID)
}

// checkChannel verifies channelID is a voice channel in guildID. Without a
// lookup every channel is accepted.
func (c *radioCommands) checkChannel(guildID, channelID string) error {
	if c.channels == nil {
		return nil
	}
	ch, err := c.channels(channelID)
	if err != nil {
		return ErrNotVoiceChannel
	}
	if ch.GuildID != guildID || !isVoiceChannel(ch.Type) {
		return ErrNotVoiceChannel
	}
	return nil
}

func (c *radioCommands) setChannel(guildID, channelID string) (string, error) {
	if channelID == "" {
		return "", ErrNotVoiceChannel
	}
	c.radio.SetAutoChannel(guildID, channelID)
	if err := c.radio.SetAutoConnect(guildID, true); err != nil {
		return "", fmt.Errorf("failed to enable auto-connect: %w", err)
	}
	c.logger.Info("Auto-connect channel set", "guildID", guildID, "channelID", channelID)
	return presenters.AutoChannelSetMessage(channelID), nil
}

// autoConnect changes the setting, or only describes it when enabled is nil.
func (c *radioCommands) autoConnect(guildID string, enabled *bool) (string, error) {
	if enabled != nil {
		if err := c.radio.SetAutoConnect(guildID, *enabled); err != nil {
			return "", ErrNoAutoChannel
		}
		c.logger.Info("Auto-connect changed", "guildID", guildID, "enabled", *enabled)
	}
	return presenters.AutoConnectMessage(c.radio.Status(guildID)), nil
}

// channelIDFromMention accepts "<#123>" as well as a bare "123".
func channelIDFromMention(s string) string {
	s = strings.TrimPrefix(s, "<#")
	return strings.TrimSuffix(s, ">")
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondUserError(s DiscordSession, i *discordgo.InteractionCreate, err error) error {
	var userErr *UserError
	if !errors.As(err, &userErr) {
		return err
	}
	return s.InteractionRespond(i.Interaction, presenters.BuildEphemeralResponse(userErr.Message))
}

func guildOnly(h func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error) func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error {
	return func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
		if i.GuildID == "" {
			return respondUserError(s, i, ErrGuildOnly)
		}
		return h(s, i, ctx)
	}
}

// commandFlow defers the response, runs fn, then fills the response in.
func (c *radioCommands) commandFlow(name string, fn radioFunc, needsVoice bool) *Flow {
	return &Flow{
		ID: name,
		Root: &Node{
			ID:      name,
			Matcher: commandMatcher(name),
			Handler: guildOnly(func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
				var channelID string
				if needsVoice {
					id, err := c.callerChannel(i.GuildID, interactionUserID(i))
					if err != nil {
						return respondUserError(s, i, err)
					}
					channelID = id
				}

				if err := s.InteractionRespond(i.Interaction, presenters.BuildDeferredResponse()); err != nil {
					return fmt.Errorf("failed to defer %s response: %w", name, err)
				}

				content := c.run(name, fn, i.GuildID, channelID)
				if _, err := s.InteractionResponseEdit(i.Interaction, presenters.BuildEdit(content)); err != nil {
					return fmt.Errorf("failed to edit %s response: %w", name, err)
				}
				return nil
			}),
		},
	}
}

const statusChannelKey = "channelID"

func (c *radioCommands) statusButton(prefix string, fn radioFunc) *Node {
	return &Node{
		ID:      prefix,
		Matcher: componentMatcher(prefix),
		Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
			channelID, _ := ctx.State[statusChannelKey].(string)
			if channelID == "" && prefix == presenters.ComponentIDRadioRestart {
				id, err := c.callerChannel(i.GuildID, interactionUserID(i))
				if err != nil {
					id = c.busiestChannel(i.GuildID)
				}
				if id == "" {
					return respondUserError(s, i, err)
				}
				channelID = id
			}

			if err := s.InteractionRespond(i.Interaction, presenters.BuildDeferredUpdate()); err != nil {
				return fmt.Errorf("failed to defer %s update: %w", prefix, err)
			}

			content := c.run(prefix, fn, i.GuildID, channelID)
			if _, err := s.InteractionResponseEdit(i.Interaction, presenters.BuildStatusEdit(content)); err != nil {
				return fmt.Errorf("failed to edit status message: %w", err)
			}
			return nil
		},
	}
}

func (c *radioCommands) statusFlow() *Flow {
	return &Flow{
		ID: "status",
		Root: &Node{
			ID:      "status",
			Matcher: commandMatcher("status"),
			Handler: guildOnly(func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
				status := c.radio.Status(i.GuildID)
				ctx.State[statusChannelKey] = status.ChannelID
				return s.InteractionRespond(i.Interaction, presenters.BuildStatusResponse(status, ctx.InstanceID))
			}),
			Next: []*Node{
				c.statusButton(presenters.ComponentIDRadioRestart, c.start),
				c.statusButton(presenters.ComponentIDRadioStop, c.stop),
			},
		},
	}
}

// expiredStatusFlow answers buttons whose status flow is no longer known,
// such as those sent before a restart.
var expiredStatusFlow = &Flow{
	ID: "status_expired",
	Root: &Node{
		ID: "status_expired",
		Matcher: func(i *discordgo.InteractionCreate) bool {
			return componentMatcher(presenters.ComponentIDRadioRestart)(i) ||
				componentMatcher(presenters.ComponentIDRadioStop)(i)
		},
		Handler: func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
			return s.InteractionRespond(i.Interaction, presenters.BuildEphemeralResponse("This status message has expired. Run /status again."))
		},
	},
}

func (c *radioCommands) setChannelFlow() *Flow {
	return &Flow{
		ID: "setchannel",
		Root: &Node{
			ID:      "setchannel",
			Matcher: commandMatcher("setchannel"),
			Handler: guildOnly(func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
				data := i.ApplicationCommandData()

				var channelID string
				if opt, ok := findOption(data.Options, "channel"); ok {
					channelID, _ = opt.Value.(string)
					if data.Resolved != nil {
						if ch, err := util.GetOne(data.Resolved.Channels); err == nil && !isVoiceChannel(ch.Type) {
							return respondUserError(s, i, ErrNotVoiceChannel)
						}
					}
				} else {
					id, err := c.callerChannel(i.GuildID, interactionUserID(i))
					if err != nil {
						return respondUserError(s, i, err)
					}
					channelID = id
				}

				content, err := c.setChannel(i.GuildID, channelID)
				if err != nil {
					return respondUserError(s, i, err)
				}
				return s.InteractionRespond(i.Interaction, presenters.BuildMessageResponse(content))
			}),
		},
	}
}

func (c *radioCommands) autoConnectFlow() *Flow {
	return &Flow{
		ID: "autoconnect",
		Root: &Node{
			ID:      "autoconnect",
			Matcher: commandMatcher("autoconnect"),
			Handler: guildOnly(func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
				var enabled *bool
				if opt, ok := findOption(i.ApplicationCommandData().Options, "enabled"); ok {
					if v, ok := opt.Value.(bool); ok {
						enabled = &v
					}
				}

				content, err := c.autoConnect(i.GuildID, enabled)
				if err != nil {
					return respondUserError(s, i, err)
				}
				return s.InteractionRespond(i.Interaction, presenters.BuildMessageResponse(content))
			}),
		},
	}
}

func (c *radioCommands) flows() []*Flow {
	return []*Flow{
		c.commandFlow("join", c.join, true),
		c.commandFlow("radio", c.start, true),
		c.commandFlow("stop", c.stop, false),
		c.statusFlow(),
		expiredStatusFlow,
		c.setChannelFlow(),
		c.autoConnectFlow(),
	}
}
