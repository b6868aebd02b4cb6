package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/presenters"
	"github.com/glizzus/radio-relay/internal/voice"
)

// MessageSender is the part of a discordgo session prefix commands reply
// through.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ MessageSender = (*discordgo.Session)(nil)

const autoConnectUsage = "Usage: %sautoconnect on|off"

// NewMessageHandler serves the text commands: join, radio, stop, status,
// setchannel <channel> and autoconnect [on|off], each behind prefix.
// Messages from bots and outside guilds are ignored.
func NewMessageHandler(radio Radio, states voice.States, prefix string, opts ...Option) MessageHandler {
	commands, o := newRadioCommands(radio, states, opts)

	return func(s MessageSender, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.GuildID == "" {
			return
		}
		name, args, ok := parseCommand(m.Content, prefix)
		if !ok {
			return
		}

		var (
			content string
			err     error
		)
		switch name {
		case "ping":
			content = "Pong!"
		case "join", "radio", "stop", "status", "setchannel", "autoconnect":
			if !o.throttle.Allow(m.GuildID) {
				err = ErrSlowDown
				break
			}
			content, err = commands.message(name, args, prefix, m)
		default:
			return
		}

		var userErr *UserError
		if errors.As(err, &userErr) {
			content = userErr.Message
		} else if err != nil {
			commands.logger.Error("Failed to handle message command", "command", name, "guildID", m.GuildID, "error", err)
			return
		}

		if _, err := s.ChannelMessageSend(m.ChannelID, content); err != nil {
			commands.logger.Warn("Failed to reply to message command", "command", name, "channelID", m.ChannelID, "error", err)
		}
	}
}

func parseCommand(content, prefix string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (c *radioCommands) message(name string, args []string, prefix string, m *discordgo.MessageCreate) (string, error) {
	switch name {
	case "join", "radio":
		channelID, err := c.callerChannel(m.GuildID, m.Author.ID)
		if err != nil {
			return "", err
		}
		fn := c.join
		if name == "radio" {
			fn = c.start
		}
		return c.run(name, fn, m.GuildID, channelID), nil
	case "stop":
		return c.run(name, c.stop, m.GuildID, ""), nil
	case "status":
		return presenters.StatusMessage(c.radio.Status(m.GuildID)), nil
	case "setchannel":
		var channelID string
		if len(args) > 0 {
			channelID = channelIDFromMention(args[0])
			if err := c.checkChannel(m.GuildID, channelID); err != nil {
				return "", err
			}
		} else {
			id, err := c.callerChannel(m.GuildID, m.Author.ID)
			if err != nil {
				return "", err
			}
			channelID = id
		}
		return c.setChannel(m.GuildID, channelID)
	case "autoconnect":
		if len(args) == 0 {
			return c.autoConnect(m.GuildID, nil)
		}
		var enabled bool
		switch strings.ToLower(args[0]) {
		case "on", "true", "enable":
			enabled = true
		case "off", "false", "disable":
			enabled = false
		default:
			return "", &UserError{Message: fmt.Sprintf(autoConnectUsage, prefix)}
		}
		return c.autoConnect(m.GuildID, &enabled)
	}
	return "", nil
}
