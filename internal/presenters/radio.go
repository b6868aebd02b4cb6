package presenters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/audio"
	"github.com/glizzus/radio-relay/internal/gateway"
	"github.com/glizzus/radio-relay/internal/session"
	"github.com/glizzus/radio-relay/internal/supervisor"
)

const (
	ComponentIDRadioRestart = "radio_restart"
	ComponentIDRadioStop    = "radio_stop"
)

// OutcomeMessage renders the reply to join, radio and stop.
func OutcomeMessage(out supervisor.Outcome, err error) string {
	var msg string
	if err != nil {
		msg = ErrorMessage(err)
	} else {
		switch out.Code {
		case supervisor.Joined:
			msg = fmt.Sprintf("Joined <#%s>.", out.ChannelID)
		case supervisor.Started:
			msg = fmt.Sprintf("🎵 Now playing the radio in <#%s>.", out.ChannelID)
		case supervisor.AlreadyPlaying:
			msg = fmt.Sprintf("The radio is already playing in <#%s>.", out.ChannelID)
		case supervisor.Stopped:
			msg = "Stopped the radio and disconnected."
		case supervisor.NotConnected:
			msg = "I'm not in a voice channel."
		case supervisor.Interrupted:
			msg = "The radio was stopped before it could start."
		default:
			msg = "Something went wrong."
		}
	}

	if out.Notice != "" {
		msg = fmt.Sprintf("⚠️ %s\n%s", noticeMessage(out.Notice), msg)
	}
	return msg
}

func noticeMessage(notice string) string {
	return "While you were away: " + notice + "."
}

// ErrorMessage turns a supervisor error into something a user can act on.
func ErrorMessage(err error) string {
	var (
		stale     *gateway.StaleSessionError
		conn      *gateway.ConnectError
		ended     *audio.StreamEndedError
		exhausted *supervisor.AttemptsExhaustedError
	)
	switch {
	case errors.Is(err, supervisor.ErrShuttingDown):
		return "I'm restarting, try again in a moment."
	case errors.As(err, &stale):
		return "Discord rejected the voice session. I'll keep trying in the background."
	case errors.As(err, &conn):
		return "I couldn't connect to the voice channel. I'll keep trying in the background."
	case errors.As(err, &ended):
		return "The radio stream couldn't be started. I'll keep trying in the background."
	case errors.As(err, &exhausted):
		return fmt.Sprintf("I gave up reconnecting after %d attempts. Use /radio to try again.", exhausted.Attempts)
	default:
		return "Something went wrong."
	}
}

var stateLabels = map[session.State]string{
	session.Idle:       "⏹️ Idle",
	session.Connecting: "🔌 Connecting",
	session.Streaming:  "🎵 Streaming",
	session.Recovering: "🔁 Recovering",
	session.GivenUp:    "🛑 Gave up",
}

// StatusMessage renders a guild's status.
func StatusMessage(s supervisor.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Radio status:** %s\n", stateLabels[s.State])
	if s.ChannelID != "" {
		fmt.Fprintf(&b, "Channel: <#%s>\n", s.ChannelID)
	}
	fmt.Fprintf(&b, "Connected: %s · Playing: %s\n", yesNo(s.Connected), yesNo(s.Playing))
	if s.Recovering || s.Attempts > 0 {
		fmt.Fprintf(&b, "Reconnect attempts: %d/%d\n", s.Attempts, s.MaxAttempts)
	}

	auto := "off"
	if s.AutoConnect {
		auto = "on"
	}
	if s.AutoChannelID != "" {
		fmt.Fprintf(&b, "Auto-connect: %s (<#%s>)", auto, s.AutoChannelID)
	} else {
		fmt.Fprintf(&b, "Auto-connect: %s", auto)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func statusComponents(instanceID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Restart",
					Style:    discordgo.PrimaryButton,
					CustomID: ComponentIDRadioRestart + ":" + instanceID,
				},
				discordgo.Button{
					Label:    "Stop",
					Style:    discordgo.DangerButton,
					CustomID: ComponentIDRadioStop + ":" + instanceID,
				},
			},
		},
	}
}

// BuildStatusResponse shows a guild's status with restart and stop buttons
// bound to the flow instance.
func BuildStatusResponse(s supervisor.Status, instanceID string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    StatusMessage(s),
			Components: statusComponents(instanceID),
		},
	}
}

// BuildDeferredUpdate acknowledges a button press whose answer comes later.
func BuildDeferredUpdate() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}
}

// BuildStatusEdit replaces a status message once one of its buttons has been
// used. The buttons are removed.
func BuildStatusEdit(content string) *discordgo.WebhookEdit {
	return &discordgo.WebhookEdit{
		Content:    &content,
		Components: &[]discordgo.MessageComponent{},
	}
}

// BuildDeferredResponse acknowledges a command whose answer comes later.
func BuildDeferredResponse() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
}

func BuildMessageResponse(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}
}

func BuildEphemeralResponse(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// BuildEdit fills in a deferred response.
func BuildEdit(content string) *discordgo.WebhookEdit {
	return &discordgo.WebhookEdit{Content: &content}
}

func AutoChannelSetMessage(channelID string) string {
	return fmt.Sprintf("Auto-connect channel set to <#%s>. Auto-connect is on.", channelID)
}

// AutoConnectMessage describes a guild's auto-connect setting.
func AutoConnectMessage(s supervisor.Status) string {
	switch {
	case s.AutoChannelID == "":
		return "Auto-connect is off. Use /setchannel to pick a channel first."
	case s.AutoConnect:
		return fmt.Sprintf("Auto-connect is on for <#%s>.", s.AutoChannelID)
	default:
		return fmt.Sprintf("Auto-connect is off. The channel is <#%s>.", s.AutoChannelID)
	}
}
