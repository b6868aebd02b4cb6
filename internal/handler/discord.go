package handler

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/generator"
	"github.com/glizzus/radio-relay/internal/voice"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionHandler = func(DiscordSession, *discordgo.InteractionCreate)
type MessageHandler = func(MessageSender, *discordgo.MessageCreate)
type VoiceStateUpdateHandler = func(*discordgo.Session, *discordgo.VoiceStateUpdate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID, "guilds", len(r.Guilds))
}

const defaultCommandTimeout = 30 * time.Second

type options struct {
	throttle       *Throttle
	channels       ChannelLookup
	commandTimeout time.Duration
	logger         *slog.Logger
}

type Option func(*options)

// WithThrottle rate limits commands per guild.
func WithThrottle(t *Throttle) Option {
	return func(o *options) { o.throttle = t }
}

// WithChannels lets commands that take a channel ID check it.
func WithChannels(lookup ChannelLookup) Option {
	return func(o *options) { o.channels = lookup }
}

// WithCommandTimeout bounds how long a single radio command may take.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) { o.commandTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newRadioCommands(radio Radio, states voice.States, opts []Option) (*radioCommands, *options) {
	o := &options{
		commandTimeout: defaultCommandTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &radioCommands{
		radio:    radio,
		states:   states,
		channels: o.channels,
		timeout:  o.commandTimeout,
		logger:   o.logger.With("component", "handler"),
	}, o
}

// NewInteractionHandler routes slash commands and button presses to their
// flows. idGenerator names flow instances.
func NewInteractionHandler(
	radio Radio,
	states voice.States,
	idGenerator generator.Generator[string],
	opts ...Option,
) InteractionHandler {
	commands, o := newRadioCommands(radio, states, opts)

	fm := NewFlowManager(idGenerator)
	fm.RegisterFlow(PingFlow)
	for _, flow := range commands.flows() {
		fm.RegisterFlow(flow)
	}

	return func(s DiscordSession, i *discordgo.InteractionCreate) {
		if i.GuildID != "" && !o.throttle.Allow(i.GuildID) {
			if err := respondUserError(s, i, ErrSlowDown); err != nil {
				commands.logger.Warn("Failed to respond to throttled interaction", "guildID", i.GuildID, "error", err)
			}
			return
		}

		if err := fm.Router(s, i); err != nil {
			commands.logger.Error("Failed to handle interaction", "type", i.Type.String(), "guildID", i.GuildID, "error", err)
		}
	}
}

type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionHandler
	MessageCreate     MessageHandler
	VoiceStateUpdate  VoiceStateUpdateHandler
}

// Intents are the gateway events the bot needs: guilds and voice states for
// the state cache, and message content for prefix commands.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

// NewSession creates a session with the bot's intents and handlers. It does
// not open the gateway connection.
func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = Intents

	AddHandlers(s, handlers)
	return s, nil
}

// AddHandlers registers every non-nil handler on s.
func AddHandlers(s *discordgo.Session, handlers Handlers) {
	if handlers.Ready != nil {
		s.AddHandler(handlers.Ready)
	}
	if handlers.InteractionCreate != nil {
		s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handlers.InteractionCreate(s, i)
		})
	}
	if handlers.MessageCreate != nil {
		s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			handlers.MessageCreate(s, m)
		})
	}
	if handlers.VoiceStateUpdate != nil {
		s.AddHandler(handlers.VoiceStateUpdate)
	}
}
