package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glizzus/radio-relay/internal/audio"
	"github.com/glizzus/radio-relay/internal/config"
	"github.com/glizzus/radio-relay/internal/gateway"
	"github.com/glizzus/radio-relay/internal/generator"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/session"
)

// AudioSource plays one stream per guild. *audio.Manager implements it.
type AudioSource interface {
	Start(conn gateway.Connection, url string, onComplete func(error)) error
	Stop(guildID string)
	IsPlaying(guildID string) bool
}

var _ AudioSource = (*audio.Manager)(nil)

type Config struct {
	StreamURL   string
	MaxAttempts int
	BackoffBase time.Duration
	StalePause  time.Duration
	// JournalTimeout bounds each journal write.
	JournalTimeout time.Duration
}

func ConfigFromRadio(c *config.RadioConfig) Config {
	return Config{
		StreamURL:      c.StreamURL,
		MaxAttempts:    c.MaxReconnectAttempts,
		BackoffBase:    c.ReconnectBackoffBase,
		StalePause:     c.StaleSessionPause,
		JournalTimeout: 2 * time.Second,
	}
}

type Supervisor struct {
	cfg      Config
	sessions *session.Store
	gateway  gateway.Gateway
	audio    AudioSource
	journal  journal.Recorder
	logger   *slog.Logger

	sleep     SleepFunc
	now       func() time.Time
	eventIDs  generator.Generator[string]
	sequences *generator.SequenceGenerator

	tasks *taskGroup
}

type Option func(*Supervisor)

func WithJournal(r journal.Recorder) Option {
	return func(s *Supervisor) { s.journal = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithSleep replaces the backoff and stale-session waits.
func WithSleep(fn SleepFunc) Option {
	return func(s *Supervisor) { s.sleep = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

func WithEventIDs(g generator.Generator[string]) Option {
	return func(s *Supervisor) { s.eventIDs = g }
}

func New(cfg Config, sessions *session.Store, gw gateway.Gateway, src AudioSource, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:       cfg,
		sessions:  sessions,
		gateway:   gw,
		audio:     src,
		journal:   journal.Nop{},
		logger:    slog.Default(),
		sleep:     sleepContext,
		now:       time.Now,
		eventIDs:  &generator.UUIDV4Generator{},
		sequences: &generator.SequenceGenerator{Prefix: "recovery"},
		tasks:     newTaskGroup(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.JournalTimeout <= 0 {
		s.cfg.JournalTimeout = 2 * time.Second
	}
	s.logger = s.logger.With("component", "supervisor")
	return s
}

// Sessions is the store the supervisor acts on.
func (s *Supervisor) Sessions() *session.Store {
	return s.sessions
}

// Join connects the bot to channelID without starting the radio. If the
// radio is wanted in the guild but silent, it is started on the new
// connection. Join also clears a GivenUp guild.
func (s *Supervisor) Join(ctx context.Context, guildID, channelID string) (Outcome, error) {
	out := Outcome{Code: Failed, GuildID: guildID, ChannelID: channelID}
	if s.tasks.closed() {
		return out, ErrShuttingDown
	}

	g := s.sessions.Ensure(guildID)
	out.Notice = g.TakeNotice()
	g.ClearGivenUp()
	g.SetTargetChannel(channelID)

	if err := g.LockConn(ctx); err != nil {
		return out, &gateway.ConnectError{GuildID: guildID, ChannelID: channelID, Err: err}
	}
	conn, err := s.gateway.ConnectOrMove(ctx, guildID, channelID)
	if err != nil {
		g.UnlockConn()
		s.logger.Warn("Failed to join voice channel", "guildID", guildID, "channelID", channelID, "error", err)
		s.record(g, journal.KindJoin, 0, 0, err.Error())
		return out, err
	}

	var streamErr error
	if g.IsActive() && !s.audio.IsPlaying(guildID) {
		streamErr = s.startStream(g, conn)
	}
	g.UnlockConn()

	s.record(g, journal.KindJoin, 0, 0, "")
	out.Code = Joined
	if streamErr != nil {
		s.logger.Warn("Joined but the radio did not start", "guildID", guildID, "error", streamErr)
		g.SetStateIfActive(session.Recovering)
		s.Reconnect(guildID)
	}
	return out, nil
}

// StartRadio marks the radio as wanted in channelID and connects and
// streams once. The result is reported synchronously; if it fails the guild
// stays active and a recovery sequence takes over in the background.
func (s *Supervisor) StartRadio(ctx context.Context, guildID, channelID string) (Outcome, error) {
	return s.startRadio(ctx, guildID, channelID, false)
}

// AutoStartRadio is StartRadio on behalf of auto-connect rather than a user.
// It leaves any pending notice for the next user interaction.
func (s *Supervisor) AutoStartRadio(ctx context.Context, guildID, channelID string) (Outcome, error) {
	return s.startRadio(ctx, guildID, channelID, true)
}

func (s *Supervisor) startRadio(ctx context.Context, guildID, channelID string, byAuto bool) (Outcome, error) {
	out := Outcome{Code: Failed, GuildID: guildID, ChannelID: channelID}
	if s.tasks.closed() {
		return out, ErrShuttingDown
	}

	g := s.sessions.Ensure(guildID)
	if !byAuto {
		out.Notice = g.TakeNotice()
	}

	if g.IsActive() && g.TargetChannel() == channelID && s.gateway.IsConnected(guildID) && s.audio.IsPlaying(guildID) {
		g.ResetAttempts()
		out.Code = AlreadyPlaying
		return out, nil
	}

	g.Activate(channelID, byAuto)
	s.logger.Info("Starting radio", "guildID", guildID, "channelID", channelID, "auto", byAuto)

	err := s.connectAndStream(ctx, g)
	switch {
	case errors.Is(err, errDeactivated):
		out.Code = Interrupted
		return out, nil
	case err != nil:
		g.SetStateIfActive(session.Recovering)
		s.logger.Warn("Failed to start radio", "guildID", guildID, "channelID", channelID, "error", err)
		s.record(g, journal.KindRadioFailed, 0, 0, err.Error())
		s.Reconnect(guildID)
		return out, err
	}

	s.record(g, journal.KindRadioStarted, 0, 0, "")
	out.Code = Started
	return out, nil
}

// Stop ends the relay in the guild. It wins over any attempt in flight.
func (s *Supervisor) Stop(ctx context.Context, guildID string) (Outcome, error) {
	out := Outcome{Code: Stopped, GuildID: guildID}

	g := s.sessions.Ensure(guildID)
	out.Notice = g.TakeNotice()
	out.ChannelID = g.TargetChannel()
	wasActive := g.Deactivate()

	if err := g.LockConn(ctx); err != nil {
		// Whatever holds the lock sees the guild inactive and tears itself down.
		s.logger.Warn("Stop did not get the connection lock in time", "guildID", guildID, "error", err)
		s.record(g, journal.KindStopped, 0, 0, err.Error())
		return out, nil
	}
	connected := s.gateway.IsConnected(guildID)
	playing := s.audio.IsPlaying(guildID)
	s.audio.Stop(guildID)
	s.gateway.ForceDisconnect(guildID)
	g.UnlockConn()

	if !wasActive && !connected && !playing {
		out.Code = NotConnected
		return out, nil
	}
	s.logger.Info("Stopped radio", "guildID", guildID)
	s.record(g, journal.KindStopped, 0, 0, "")
	return out, nil
}

// Status reports the guild's session and connection state.
func (s *Supervisor) Status(guildID string) Status {
	snap := s.sessions.Ensure(guildID).Snapshot()
	return Status{
		GuildID:       guildID,
		State:         snap.State,
		Active:        snap.Active,
		ChannelID:     snap.TargetChannelID,
		Attempts:      snap.Attempts,
		MaxAttempts:   s.cfg.MaxAttempts,
		Connected:     s.gateway.IsConnected(guildID),
		Playing:       s.audio.IsPlaying(guildID),
		Recovering:    snap.Recovering,
		AutoChannelID: snap.AutoChannelID,
		AutoConnect:   snap.AutoConnect,
	}
}

// SetAutoChannel designates channelID for auto-connect in the guild.
func (s *Supervisor) SetAutoChannel(guildID, channelID string) {
	s.sessions.Ensure(guildID).SetAutoChannel(channelID)
}

// SetAutoConnect turns auto-connect on or off. Turning it on requires an
// auto channel.
func (s *Supervisor) SetAutoConnect(guildID string, enabled bool) error {
	g := s.sessions.Ensure(guildID)
	if enabled && g.Snapshot().AutoChannelID == "" {
		return fmt.Errorf("guild %s has no auto channel", guildID)
	}
	g.SetAutoConnect(enabled)
	return nil
}

func (s *Supervisor) record(g *session.GuildSession, kind journal.Kind, attempt int, delay time.Duration, reason string) {
	id, err := s.eventIDs.Next()
	if err != nil {
		s.logger.Warn("Failed to generate event ID", "error", err)
	}
	e := journal.Event{
		ID:      id,
		GuildID: g.GuildID(),
		Kind:    kind,
		State:   g.State().String(),
		Attempt: attempt,
		Delay:   delay,
		Reason:  reason,
		At:      s.now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JournalTimeout)
	defer cancel()
	if err := s.journal.Record(ctx, e); err != nil {
		s.logger.Warn("Failed to record radio event", "guildID", e.GuildID, "kind", string(kind), "error", err)
	}
}
