package supervisor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/glizzus/radio-relay/internal/audio"
	"github.com/glizzus/radio-relay/internal/gateway"
	"github.com/glizzus/radio-relay/internal/generator"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/session"
)

// Reconnect starts a background recovery sequence for the guild. It reports
// false, and does nothing, if the guild is inactive, GivenUp, already
// recovering, or the supervisor is shutting down.
func (s *Supervisor) Reconnect(guildID string) bool {
	return s.reconnect(guildID, false)
}

// reconnect with queue set asks a sequence already in flight to run again
// once it is done, instead of dropping the trigger.
func (s *Supervisor) reconnect(guildID string, queue bool) bool {
	g, ok := s.sessions.Get(guildID)
	if !ok || !g.IsActive() || g.State() == session.GivenUp {
		return false
	}
	claim := g.BeginRecovery
	if queue {
		claim = g.QueueRecovery
	}
	if !claim() {
		s.logger.Debug("Recovery already in flight", "guildID", guildID, "queued", queue)
		return false
	}
	ok = s.tasks.spawn(func(ctx context.Context) {
		for {
			s.recover(ctx, g)
			if ctx.Err() != nil || !g.IsActive() || g.State() == session.GivenUp {
				g.EndRecovery()
				return
			}
			if !g.FinishRecovery() {
				return
			}
			s.logger.Info("Stream ended during recovery, recovering again", "guildID", guildID)
		}
	})
	if !ok {
		g.EndRecovery()
	}
	return ok
}

func (s *Supervisor) recover(ctx context.Context, g *session.GuildSession) {
	guildID := g.GuildID()
	logger := s.logger.With("guildID", guildID, "sequence", generator.Must[string](s.sequences))

	if !g.SetStateIfActive(session.Recovering) {
		return
	}
	logger.Info("Recovery started", "attempts", g.Attempts())
	s.record(g, journal.KindRecoveryStarted, g.Attempts(), 0, "")

	var last error
	for {
		if !g.IsActive() {
			logger.Info("Recovery ended, guild is no longer active")
			return
		}
		if s.gateway.IsConnected(guildID) && s.audio.IsPlaying(guildID) {
			g.ResetAttempts()
			g.SetStateIfActive(session.Streaming)
			logger.Info("Recovery found the guild already streaming")
			return
		}

		attempts := g.Attempts()
		if attempts >= s.cfg.MaxAttempts {
			s.giveUp(logger, g, attempts, last)
			return
		}

		delay := Backoff(s.cfg.BackoffBase, attempts)
		logger.Info("Waiting before reconnect attempt", "attempt", attempts+1, "delay", delay)
		if err := s.sleep(ctx, delay); err != nil {
			logger.Info("Recovery cancelled", "error", err)
			return
		}
		if !g.IsActive() {
			logger.Info("Recovery ended, guild was stopped while waiting")
			return
		}

		attempt := g.IncrementAttempts()
		s.record(g, journal.KindAttempt, attempt, delay, "")

		err := s.connectAndStream(ctx, g)
		if gateway.IsStale(err) {
			logger.Warn("Voice session is stale, forcing a fresh connection", "attempt", attempt, "error", err)
			s.record(g, journal.KindStaleSession, attempt, 0, err.Error())
			err = s.retryStale(ctx, g)
		}

		switch {
		case errors.Is(err, errDeactivated):
			logger.Info("Recovery ended, guild was stopped during an attempt")
			return
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			logger.Info("Recovery cancelled", "error", err)
			return
		case err == nil:
			logger.Info("Reconnected", "attempt", attempt)
			s.record(g, journal.KindReconnected, attempt, 0, "")
			return
		}

		last = err
		logger.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)
		g.SetStateIfActive(session.Recovering)
	}
}

// retryStale drops the rejected session, pauses, and tries once more.
func (s *Supervisor) retryStale(ctx context.Context, g *session.GuildSession) error {
	if err := g.LockConn(ctx); err != nil {
		return err
	}
	s.audio.Stop(g.GuildID())
	s.gateway.ForceDisconnect(g.GuildID())
	g.UnlockConn()

	if err := s.sleep(ctx, s.cfg.StalePause); err != nil {
		return err
	}
	return s.connectAndStream(ctx, g)
}

func (s *Supervisor) giveUp(logger *slog.Logger, g *session.GuildSession, attempts int, last error) {
	err := &AttemptsExhaustedError{GuildID: g.GuildID(), Attempts: attempts, Last: last}
	if !g.SetStateIfActive(session.GivenUp) {
		return
	}
	g.SetNotice(err.Error())
	logger.Error("Giving up on reconnecting", "attempts", attempts, "error", last)
	reason := ""
	if last != nil {
		reason = last.Error()
	}
	s.record(g, journal.KindGaveUp, attempts, 0, reason)
}

// connectAndStream connects the guild to its target channel and makes sure
// the radio plays there. Every step runs under the guild's connection lock,
// and the guild's active flag is checked before connecting and again before
// streaming.
func (s *Supervisor) connectAndStream(ctx context.Context, g *session.GuildSession) error {
	guildID := g.GuildID()
	if err := g.LockConn(ctx); err != nil {
		return err
	}
	defer g.UnlockConn()

	if !g.IsActive() {
		return errDeactivated
	}

	// A source that outlived its connection is feeding a dead channel.
	if !s.gateway.IsConnected(guildID) && s.audio.IsPlaying(guildID) {
		s.audio.Stop(guildID)
	}

	conn, err := s.gateway.ConnectOrMove(ctx, guildID, g.TargetChannel())
	if err != nil {
		return err
	}

	if !g.IsActive() {
		s.gateway.ForceDisconnect(guildID)
		return errDeactivated
	}

	if s.audio.IsPlaying(guildID) {
		g.ResetAttempts()
		g.SetStateIfActive(session.Streaming)
		return nil
	}
	return s.startStream(g, conn)
}

// startStream must be called with the guild's connection lock held.
func (s *Supervisor) startStream(g *session.GuildSession, conn gateway.Connection) error {
	guildID := g.GuildID()
	if err := s.audio.Start(conn, s.cfg.StreamURL, s.onStreamComplete(guildID)); err != nil {
		return &audio.StreamEndedError{GuildID: guildID, Err: err}
	}
	g.ResetAttempts()
	g.SetStateIfActive(session.Streaming)
	return nil
}

// onStreamComplete turns the end of a stream into one recovery trigger.
// Streams stopped on purpose are ignored.
func (s *Supervisor) onStreamComplete(guildID string) func(error) {
	return func(err error) {
		if errors.Is(err, audio.ErrStopped) {
			return
		}
		g, ok := s.sessions.Get(guildID)
		if !ok || !g.IsActive() {
			return
		}
		s.logger.Warn("Stream ended", "guildID", guildID, "error", err)
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		s.record(g, journal.KindStreamEnded, g.Attempts(), 0, reason)
		s.reconnect(guildID, true)
	}
}
