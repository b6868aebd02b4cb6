// Package audio manages the one audio source each guild may be playing.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glizzus/radio-relay/internal/gateway"
	"github.com/glizzus/radio-relay/internal/opus"
	"github.com/glizzus/radio-relay/internal/util"
)

// ErrStopped is passed to a completion callback when playback was stopped
// or replaced on purpose.
var ErrStopped = errors.New("playback stopped")

// StreamEndedError is passed to a completion callback when playback ended on
// its own. Err is nil for a clean end of stream.
type StreamEndedError struct {
	GuildID string
	Err     error
}

func (e *StreamEndedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stream ended for guild %s", e.GuildID)
	}
	return fmt.Sprintf("stream ended for guild %s: %v", e.GuildID, e.Err)
}

func (e *StreamEndedError) Unwrap() error {
	return e.Err
}

var _ error = (*StreamEndedError)(nil)

// Opener starts a source of length-prefixed Opus frames for url. Closing the
// returned reader must release everything the source holds.
type Opener func(ctx context.Context, url string) (io.ReadCloser, error)

// FFmpegOpener opens sources with opus.EncodeURL.
func FFmpegOpener(ffmpegPath string, bitrate int) Opener {
	return func(ctx context.Context, url string) (io.ReadCloser, error) {
		return opus.EncodeURL(ctx, ffmpegPath, url, bitrate)
	}
}

type Manager struct {
	open        Opener
	sendTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	players map[string]*player
}

type player struct {
	src     io.Closer
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
}

func NewManager(open Opener, sendTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		open:        open,
		sendTimeout: sendTimeout,
		logger:      logger.With("component", "audio"),
		players:     make(map[string]*player),
	}
}

// Start plays url on conn. Any source already playing for the guild is
// stopped and released first. onComplete is called exactly once when
// playback ends, with ErrStopped or a *StreamEndedError. It is not called
// when Start returns an error.
func (m *Manager) Start(conn gateway.Connection, url string, onComplete func(error)) error {
	guildID := conn.GuildID()
	m.Stop(guildID)

	ctx, cancel := context.WithCancel(context.Background())
	src, err := m.open(ctx, url)
	if err != nil {
		cancel()
		return fmt.Errorf("unable to open audio source: %w", err)
	}

	p := &player{src: src, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	prior := m.players[guildID]
	m.players[guildID] = p
	m.mu.Unlock()
	if prior != nil {
		m.halt(prior)
	}

	if err := conn.Speaking(true); err != nil {
		m.logger.Warn("Failed to set speaking state", "guildID", guildID, "error", err)
	}
	m.logger.Info("Started audio source", "guildID", guildID, "url", url)

	go func() {
		streamErr := opus.StreamToVoice(ctx, opus.NewFrameReader(src), conn.OpusSend(), m.sendTimeout)
		if err := src.Close(); err != nil {
			m.logger.Debug("Failed to close audio source", "guildID", guildID, "error", err)
		}
		cancel()
		if err := conn.Speaking(false); err != nil {
			m.logger.Debug("Failed to clear speaking state", "guildID", guildID, "error", err)
		}

		m.mu.Lock()
		if m.players[guildID] == p {
			delete(m.players, guildID)
		}
		m.mu.Unlock()
		close(p.done)

		if p.stopped.Load() {
			onComplete(ErrStopped)
			return
		}
		m.logger.Info("Audio source ended", "guildID", guildID, "error", streamErr)
		onComplete(&StreamEndedError{GuildID: guildID, Err: streamErr})
	}()

	return nil
}

// Stop ends playback for the guild and waits until its source is released.
func (m *Manager) Stop(guildID string) {
	m.mu.Lock()
	p := m.players[guildID]
	delete(m.players, guildID)
	m.mu.Unlock()

	if p != nil {
		m.halt(p)
	}
}

func (m *Manager) halt(p *player) {
	p.stopped.Store(true)
	p.cancel()
	// Unblocks a pending read on sources that ignore ctx.
	_ = p.src.Close()
	<-p.done
}

func (m *Manager) IsPlaying(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.players[guildID]
	return ok
}

// Playing lists the guilds with an audio source.
func (m *Manager) Playing() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return util.SortedKeys(m.players)
}

// Close stops every source.
func (m *Manager) Close() {
	for _, guildID := range m.Playing() {
		m.Stop(guildID)
	}
}
