package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/glizzus/radio-relay/internal/session"
)

// HealthMonitor periodically looks for active guilds whose connection or
// stream has died without a completion callback, and starts recovery.
type HealthMonitor struct {
	supervisor *Supervisor
	interval   time.Duration
	logger     *slog.Logger
}

func NewHealthMonitor(s *Supervisor, interval time.Duration, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		supervisor: s,
		interval:   interval,
		logger:     logger.With("component", "health"),
	}
}

// Run sweeps every interval until ctx is done.
func (h *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("Health monitor started", "interval", h.interval)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Health monitor stopped")
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Sweep checks every session once and returns how many recoveries it started.
// GivenUp guilds are skipped, as are guilds whose StartRadio is still
// connecting.
func (h *HealthMonitor) Sweep(ctx context.Context) int {
	s := h.supervisor
	started := 0
	for _, g := range s.sessions.All() {
		if ctx.Err() != nil {
			return started
		}
		snap := g.Snapshot()
		if !snap.Active || snap.Recovering {
			continue
		}
		if snap.State == session.GivenUp || snap.State == session.Connecting {
			continue
		}

		connected := s.gateway.IsConnected(snap.GuildID)
		playing := s.audio.IsPlaying(snap.GuildID)
		if connected && playing {
			continue
		}

		h.logger.Warn("Active guild is not streaming", "guildID", snap.GuildID, "connected", connected, "playing", playing)
		if s.Reconnect(snap.GuildID) {
			started++
		}
	}
	return started
}
