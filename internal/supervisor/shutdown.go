package supervisor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Shutdown stops every relay and waits for background work to finish,
// bounded by ctx. No new recovery starts once it is called.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.tasks.close()

	guilds := s.gateway.Guilds()
	for _, g := range s.sessions.All() {
		g.Deactivate()
		guilds = append(guilds, g.GuildID())
	}
	slices.Sort(guilds)
	guilds = slices.Compact(guilds)

	s.logger.Info("Shutting down", "guilds", len(guilds))

	var eg errgroup.Group
	for _, guildID := range guilds {
		eg.Go(func() error {
			g := s.sessions.Ensure(guildID)
			if err := g.LockConn(ctx); err != nil {
				return fmt.Errorf("guild %s: %w", guildID, err)
			}
			defer g.UnlockConn()
			s.audio.Stop(guildID)
			s.gateway.ForceDisconnect(guildID)
			return nil
		})
	}

	teardownErr := eg.Wait()
	waitErr := s.tasks.wait(ctx)
	if err := errors.Join(teardownErr, waitErr); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	s.logger.Info("Shutdown complete")
	return nil
}
