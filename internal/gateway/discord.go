package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/util"
)

var errJoinAbandoned = errors.New("voice join did not finish in time")

// Discord is a Gateway backed by discordgo voice connections.
//
// discordgo keeps the guild's *VoiceConnection in Session.VoiceConnections and
// reuses it on every join, so this type never holds connections itself. It
// only tracks joins that are still running after their caller gave up, so a
// later call waits for them instead of racing them.
type Discord struct {
	session     *discordgo.Session
	joinTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewDiscord(session *discordgo.Session, joinTimeout time.Duration, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		session:     session,
		joinTimeout: joinTimeout,
		logger:      logger.With("component", "gateway"),
		pending:     make(map[string]chan struct{}),
	}
}

var _ Gateway = (*Discord)(nil)

func (d *Discord) ConnectOrMove(ctx context.Context, guildID, channelID string) (Connection, error) {
	if d.joinTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.joinTimeout)
		defer cancel()
	}

	if err := d.awaitPending(ctx, guildID); err != nil {
		return nil, &ConnectError{GuildID: guildID, ChannelID: channelID, Err: err}
	}

	if vc := d.voiceConnection(guildID); vc != nil {
		if ready(vc) {
			if channelOf(vc) == channelID {
				return &discordConnection{vc: vc}, nil
			}
			d.logger.Info("Moving voice connection", "guildID", guildID, "from", channelOf(vc), "to", channelID)
			if err := vc.ChangeChannel(channelID, false, true); err != nil {
				return nil, Classify(guildID, channelID, err)
			}
			return &discordConnection{vc: vc}, nil
		}

		// A connection that exists but is not ready will not recover on its own.
		d.logger.Warn("Discarding voice connection that is not ready", "guildID", guildID)
		if err := vc.Disconnect(); err != nil {
			d.logger.Warn("Failed to disconnect stale voice connection", "guildID", guildID, "error", err)
		}
	}

	vc, err := d.join(ctx, guildID, channelID)
	if err != nil {
		return nil, Classify(guildID, channelID, err)
	}
	return &discordConnection{vc: vc}, nil
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// join runs ChannelVoiceJoin, which takes no context, so that ctx can bound it.
// A join that completes after ctx is done is disconnected.
func (d *Discord) join(ctx context.Context, guildID, channelID string) (*discordgo.VoiceConnection, error) {
	done := make(chan struct{})
	d.mu.Lock()
	d.pending[guildID] = done
	d.mu.Unlock()

	var (
		handoff   sync.Mutex
		abandoned bool
		results   = make(chan joinResult, 1)
	)

	go func() {
		defer d.clearPending(guildID, done)

		vc, err := d.session.ChannelVoiceJoin(guildID, channelID, false, true)

		handoff.Lock()
		defer handoff.Unlock()
		if !abandoned {
			results <- joinResult{vc: vc, err: err}
			return
		}
		if err == nil && vc != nil {
			d.logger.Warn("Disconnecting voice join that finished after its deadline", "guildID", guildID)
			if derr := vc.Disconnect(); derr != nil {
				d.logger.Warn("Failed to disconnect late voice join", "guildID", guildID, "error", derr)
			}
		}
	}()

	select {
	case r := <-results:
		return r.vc, r.err
	case <-ctx.Done():
		handoff.Lock()
		defer handoff.Unlock()
		select {
		case r := <-results:
			return r.vc, r.err
		default:
			abandoned = true
			return nil, errors.Join(errJoinAbandoned, ctx.Err())
		}
	}
}

func (d *Discord) awaitPending(ctx context.Context, guildID string) error {
	d.mu.Lock()
	done, ok := d.pending[guildID]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Discord) clearPending(guildID string, done chan struct{}) {
	d.mu.Lock()
	if d.pending[guildID] == done {
		delete(d.pending, guildID)
	}
	d.mu.Unlock()
	close(done)
}

func (d *Discord) ForceDisconnect(guildID string) {
	vc := d.voiceConnection(guildID)
	if vc == nil {
		return
	}
	if err := vc.Speaking(false); err != nil {
		d.logger.Debug("Failed to clear speaking state", "guildID", guildID, "error", err)
	}
	if err := vc.Disconnect(); err != nil {
		d.logger.Warn("Failed to disconnect voice connection", "guildID", guildID, "error", err)
	}
}

func (d *Discord) IsConnected(guildID string) bool {
	vc := d.voiceConnection(guildID)
	return vc != nil && ready(vc)
}

func (d *Discord) Connection(guildID string) (Connection, bool) {
	vc := d.voiceConnection(guildID)
	if vc == nil || !ready(vc) {
		return nil, false
	}
	return &discordConnection{vc: vc}, true
}

func (d *Discord) Guilds() []string {
	d.session.RLock()
	defer d.session.RUnlock()
	return util.SortedKeys(d.session.VoiceConnections)
}

func (d *Discord) voiceConnection(guildID string) *discordgo.VoiceConnection {
	d.session.RLock()
	defer d.session.RUnlock()
	return d.session.VoiceConnections[guildID]
}

func ready(vc *discordgo.VoiceConnection) bool {
	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready
}

func channelOf(vc *discordgo.VoiceConnection) string {
	vc.RLock()
	defer vc.RUnlock()
	return vc.ChannelID
}

type discordConnection struct {
	vc *discordgo.VoiceConnection
}

func (c *discordConnection) GuildID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.GuildID
}

func (c *discordConnection) ChannelID() string {
	return channelOf(c.vc)
}

func (c *discordConnection) Speaking(speaking bool) error {
	return c.vc.Speaking(speaking)
}

func (c *discordConnection) OpusSend() chan<- []byte {
	return c.vc.OpusSend
}
