// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/glizzus/radio-relay/internal/gateway"
	"github.com/glizzus/radio-relay/internal/util"
)

// Call records one ConnectOrMove or ForceDisconnect.
type Call struct {
	Op        string
	GuildID   string
	ChannelID string
}

const (
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
)

// Conn is a fake voice connection. Frames sent to it land in Frames.
type Conn struct {
	Guild   string
	Channel string
	Frames  chan []byte

	mu       sync.Mutex
	speaking bool
}

func (c *Conn) GuildID() string { return c.Guild }

func (c *Conn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Channel
}

func (c *Conn) Speaking(speaking bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = speaking
	return nil
}

func (c *Conn) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

func (c *Conn) OpusSend() chan<- []byte { return c.Frames }

var _ gateway.Connection = (*Conn)(nil)

// Gateway is a scriptable fake. Each ConnectOrMove pops the next scripted
// error for its guild; with nothing scripted it succeeds.
type Gateway struct {
	mu            sync.Mutex
	beforeConnect func(ctx context.Context, guildID, channelID string) error
	conns         map[string]*Conn
	script        map[string][]error
	calls         []Call
	inFlight      map[string]int
	maxInFlight   map[string]int
	dials         map[string]int
}

func New() *Gateway {
	return &Gateway{
		conns:       make(map[string]*Conn),
		script:      make(map[string][]error),
		inFlight:    make(map[string]int),
		maxInFlight: make(map[string]int),
		dials:       make(map[string]int),
	}
}

var _ gateway.Gateway = (*Gateway)(nil)

// SetBeforeConnect installs a hook that runs inside ConnectOrMove, outside
// the fake's lock, before the result is decided. A non-nil return is used as
// the call's error.
func (g *Gateway) SetBeforeConnect(hook func(ctx context.Context, guildID, channelID string) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.beforeConnect = hook
}

// Script queues errors for the next ConnectOrMove calls of guildID.
// A nil entry is a success.
func (g *Gateway) Script(guildID string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script[guildID] = append(g.script[guildID], errs...)
}

func (g *Gateway) ConnectOrMove(ctx context.Context, guildID, channelID string) (gateway.Connection, error) {
	g.mu.Lock()
	g.calls = append(g.calls, Call{Op: OpConnect, GuildID: guildID, ChannelID: channelID})
	g.inFlight[guildID]++
	if g.inFlight[guildID] > g.maxInFlight[guildID] {
		g.maxInFlight[guildID] = g.inFlight[guildID]
	}
	hook := g.beforeConnect
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight[guildID]--
		g.mu.Unlock()
	}()

	if hook != nil {
		if err := hook(ctx, guildID, channelID); err != nil {
			return nil, gateway.Classify(guildID, channelID, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if queue := g.script[guildID]; len(queue) > 0 {
		err := queue[0]
		g.script[guildID] = queue[1:]
		if err != nil {
			return nil, gateway.Classify(guildID, channelID, err)
		}
	}

	if conn, ok := g.conns[guildID]; ok {
		conn.mu.Lock()
		conn.Channel = channelID
		conn.mu.Unlock()
		return conn, nil
	}

	conn := &Conn{Guild: guildID, Channel: channelID, Frames: make(chan []byte, 64)}
	g.conns[guildID] = conn
	g.dials[guildID]++
	return conn, nil
}

func (g *Gateway) ForceDisconnect(guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Op: OpDisconnect, GuildID: guildID})
	delete(g.conns, guildID)
}

// Drop removes the guild's connection as if the network lost it.
func (g *Gateway) Drop(guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, guildID)
}

func (g *Gateway) IsConnected(guildID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.conns[guildID]
	return ok
}

func (g *Gateway) Connection(guildID string) (gateway.Connection, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	conn, ok := g.conns[guildID]
	if !ok {
		return nil, false
	}
	return conn, true
}

func (g *Gateway) Guilds() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return util.SortedKeys(g.conns)
}

// Calls returns every recorded call in order.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// Count returns how many calls of op were made for guildID.
func (g *Gateway) Count(op, guildID string) int {
	return util.Count(g.Calls(), func(c Call) bool {
		return c.Op == op && c.GuildID == guildID
	})
}

// MaxInFlight is the highest number of concurrent ConnectOrMove calls seen for guildID.
func (g *Gateway) MaxInFlight(guildID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxInFlight[guildID]
}

// Dials is how many new connections were created for guildID.
func (g *Gateway) Dials(guildID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dials[guildID]
}
