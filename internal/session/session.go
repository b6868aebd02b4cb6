// Package session holds the in-memory, per-guild record of what the relay
// should be doing. Sessions are created lazily and live for the life of the
// process.
package session

import (
	"context"
	"sync"
)

type State int

const (
	Idle State = iota
	Connecting
	Streaming
	Recovering
	GivenUp
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Recovering:
		return "recovering"
	case GivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of a GuildSession's fields at one point in time.
type Snapshot struct {
	GuildID         string
	Active          bool
	TargetChannelID string
	Attempts        int
	State           State
	Recovering      bool
	AutoChannelID   string
	AutoConnect     bool
	StartedByAuto   bool
}

// GuildSession is the relay record for one guild.
//
// Field access goes through a short-held mutex. A second lock, taken with
// LockConn, serializes every externally visible action on the guild's voice
// connection and audio source. Field methods never block on it.
type GuildSession struct {
	guildID string

	mu              sync.Mutex
	active          bool
	targetChannelID string
	attempts        int
	state           State
	recovering      bool
	recoverAgain    bool
	autoChannelID   string
	autoConnect     bool
	startedByAuto   bool
	notice          string

	conn chan struct{}
}

func newGuildSession(guildID string) *GuildSession {
	return &GuildSession{guildID: guildID, conn: make(chan struct{}, 1)}
}

func (g *GuildSession) GuildID() string {
	return g.guildID
}

func (g *GuildSession) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		GuildID:         g.guildID,
		Active:          g.active,
		TargetChannelID: g.targetChannelID,
		Attempts:        g.attempts,
		State:           g.state,
		Recovering:      g.recovering,
		AutoChannelID:   g.autoChannelID,
		AutoConnect:     g.autoConnect,
		StartedByAuto:   g.startedByAuto,
	}
}

// Activate marks the relay as wanted in channelID and resets the attempt counter.
func (g *GuildSession) Activate(channelID string, byAuto bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = true
	g.targetChannelID = channelID
	g.attempts = 0
	g.state = Connecting
	g.startedByAuto = byAuto
}

// Deactivate marks the relay as unwanted. It reports whether it was active.
func (g *GuildSession) Deactivate() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	was := g.active
	g.active = false
	g.attempts = 0
	g.state = Idle
	g.startedByAuto = false
	return was
}

func (g *GuildSession) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *GuildSession) TargetChannel() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.targetChannelID
}

func (g *GuildSession) SetTargetChannel(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.targetChannelID = channelID
}

func (g *GuildSession) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *GuildSession) SetState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

// SetStateIfActive sets the state only while the session is active.
// It reports whether the session was active.
func (g *GuildSession) SetStateIfActive(s State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return false
	}
	g.state = s
	return true
}

func (g *GuildSession) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

// IncrementAttempts adds one to the attempt counter and returns the new value.
func (g *GuildSession) IncrementAttempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts++
	return g.attempts
}

func (g *GuildSession) ResetAttempts() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts = 0
}

// ClearGivenUp moves a GivenUp session back to Idle and resets its attempts.
// Other states are left alone.
func (g *GuildSession) ClearGivenUp() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts = 0
	if g.state == GivenUp {
		g.state = Idle
	}
}

// BeginRecovery claims the guild's single recovery slot. It returns false
// if a sequence is already in flight.
func (g *GuildSession) BeginRecovery() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recovering {
		return false
	}
	g.recovering = true
	return true
}

// QueueRecovery is BeginRecovery for triggers that must not be lost. When a
// sequence is already in flight it is asked to run once more before it
// releases the slot.
func (g *GuildSession) QueueRecovery() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recovering {
		g.recoverAgain = true
		return false
	}
	g.recovering = true
	return true
}

// FinishRecovery releases the recovery slot unless a trigger was queued
// while the sequence ran. In that case the slot is kept, the trigger is
// consumed and FinishRecovery returns true.
func (g *GuildSession) FinishRecovery() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recoverAgain {
		g.recoverAgain = false
		return true
	}
	g.recovering = false
	return false
}

// EndRecovery releases the recovery slot and drops any queued trigger.
func (g *GuildSession) EndRecovery() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recovering = false
	g.recoverAgain = false
}

func (g *GuildSession) IsRecovering() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recovering
}

// LockConn serializes connect, move, stream start and teardown for the guild.
// It returns ctx.Err() if ctx is done before the lock is free.
func (g *GuildSession) LockConn(ctx context.Context) error {
	select {
	case g.conn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *GuildSession) UnlockConn() {
	<-g.conn
}

func (g *GuildSession) SetAutoChannel(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoChannelID = channelID
}

func (g *GuildSession) SetAutoConnect(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoConnect = enabled
}

// SetNotice stores a message for the next user interaction with the guild.
func (g *GuildSession) SetNotice(notice string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notice = notice
}

// TakeNotice returns the pending notice and clears it.
func (g *GuildSession) TakeNotice() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.notice
	g.notice = ""
	return n
}
