package supervisor

import (
	"github.com/glizzus/radio-relay/internal/session"
)

// Code says what an API call did.
type Code int

const (
	Failed Code = iota
	Joined
	Started
	AlreadyPlaying
	Stopped
	NotConnected
	// Interrupted means a Stop arrived while the call was connecting.
	Interrupted
)

func (c Code) String() string {
	switch c {
	case Failed:
		return "failed"
	case Joined:
		return "joined"
	case Started:
		return "started"
	case AlreadyPlaying:
		return "already_playing"
	case Stopped:
		return "stopped"
	case NotConnected:
		return "not_connected"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Outcome is the result of a user-facing call.
type Outcome struct {
	Code      Code
	GuildID   string
	ChannelID string
	// Notice is a message left by background recovery, such as giving up,
	// delivered on the next call for the guild.
	Notice string
}

// Status describes a guild for display.
type Status struct {
	GuildID       string
	State         session.State
	Active        bool
	ChannelID     string
	Attempts      int
	MaxAttempts   int
	Connected     bool
	Playing       bool
	Recovering    bool
	AutoChannelID string
	AutoConnect   bool
}
