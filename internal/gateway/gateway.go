// Package gateway owns the single voice connection each guild may have.
//
// Callers ask for a guild to be connected to a channel and the gateway either
// dials, moves the existing connection, or returns it unchanged. Failures are
// reported as either a *StaleSessionError, when the remote side rejected the
// voice session, or a *ConnectError for everything else.
package gateway

import (
	"context"
)

// Connection is a live voice connection for one guild.
type Connection interface {
	GuildID() string
	ChannelID() string
	Speaking(speaking bool) error
	OpusSend() chan<- []byte
}

type Gateway interface {
	// ConnectOrMove ensures guildID is connected to channelID. It is safe to
	// retry and never leaves a second connection for the guild.
	ConnectOrMove(ctx context.Context, guildID, channelID string) (Connection, error)
	// ForceDisconnect tears down the guild's connection if there is one.
	// Failures are logged, never returned.
	ForceDisconnect(guildID string)
	IsConnected(guildID string) bool
	Connection(guildID string) (Connection, bool)
	// Guilds lists the guilds that currently hold a connection.
	Guilds() []string
}
