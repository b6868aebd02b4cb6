package gateway

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// Voice websocket close codes meaning the session cannot be resumed.
const (
	CloseSessionNoLongerValid = 4006
	CloseSessionTimeout       = 4009
)

// ConnectError is any failure to dial or move a voice connection that is not
// a rejected session.
type ConnectError struct {
	GuildID   string
	ChannelID string
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("unable to connect guild %s to channel %s: %v", e.GuildID, e.ChannelID, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

var _ error = (*ConnectError)(nil)

// StaleSessionError means the voice server closed the session. The local
// connection must be discarded before a retry can succeed.
type StaleSessionError struct {
	GuildID   string
	ChannelID string
	Code      int
	Err       error
}

func (e *StaleSessionError) Error() string {
	return fmt.Sprintf("voice session for guild %s was rejected (close code %d): %v", e.GuildID, e.Code, e.Err)
}

func (e *StaleSessionError) Unwrap() error {
	return e.Err
}

var _ error = (*StaleSessionError)(nil)

// Classify converts a voice client error into a *StaleSessionError or a
// *ConnectError. Errors that are already classified pass through.
func Classify(guildID, channelID string, err error) error {
	if err == nil {
		return nil
	}

	var staleErr *StaleSessionError
	if errors.As(err, &staleErr) {
		return err
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return err
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return &StaleSessionError{
			GuildID:   guildID,
			ChannelID: channelID,
			Code:      closeErr.Code,
			Err:       err,
		}
	}

	return &ConnectError{GuildID: guildID, ChannelID: channelID, Err: err}
}

// IsStale reports whether err is a rejected voice session.
func IsStale(err error) bool {
	var staleErr *StaleSessionError
	return errors.As(err, &staleErr)
}
