package supervisor

import (
	"errors"
	"fmt"
)

// errDeactivated ends an attempt that lost a race with Stop.
var errDeactivated = errors.New("guild was deactivated")

// ErrShuttingDown is returned by the API once Shutdown has begun.
var ErrShuttingDown = errors.New("supervisor is shutting down")

// AttemptsExhaustedError is recorded when a guild runs out of reconnect
// attempts. The guild stays idle until the radio is started again.
type AttemptsExhaustedError struct {
	GuildID  string
	Attempts int
	Last     error
}

func (e *AttemptsExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("gave up reconnecting guild %s after %d attempts", e.GuildID, e.Attempts)
	}
	return fmt.Sprintf("gave up reconnecting guild %s after %d attempts: %v", e.GuildID, e.Attempts, e.Last)
}

func (e *AttemptsExhaustedError) Unwrap() error {
	return e.Last
}

var _ error = (*AttemptsExhaustedError)(nil)
