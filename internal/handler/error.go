package handler

// UserError is an error type that is used to represent
// an error that should be displayed to the user.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

var _ error = (*UserError)(nil)

var (
	ErrNotInVoice      = &UserError{Message: "You need to be in a voice channel first."}
	ErrGuildOnly       = &UserError{Message: "This command only works in a server."}
	ErrNotVoiceChannel = &UserError{Message: "That isn't a voice channel in this server."}
	ErrNoAutoChannel   = &UserError{Message: "Set a channel with /setchannel first."}
	ErrSlowDown        = &UserError{Message: "Slow down, try again in a few seconds."}
)
