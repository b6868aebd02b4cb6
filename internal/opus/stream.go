package opus

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrVoiceConnClosed = errors.New("voice connection send timeout")

// StreamToVoice reads Opus frames from source and sends them on send. It
// blocks until the source is exhausted, ctx is done, or a frame cannot be
// sent within timeout. Returns nil on clean EOF and ctx.Err() on cancel.
func StreamToVoice(ctx context.Context, source *FrameReader, send chan<- []byte, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		frame, err := source.ReadFrame()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		timer.Reset(timeout)
		select {
		case send <- frame:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrVoiceConnClosed
		}
	}
}
