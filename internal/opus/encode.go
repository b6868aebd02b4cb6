package opus

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/jonas747/ogg"
)

// oggHeaderPackets is the number of leading OpusHead/OpusTags packets.
const oggHeaderPackets = 2

// FFmpegArgs returns the FFmpeg arguments used to relay url as 48kHz stereo
// Opus in an Ogg container on stdout. The input options keep FFmpeg
// reconnecting when a live stream drops.
func FFmpegArgs(url string, bitrate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-reconnect_at_eof", "1",
		"-i", url,
		"-vn",
		"-map", "0:a",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", strconv.Itoa(bitrate),
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"pipe:1",
	}
}

// EncodeURL starts FFmpeg on url and returns an io.ReadCloser that produces
// length-prefixed Opus frames. Reading returns io.EOF when the stream ends
// cleanly, or an error that includes FFmpeg's stderr when it does not.
// Close kills FFmpeg and waits for it to exit. Cancelling ctx does the same.
func EncodeURL(ctx context.Context, ffmpegPath, url string, bitrate int) (io.ReadCloser, error) {
	ffmpeg := exec.CommandContext(ctx, ffmpegPath, FFmpegArgs(url, bitrate)...)

	stderr := &tailBuffer{limit: 2048}
	ffmpeg.Stderr = stderr

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to pipe ffmpeg stdout: %w", err)
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("unable to start ffmpeg: %w", err)
	}

	pr, pw := io.Pipe()
	ec := &encodeCloser{ReadCloser: pr, cmd: ffmpeg, exited: make(chan struct{})}

	go func() {
		demuxErr := demux(stdout, pw)
		// Drain so FFmpeg never blocks on a full pipe while exiting.
		_, _ = io.Copy(io.Discard, stdout)
		waitErr := ec.wait()

		switch {
		case demuxErr != nil:
			pw.CloseWithError(demuxErr)
		case waitErr != nil:
			pw.CloseWithError(fmt.Errorf("ffmpeg exited: %w: %s", waitErr, stderr.String()))
		default:
			pw.Close()
		}
	}()

	return ec, nil
}

// demux copies every audio packet of an Ogg Opus stream to w as a
// length-prefixed frame.
func demux(r io.Reader, w io.Writer) error {
	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(r))

	skip := oggHeaderPackets
	var lenBuf [2]byte
	for {
		packet, _, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("unable to demux ogg: %w", err)
		}
		if skip > 0 {
			skip--
			continue
		}

		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(packet)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(packet); err != nil {
			return err
		}
	}
}

// encodeCloser wraps the pipe reader and ensures the FFmpeg process is cleaned up.
type encodeCloser struct {
	io.ReadCloser
	cmd *exec.Cmd

	once    sync.Once
	waitErr error
	exited  chan struct{}
}

func (e *encodeCloser) wait() error {
	e.once.Do(func() {
		e.waitErr = e.cmd.Wait()
		close(e.exited)
	})
	<-e.exited
	return e.waitErr
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	// Kill FFmpeg if still running (e.g. pipe closed early).
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.wait()
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
