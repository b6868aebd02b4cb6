package opus_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/glizzus/radio-relay/internal/opus"
	"github.com/google/go-cmp/cmp"
)

func frames(payloads ...[]byte) *bytes.Buffer {
	var buf bytes.Buffer
	for _, p := range payloads {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(p)))
		buf.Write(p)
	}
	return &buf
}

func TestFFmpegArgs(t *testing.T) {
	args := opus.FFmpegArgs("http://example.com/live.mp3", 96000)

	i := slices.Index(args, "-i")
	if i < 0 || args[i+1] != "http://example.com/live.mp3" {
		t.Fatalf("input url missing from %v", args)
	}
	for _, opt := range []string{"-reconnect", "-reconnect_streamed", "-reconnect_at_eof"} {
		j := slices.Index(args, opt)
		if j < 0 || j > i {
			t.Errorf("%s must be an input option before -i, got %v", opt, args)
			continue
		}
		if args[j+1] != "1" {
			t.Errorf("%s = %s, want 1", opt, args[j+1])
		}
	}
	if j := slices.Index(args, "-reconnect_delay_max"); j < 0 || args[j+1] != "5" {
		t.Errorf("-reconnect_delay_max missing or wrong in %v", args)
	}
	if j := slices.Index(args, "-b:a"); j < 0 || args[j+1] != "96000" {
		t.Errorf("-b:a missing or wrong in %v", args)
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("output must be stdout, got %s", args[len(args)-1])
	}
}

func TestFrameReader(t *testing.T) {
	want := [][]byte{{1, 2, 3}, {4}, {5, 6}}
	r := opus.NewFrameReader(frames(want...))

	var got [][]byte
	for {
		f, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame returned error: %v", err)
		}
		got = append(got, f)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameReaderRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint16(opus.MaxFrameSize+1))
	if _, err := opus.NewFrameReader(&buf).ReadFrame(); err == nil {
		t.Fatal("expected error for oversized frame")
	}
}

func TestStreamToVoice(t *testing.T) {
	send := make(chan []byte, 3)
	err := opus.StreamToVoice(t.Context(), opus.NewFrameReader(frames([]byte{1}, []byte{2}, []byte{3})), send, time.Second)
	if err != nil {
		t.Fatalf("StreamToVoice returned error: %v", err)
	}
	close(send)

	var got [][]byte
	for f := range send {
		got = append(got, f)
	}
	if diff := cmp.Diff([][]byte{{1}, {2}, {3}}, got); diff != "" {
		t.Errorf("sent frames mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamToVoiceSendTimeout(t *testing.T) {
	send := make(chan []byte)
	err := opus.StreamToVoice(t.Context(), opus.NewFrameReader(frames([]byte{1})), send, 10*time.Millisecond)
	if !errors.Is(err, opus.ErrVoiceConnClosed) {
		t.Errorf("expected ErrVoiceConnClosed, got %v", err)
	}
}

func TestStreamToVoiceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	send := make(chan []byte)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := opus.StreamToVoice(ctx, opus.NewFrameReader(frames([]byte{1})), send, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStreamToVoiceReadError(t *testing.T) {
	boom := errors.New("boom")
	r := opus.NewFrameReader(io.MultiReader(frames([]byte{1}), &errReader{err: boom}))
	send := make(chan []byte, 1)

	if err := opus.StreamToVoice(t.Context(), r, send, time.Second); !errors.Is(err, boom) {
		t.Errorf("expected read error, got %v", err)
	}
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }
