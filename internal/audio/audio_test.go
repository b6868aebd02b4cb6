package audio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/radio-relay/internal/audio"
	"github.com/glizzus/radio-relay/internal/gateway/gatewaytest"
)

// pipeOpener hands out io.Pipe readers and keeps the writers for the test.
type pipeOpener struct {
	mu      sync.Mutex
	writers []*io.PipeWriter
	readers []*io.PipeReader
	err     error
}

func (o *pipeOpener) open(ctx context.Context, url string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	pr, pw := io.Pipe()
	o.writers = append(o.writers, pw)
	o.readers = append(o.readers, pr)
	return pr, nil
}

func (o *pipeOpener) writer(i int) *io.PipeWriter {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.writers[i]
}

func frame(p []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(p)))
	buf.Write(p)
	return buf.Bytes()
}

func conn(guildID string) *gatewaytest.Conn {
	return &gatewaytest.Conn{Guild: guildID, Channel: "voice", Frames: make(chan []byte, 16)}
}

func waitFor(t *testing.T, results <-chan error) error {
	t.Helper()
	select {
	case err := <-results:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback was not called")
		return nil
	}
}

func TestManagerStreamsFrames(t *testing.T) {
	opener := &pipeOpener{}
	m := audio.NewManager(opener.open, time.Second, nil)
	c := conn("g")
	results := make(chan error, 1)

	if err := m.Start(c, "http://radio", func(err error) { results <- err }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !m.IsPlaying("g") {
		t.Fatal("expected guild to be playing")
	}
	if !c.IsSpeaking() {
		t.Error("expected speaking state to be set")
	}

	w := opener.writer(0)
	if _, err := w.Write(frame([]byte{7, 7})); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case f := <-c.Frames:
		if !bytes.Equal(f, []byte{7, 7}) {
			t.Errorf("frame = %v, want [7 7]", f)
		}
	case <-time.After(time.Second):
		t.Fatal("frame was not sent")
	}

	w.Close()
	err := waitFor(t, results)
	var ended *audio.StreamEndedError
	if !errors.As(err, &ended) {
		t.Fatalf("expected *StreamEndedError, got %v", err)
	}
	if ended.Err != nil {
		t.Errorf("clean end carried a cause: %v", ended.Err)
	}
	if m.IsPlaying("g") {
		t.Error("guild still playing after the stream ended")
	}
	if c.IsSpeaking() {
		t.Error("speaking state not cleared")
	}
}

func TestManagerStreamFailure(t *testing.T) {
	opener := &pipeOpener{}
	m := audio.NewManager(opener.open, time.Second, nil)
	results := make(chan error, 1)

	if err := m.Start(conn("g"), "http://radio", func(err error) { results <- err }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	boom := errors.New("ffmpeg exited")
	opener.writer(0).CloseWithError(boom)

	err := waitFor(t, results)
	var ended *audio.StreamEndedError
	if !errors.As(err, &ended) || !errors.Is(err, boom) {
		t.Fatalf("expected *StreamEndedError wrapping the cause, got %v", err)
	}
}

func TestManagerStop(t *testing.T) {
	opener := &pipeOpener{}
	m := audio.NewManager(opener.open, time.Second, nil)
	results := make(chan error, 1)

	if err := m.Start(conn("g"), "http://radio", func(err error) { results <- err }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	m.Stop("g")
	if m.IsPlaying("g") {
		t.Error("guild still playing after Stop")
	}
	if err := waitFor(t, results); !errors.Is(err, audio.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}

	// Stopping again is a no-op.
	m.Stop("g")
}

func TestManagerStartReplaces(t *testing.T) {
	opener := &pipeOpener{}
	m := audio.NewManager(opener.open, time.Second, nil)
	first := make(chan error, 1)
	second := make(chan error, 1)
	c := conn("g")

	if err := m.Start(c, "http://radio", func(err error) { first <- err }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := m.Start(c, "http://radio", func(err error) { second <- err }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if err := waitFor(t, first); !errors.Is(err, audio.ErrStopped) {
		t.Errorf("replaced source got %v, want ErrStopped", err)
	}
	if !m.IsPlaying("g") {
		t.Error("replacement is not playing")
	}

	select {
	case err := <-second:
		t.Fatalf("replacement completed early: %v", err)
	default:
	}

	m.Close()
	if err := waitFor(t, second); !errors.Is(err, audio.ErrStopped) {
		t.Errorf("expected ErrStopped after Close, got %v", err)
	}
	if got := m.Playing(); len(got) != 0 {
		t.Errorf("Playing() = %v after Close", got)
	}
}

func TestManagerOpenFailure(t *testing.T) {
	opener := &pipeOpener{err: errors.New("no ffmpeg")}
	m := audio.NewManager(opener.open, time.Second, nil)

	called := false
	err := m.Start(conn("g"), "http://radio", func(error) { called = true })
	if err == nil {
		t.Fatal("expected error from Start")
	}
	if m.IsPlaying("g") {
		t.Error("guild marked playing after a failed start")
	}
	if called {
		t.Error("callback called for a failed start")
	}
}
