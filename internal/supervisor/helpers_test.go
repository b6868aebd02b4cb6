package supervisor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/radio-relay/internal/audio"
	"github.com/glizzus/radio-relay/internal/gateway"
	"github.com/glizzus/radio-relay/internal/gateway/gatewaytest"
	"github.com/glizzus/radio-relay/internal/journal"
	"github.com/glizzus/radio-relay/internal/session"
	"github.com/glizzus/radio-relay/internal/supervisor"
)

// fakeAudio plays nothing; it only tracks which guilds have a source and
// lets a test end a stream with End.
type fakeAudio struct {
	mu       sync.Mutex
	playing  map[string]func(error)
	starts   map[string]int
	startErr error
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{playing: make(map[string]func(error)), starts: make(map[string]int)}
}

func (a *fakeAudio) Start(conn gateway.Connection, url string, onComplete func(error)) error {
	a.mu.Lock()
	if a.startErr != nil {
		err := a.startErr
		a.mu.Unlock()
		return err
	}
	guildID := conn.GuildID()
	prior := a.playing[guildID]
	a.playing[guildID] = onComplete
	a.starts[guildID]++
	a.mu.Unlock()

	if prior != nil {
		prior(audio.ErrStopped)
	}
	return nil
}

func (a *fakeAudio) take(guildID string) func(error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cb := a.playing[guildID]
	delete(a.playing, guildID)
	return cb
}

func (a *fakeAudio) Stop(guildID string) {
	if cb := a.take(guildID); cb != nil {
		cb(audio.ErrStopped)
	}
}

func (a *fakeAudio) IsPlaying(guildID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.playing[guildID]
	return ok
}

// End finishes the guild's stream as if the source ran dry.
func (a *fakeAudio) End(guildID string, cause error) {
	if cb := a.take(guildID); cb != nil {
		cb(&audio.StreamEndedError{GuildID: guildID, Err: cause})
	}
}

func (a *fakeAudio) Starts(guildID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts[guildID]
}

func (a *fakeAudio) SetStartErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startErr = err
}

// sleeper records requested delays. With a gate, each sleep blocks until the
// gate yields or ctx is done.
type sleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	gate   chan struct{}
}

func (s *sleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (s *sleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type memoryJournal struct {
	mu       sync.Mutex
	events   []journal.Event
	onRecord func(journal.Event)
}

func (m *memoryJournal) Record(ctx context.Context, e journal.Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	hook := m.onRecord
	m.mu.Unlock()

	if hook != nil {
		hook(e)
	}
	return nil
}

// OnRecord runs fn after each event is stored, on the recording goroutine.
func (m *memoryJournal) OnRecord(fn func(journal.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRecord = fn
}

func (m *memoryJournal) Count(guildID string, kind journal.Kind) int {
	n := 0
	for _, k := range m.Kinds(guildID) {
		if k == kind {
			n++
		}
	}
	return n
}

func (m *memoryJournal) Kinds(guildID string) []journal.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kinds []journal.Kind
	for _, e := range m.events {
		if e.GuildID == guildID {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

type harness struct {
	sup     *supervisor.Supervisor
	health  *supervisor.HealthMonitor
	gw      *gatewaytest.Gateway
	audio   *fakeAudio
	sleeper *sleeper
	journal *memoryJournal
}

func testConfig() supervisor.Config {
	return supervisor.Config{
		StreamURL:   "http://radio.example/live.mp3",
		MaxAttempts: 5,
		BackoffBase: 2 * time.Second,
		StalePause:  500 * time.Millisecond,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gw:      gatewaytest.New(),
		audio:   newFakeAudio(),
		sleeper: &sleeper{},
		journal: &memoryJournal{},
	}
	h.sup = supervisor.New(
		testConfig(),
		session.NewStore(),
		h.gw,
		h.audio,
		supervisor.WithSleep(h.sleeper.sleep),
		supervisor.WithJournal(h.journal),
	)
	h.health = supervisor.NewHealthMonitor(h.sup, time.Hour, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.sup.Shutdown(ctx)
	})
	return h
}

// settle waits until no recovery sequence is running for the guild.
func (h *harness) settle(t *testing.T, guildID string) {
	t.Helper()
	eventually(t, func() bool { return !h.sup.Status(guildID).Recovering })
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
