package supervisor

import (
	"context"
	"sync"
)

// taskGroup runs background work tied to one context. Once closed it starts
// nothing new, and wait blocks until running work has returned.
type taskGroup struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newTaskGroup() *taskGroup {
	ctx, cancel := context.WithCancel(context.Background())
	return &taskGroup{ctx: ctx, cancel: cancel}
}

// spawn runs fn in a goroutine. It reports false if the group is closed.
func (t *taskGroup) spawn(fn func(ctx context.Context)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return false
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(t.ctx)
	}()
	return true
}

func (t *taskGroup) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel()
}

func (t *taskGroup) closed() bool {
	return t.ctx.Err() != nil
}

// wait blocks until every spawned task returns or ctx is done.
func (t *taskGroup) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
