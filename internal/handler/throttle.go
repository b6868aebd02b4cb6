package handler

import (
	"sync"

	"golang.org/x/time/rate"
)

// Throttle rate limits commands per guild.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewThrottle(limit rate.Limit, burst int) *Throttle {
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether a command for key may run now. A nil Throttle allows
// everything.
func (t *Throttle) Allow(key string) bool {
	if t == nil {
		return true
	}

	t.mu.Lock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[key] = l
	}
	t.mu.Unlock()

	return l.Allow()
}
