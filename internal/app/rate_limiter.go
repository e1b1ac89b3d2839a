package app

import (
	"sync"

	"github.com/dkeye/callrelay/internal/domain"
	"golang.org/x/time/rate"
)

// InitiateLimiter bounds how often one identity may start calls.
// A nil limiter, or one with a non-positive rate, allows everything.
type InitiateLimiter struct {
	mu     sync.Mutex
	byUser map[domain.Identity]*rate.Limiter
	limit  rate.Limit
	burst  int
}

func NewInitiateLimiter(perSecond float64, burst int) *InitiateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &InitiateLimiter{
		byUser: make(map[domain.Identity]*rate.Limiter),
		limit:  rate.Limit(perSecond),
		burst:  burst,
	}
}

func (rl *InitiateLimiter) Allow(id domain.Identity) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	l, ok := rl.byUser[id]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.byUser[id] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Forget drops the identity's bucket once it is fully offline.
func (rl *InitiateLimiter) Forget(id domain.Identity) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.byUser, id)
	rl.mu.Unlock()
}
