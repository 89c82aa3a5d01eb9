package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Jam/internal/app"
)

// MessageRateLimiter keeps a sliding window of inbound messages per
// session so one flooding client cannot starve a room.
type MessageRateLimiter struct {
	mu       sync.Mutex
	history  map[app.SessionID][]time.Time
	limit    int
	interval time.Duration
}

func NewMessageRateLimiter(limit int, interval time.Duration) *MessageRateLimiter {
	return &MessageRateLimiter{
		history:  make(map[app.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *MessageRateLimiter) Allow(sid app.SessionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[sid] = fresh
	return true
}

// Forget drops a session's window, e.g. after its connection closes.
func (rl *MessageRateLimiter) Forget(sid app.SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, sid)
}
