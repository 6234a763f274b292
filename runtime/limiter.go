package runtime

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type EventKind string

const (
	JoinKind        EventKind = "join"
	SendMessageKind EventKind = "send-message"
	MarkReadKind    EventKind = "mark-read"
)

type limiterKey struct {
	connectionID string
	kind         EventKind
}

// RateLimiter keeps one token bucket of size 1 per (connection, kind).
// A bucket refills every interval, so an invocation is accepted iff the
// last accepted one of the same kind is at least one interval old.
type RateLimiter struct {
	mu        sync.Mutex
	now       func() time.Time
	intervals map[EventKind]time.Duration
	limiters  map[limiterKey]*rate.Limiter
}

func NewRateLimiter(intervals map[EventKind]time.Duration) *RateLimiter {
	return &RateLimiter{
		now:       time.Now,
		intervals: intervals,
		limiters:  make(map[limiterKey]*rate.Limiter),
	}
}

// Allow checks and records in one step. Kinds without policy are never limited.
func (l *RateLimiter) Allow(connectionID string, kind EventKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	interval, ok := l.intervals[kind]
	if !ok || interval <= 0 {
		return true
	}
	key := limiterKey{connectionID: connectionID, kind: kind}
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		l.limiters[key] = limiter
	}
	return limiter.AllowN(l.now(), 1)
}

// Forget drops every bucket of a connection.
func (l *RateLimiter) Forget(connectionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.limiters {
		if key.connectionID == connectionID {
			delete(l.limiters, key)
		}
	}
}
