package ratelimit

import (
	"sync"
	"time"
)

// =====================================================
// SLIDING WINDOW RATE LIMITER
// =====================================================

// Limiter admits at most maxAttempts calls per identifier inside a sliding
// window. State lives in process; the limiter is built once and injected so
// tests (and a future shared-store implementation) can swap it out.
type Limiter struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	window      time.Duration
	maxAttempts int
	now         func() time.Time
}

// New creates a limiter with the given window and attempt ceiling
func New(window time.Duration, maxAttempts int) *Limiter {
	return &Limiter{
		attempts:    make(map[string][]time.Time),
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// NewWithClock creates a limiter with an injected clock for tests
func NewWithClock(window time.Duration, maxAttempts int, now func() time.Time) *Limiter {
	l := New(window, maxAttempts)
	l.now = now
	return l
}

// Admit records an attempt for identifier and reports whether it is allowed.
// Expired timestamps are pruned lazily on each call, so idle identifiers
// cost nothing until they come back.
func (l *Limiter) Admit(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.attempts[identifier][:0]
	for _, ts := range l.attempts[identifier] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.maxAttempts {
		l.attempts[identifier] = recent
		return false
	}

	l.attempts[identifier] = append(recent, now)
	return true
}

// Remaining reports how many attempts identifier has left in the window
func (l *Limiter) Remaining(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	count := 0
	for _, ts := range l.attempts[identifier] {
		if ts.After(cutoff) {
			count++
		}
	}
	if count >= l.maxAttempts {
		return 0
	}
	return l.maxAttempts - count
}
