package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdmitRejectsSixthAttempt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewWithClock(60*time.Second, 5, func() time.Time { return now })

	id := "ORD-1001-203.0.113.7"
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Admit(id), "attempt %d should be admitted", i+1)
	}
	assert.False(t, limiter.Admit(id), "sixth attempt inside the window must be rejected")
	assert.Equal(t, 0, limiter.Remaining(id))
}

func TestAdmitAfterWindowSlides(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewWithClock(60*time.Second, 5, func() time.Time { return now })

	id := "ORD-1001-203.0.113.7"
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Admit(id))
	}
	assert.False(t, limiter.Admit(id))

	// Just inside the window: still rejected
	now = now.Add(59 * time.Second)
	assert.False(t, limiter.Admit(id))

	// The first five attempts expire as the window slides past them
	now = now.Add(2 * time.Second)
	assert.True(t, limiter.Admit(id))
}

func TestIdentifiersAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewWithClock(60*time.Second, 2, func() time.Time { return now })

	assert.True(t, limiter.Admit("ORD-1-1.1.1.1"))
	assert.True(t, limiter.Admit("ORD-1-1.1.1.1"))
	assert.False(t, limiter.Admit("ORD-1-1.1.1.1"))

	// Same order, different IP is a different identifier
	assert.True(t, limiter.Admit("ORD-1-2.2.2.2"))
	// Different order, same IP too
	assert.True(t, limiter.Admit("ORD-2-1.1.1.1"))
}

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewWithClock(60*time.Second, 5, func() time.Time { return now })

	id := "ORD-9-9.9.9.9"
	assert.Equal(t, 5, limiter.Remaining(id))
	limiter.Admit(id)
	limiter.Admit(id)
	assert.Equal(t, 3, limiter.Remaining(id))
}

func TestAdmitConcurrent(t *testing.T) {
	limiter := New(60*time.Second, 50)

	var wg sync.WaitGroup
	admitted := make([]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if limiter.Admit("shared-id") {
					admitted[g]++
				}
				limiter.Admit(fmt.Sprintf("own-id-%d", g))
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range admitted {
		total += n
	}
	assert.Equal(t, 50, total, "exactly the ceiling is admitted under contention")
}
