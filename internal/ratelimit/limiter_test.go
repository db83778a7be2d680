package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsUpToMax(t *testing.T) {
	l := NewLimiter(3, time.Minute)

	assert.True(t, l.Allow("+15550001"))
	assert.True(t, l.Allow("+15550001"))
	assert.True(t, l.Allow("+15550001"))
	assert.False(t, l.Allow("+15550001"), "4th admission within the window must be denied")
}

func TestLimiterWindowRollsForward(t *testing.T) {
	l := NewLimiter(2, 50*time.Millisecond)

	assert.True(t, l.Allow("key"))
	assert.True(t, l.Allow("key"))
	assert.False(t, l.Allow("key"))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, l.Allow("key"), "admissions must be allowed again once the window rolls")
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "exhausting one key must not affect another")
}

func TestLimiterPending(t *testing.T) {
	l := NewLimiter(5, time.Minute)

	assert.Equal(t, 0, l.Pending("key"))
	l.Allow("key")
	l.Allow("key")
	assert.Equal(t, 2, l.Pending("key"))
}

func TestLimiterConcurrentSameKey(t *testing.T) {
	const max = 50
	l := NewLimiter(max, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, allowed, "exactly max admissions must win under contention")
}
