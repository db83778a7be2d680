package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-key sliding-window admission controller. A key (typically
// a recipient phone number) is allowed at most max admissions within any
// rolling window. Decisions are made in memory and never block.
type Limiter struct {
	mu     sync.Mutex
	keys   map[string]*window
	max    int
	window time.Duration
}

type window struct {
	mu         sync.Mutex
	admissions []time.Time
}

// NewLimiter creates a Limiter allowing max admissions per key within w.
// A background janitor evicts keys that have been idle longer than the
// window, so memory does not grow with the number of distinct recipients.
func NewLimiter(max int, w time.Duration) *Limiter {
	l := &Limiter{
		keys:   make(map[string]*window),
		max:    max,
		window: w,
	}
	go l.janitor()
	return l
}

// Allow reports whether another admission for key fits inside the window,
// recording it if so. Fail-closed: once max admissions have happened within
// the window the call returns false until the window rolls forward.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	win, ok := l.keys[key]
	if !ok {
		win = &window{}
		l.keys[key] = win
	}
	l.mu.Unlock()

	win.mu.Lock()
	defer win.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	// Prune admissions that have rolled out of the window.
	kept := win.admissions[:0]
	for _, t := range win.admissions {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	win.admissions = kept

	if len(win.admissions) >= l.max {
		return false
	}

	win.admissions = append(win.admissions, now)
	return true
}

// Pending returns the number of admissions currently inside the window for
// key. Used by operational endpoints; zero for unknown keys.
func (l *Limiter) Pending(key string) int {
	l.mu.Lock()
	win, ok := l.keys[key]
	l.mu.Unlock()
	if !ok {
		return 0
	}

	win.mu.Lock()
	defer win.mu.Unlock()

	cutoff := time.Now().Add(-l.window)
	n := 0
	for _, t := range win.admissions {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// janitor periodically drops keys with no admissions inside two windows.
func (l *Limiter) janitor() {
	interval := l.window
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * l.window)

		l.mu.Lock()
		for key, win := range l.keys {
			win.mu.Lock()
			stale := len(win.admissions) == 0 ||
				win.admissions[len(win.admissions)-1].Before(cutoff)
			win.mu.Unlock()
			if stale {
				delete(l.keys, key)
			}
		}
		l.mu.Unlock()
	}
}
