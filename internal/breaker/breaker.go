package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the circuit breaker's position in its state machine.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned when a call is short-circuited because the breaker is
// open. It is distinct from the wrapped operation's own errors so callers
// can tell "provider refused" from "we refused to ask".
var ErrOpen = errors.New("circuit open")

// Breaker guards calls to a failing dependency. After threshold consecutive
// failures it opens and rejects calls without attempting them; after the
// cooldown a single trial call is let through, and its outcome decides
// whether the circuit closes again.
//
// One Breaker instance is shared by all outbound provider calls; all
// transitions happen under its mutex.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	threshold    int
	cooldown     time.Duration
	lastChange   time.Time
	trialRunning bool

	log *slog.Logger
}

// New creates a closed Breaker tripping after threshold consecutive
// failures and cooling down for cooldown before probing again.
func New(threshold int, cooldown time.Duration, log *slog.Logger) *Breaker {
	return &Breaker{
		state:      StateClosed,
		threshold:  threshold,
		cooldown:   cooldown,
		lastChange: time.Now(),
		log:        log,
	}
}

// Execute runs op through the breaker. When the circuit is open it returns
// ErrOpen immediately without invoking op. Otherwise op's own error is
// returned after the breaker has updated its state.
func (b *Breaker) Execute(op func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := op()
	b.record(err)
	return err
}

// admit decides whether a call may proceed, performing the OPEN→HALF_OPEN
// transition when the cooldown has elapsed. Exactly one caller wins the
// half-open trial slot.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.lastChange) < b.cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.trialRunning = true
		return nil

	case StateHalfOpen:
		if b.trialRunning {
			return ErrOpen
		}
		b.trialRunning = true
		return nil
	}
	return nil
}

// record applies an attempt's outcome to the state machine.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialRunning = false
		if err != nil {
			b.transition(StateOpen)
			return
		}
		b.failures = 0
		b.transition(StateClosed)
		return
	}

	if err == nil {
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateClosed && b.failures >= b.threshold {
		b.transition(StateOpen)
	}
}

// transition must be called with the mutex held.
func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	b.log.Warn("circuit breaker state change",
		"from", string(b.state),
		"to", string(next),
		"consecutive_failures", b.failures,
	)
	b.state = next
	b.lastChange = time.Now()
}

// State returns the current state without advancing the machine.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
