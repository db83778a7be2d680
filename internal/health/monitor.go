package health

import (
	"sync/atomic"
	"time"
)

// Monitor keeps process-wide delivery counters. Increments are atomic so
// any number of in-flight requests can update them; reads are eventually
// consistent with writes and never block writers.
//
// The error rate is computed over the process lifetime: counters reset only
// on restart.
type Monitor struct {
	sent     atomic.Int64
	received atomic.Int64
	errors   atomic.Int64
	started  time.Time
}

// NewMonitor creates a Monitor with all counters at zero.
func NewMonitor() *Monitor {
	return &Monitor{started: time.Now().UTC()}
}

func (m *Monitor) IncrementMessagesSent()     { m.sent.Add(1) }
func (m *Monitor) IncrementMessagesReceived() { m.received.Add(1) }
func (m *Monitor) IncrementErrors()           { m.errors.Add(1) }

// ErrorRate returns errors / (sent + received), or 0 before any traffic.
func (m *Monitor) ErrorRate() float64 {
	total := m.sent.Load() + m.received.Load()
	if total == 0 {
		return 0
	}
	return float64(m.errors.Load()) / float64(total)
}

// Status is the operational summary exposed on the health endpoint.
type Status struct {
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	Errors           int64     `json:"errors"`
	ErrorRate        float64   `json:"error_rate"`
	StartedAt        time.Time `json:"started_at"`
}

// Status snapshots the counters.
func (m *Monitor) Status() Status {
	return Status{
		MessagesSent:     m.sent.Load(),
		MessagesReceived: m.received.Load(),
		Errors:           m.errors.Load(),
		ErrorRate:        m.ErrorRate(),
		StartedAt:        m.started,
	}
}
