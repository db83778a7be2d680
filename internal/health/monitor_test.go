package health

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorCounters(t *testing.T) {
	m := NewMonitor()

	m.IncrementMessagesSent()
	m.IncrementMessagesSent()
	m.IncrementMessagesReceived()
	m.IncrementErrors()

	st := m.Status()
	assert.Equal(t, int64(2), st.MessagesSent)
	assert.Equal(t, int64(1), st.MessagesReceived)
	assert.Equal(t, int64(1), st.Errors)
}

func TestMonitorErrorRate(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, 0.0, m.ErrorRate(), "no traffic means no error rate")

	m.IncrementMessagesSent()
	m.IncrementMessagesReceived()
	m.IncrementMessagesReceived()
	m.IncrementMessagesReceived()
	m.IncrementErrors()

	assert.InDelta(t, 0.25, m.ErrorRate(), 1e-9)
}

func TestMonitorConcurrentIncrements(t *testing.T) {
	m := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); m.IncrementMessagesSent() }()
		go func() { defer wg.Done(); m.IncrementMessagesReceived() }()
		go func() { defer wg.Done(); m.IncrementErrors() }()
	}
	wg.Wait()

	st := m.Status()
	assert.Equal(t, int64(100), st.MessagesSent)
	assert.Equal(t, int64(100), st.MessagesReceived)
	assert.Equal(t, int64(100), st.Errors)
	assert.InDelta(t, 0.5, st.ErrorRate, 1e-9)
}
