package analytics

import (
	"context"
	"sync"
)

var _ Journal = (*MockAnalytics)(nil)

// MockAnalytics records journal entries in memory for tests.
type MockAnalytics struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from every RecordEvent call.
	Err error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// RecordEvent stores ev.
func (m *MockAnalytics) RecordEvent(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded entries.
func (m *MockAnalytics) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
