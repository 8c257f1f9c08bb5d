package observability

import (
	"sync"
	"time"
)

var _ MetricsRegistry = (*MockMetricsRegistry)(nil)

// MockMetricsRegistry records counter increments so tests can assert on them.
// Latencies and gauges are ignored.
type MockMetricsRegistry struct {
	mu       sync.Mutex
	counters map[string]int
}

// Count returns how many times the named counter was incremented. Names are
// the method suffix joined with its labels, e.g. "tracking:impression:forwarded".
func (m *MockMetricsRegistry) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *MockMetricsRegistry) inc(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
	m.counters[name]++
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests:" + endpoint + ":" + status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementSyncs(outcome string)                                        { m.inc("syncs:" + outcome) }
func (m *MockMetricsRegistry) RecordSyncLatency(duration time.Duration)                             {}
func (m *MockMetricsRegistry) SetCampaignsLoaded(n int)                                             {}
func (m *MockMetricsRegistry) IncrementCampaignsDropped(reason string) {
	m.inc("campaigns_dropped:" + reason)
}
func (m *MockMetricsRegistry) IncrementTracking(kind, outcome string) {
	m.inc("tracking:" + kind + ":" + outcome)
}
func (m *MockMetricsRegistry) IncrementTooltipTransitions(to string) { m.inc("tooltip:" + to) }
func (m *MockMetricsRegistry) IncrementAPICalls(operation, outcome string) {
	m.inc("api:" + operation + ":" + outcome)
}
func (m *MockMetricsRegistry) RecordAPILatency(operation string, duration time.Duration) {}
