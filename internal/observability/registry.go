package observability

import "time"

// MetricsRegistry provides an interface for recording engine metrics so
// components never touch the global Prometheus collectors directly.
type MetricsRegistry interface {
	// Bridge request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Sync pipeline metrics
	IncrementSyncs(outcome string)
	RecordSyncLatency(duration time.Duration)
	SetCampaignsLoaded(n int)
	IncrementCampaignsDropped(reason string)

	// Tracking metrics
	IncrementTracking(kind, outcome string)

	// Sequencer metrics
	IncrementTooltipTransitions(to string)

	// Campaign API metrics
	IncrementAPICalls(operation, outcome string)
	RecordAPILatency(operation string, duration time.Duration)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementSyncs(outcome string) {
	SyncCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordSyncLatency(duration time.Duration) {
	SyncLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) SetCampaignsLoaded(n int) {
	CampaignsLoaded.Set(float64(n))
}

func (r *PrometheusRegistry) IncrementCampaignsDropped(reason string) {
	CampaignsDropped.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementTracking(kind, outcome string) {
	TrackingCount.WithLabelValues(kind, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementTooltipTransitions(to string) {
	TooltipTransitions.WithLabelValues(to).Inc()
}

func (r *PrometheusRegistry) IncrementAPICalls(operation, outcome string) {
	APICalls.WithLabelValues(operation, outcome).Inc()
}

func (r *PrometheusRegistry) RecordAPILatency(operation string, duration time.Duration) {
	APILatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementSyncs(outcome string)                                        {}
func (r *NoOpRegistry) RecordSyncLatency(duration time.Duration)                             {}
func (r *NoOpRegistry) SetCampaignsLoaded(n int)                                             {}
func (r *NoOpRegistry) IncrementCampaignsDropped(reason string)                              {}
func (r *NoOpRegistry) IncrementTracking(kind, outcome string)                               {}
func (r *NoOpRegistry) IncrementTooltipTransitions(to string)                                {}
func (r *NoOpRegistry) IncrementAPICalls(operation, outcome string)                          {}
func (r *NoOpRegistry) RecordAPILatency(operation string, duration time.Duration)            {}
