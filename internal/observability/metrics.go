package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// bridge requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacekit_requests_total",
			Help: "Total bridge API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// bridge request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surfacekit_request_duration_seconds",
			Help:    "Histogram of bridge request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// screen syncs labelled by outcome
	SyncCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacekit_syncs_total",
			Help: "Total campaign syncs by outcome",
		},
		[]string{"outcome"},
	)

	SyncLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surfacekit_sync_duration_seconds",
			Help:    "Duration of campaign syncs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// campaigns in the store after the last completed sync
	CampaignsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "surfacekit_campaigns_loaded",
			Help: "Campaigns held by the store",
		},
	)

	// campaigns elided from a hydrated batch
	CampaignsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacekit_campaigns_dropped_total",
			Help: "Campaign payloads dropped during decode",
		},
		[]string{"reason"},
	)

	// tracking records labelled by kind (impression, click, event) and outcome
	TrackingCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacekit_tracking_total",
			Help: "Tracking records by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// sequencer state transitions
	TooltipTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacekit_tooltip_transitions_total",
			Help: "Tooltip showcase state transitions",
		},
		[]string{"to"},
	)

	// campaign API calls labelled by operation and outcome
	APICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfacekit_api_calls_total",
			Help: "Campaign API calls",
		},
		[]string{"operation", "outcome"},
	)

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surfacekit_api_call_duration_seconds",
			Help:    "Duration of campaign API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		SyncCount,
		SyncLatency,
		CampaignsLoaded,
		CampaignsDropped,
		TrackingCount,
		TooltipTransitions,
		APICalls,
		APILatency,
	)
}
