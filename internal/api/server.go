// Package api is the HTTP bridge between a renderer process and the campaign
// engine. Handlers never surface engine failures: reads degrade to empty
// results and writes answer 204. When throttling is enabled, impression calls
// over the per-campaign rate answer 429.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/config"
	"github.com/patrickwarner/surfacekit/internal/engine"
	"github.com/patrickwarner/surfacekit/internal/middleware"
	"github.com/patrickwarner/surfacekit/internal/observability"
	"github.com/patrickwarner/surfacekit/internal/ratelimit"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var tracer = observability.Tracer("api")

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger  *zap.Logger
	Engine  *engine.Engine
	Metrics observability.MetricsRegistry
	Config  config.Config
	Limiter *ratelimit.KeyedLimiter
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, eng *engine.Engine, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:  logger.Named("api"),
		Engine:  eng,
		Metrics: metrics,
		Config:  cfg,
		Limiter: ratelimit.NewKeyedLimiter(ratelimit.Config{
			Capacity:   cfg.TrackingRateBurst,
			RefillRate: cfg.TrackingRatePerSec,
			Enabled:    cfg.TrackingRateLimit,
		}),
	}
}

// Router returns the bridge routes wrapped in tracing and trace-aware logging.
// withMetrics mounts the Prometheus scrape endpoint.
func (s *Server) Router(withMetrics bool) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))

	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	if withMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/init", s.InitHandler).Methods("POST")
	v1.HandleFunc("/screens/{screen}/sync", s.SyncHandler).Methods("POST")
	v1.HandleFunc("/campaigns", s.CampaignsHandler).Methods("GET")
	v1.HandleFunc("/campaigns/{id}/disable", s.DisableHandler).Methods("POST")
	v1.HandleFunc("/campaigns/{id}/link", s.LinkHandler).Methods("GET")

	v1.HandleFunc("/impression", s.ImpressionHandler).Methods("POST")
	v1.HandleFunc("/click", s.ClickHandler).Methods("POST")
	v1.HandleFunc("/event", s.EventHandler).Methods("POST")

	v1.HandleFunc("/layout", s.LayoutHandler).Methods("POST")
	v1.HandleFunc("/tooltip", s.TooltipHandler).Methods("GET")
	v1.HandleFunc("/tooltip/hide", s.HideTooltipHandler).Methods("POST")
	v1.HandleFunc("/tooltip/dismiss", s.DismissTooltipHandler).Methods("POST")
	v1.HandleFunc("/tooltip/placement", s.PlacementHandler).Methods("POST")

	v1.HandleFunc("/widgets/reels/likes", s.LikedReelsHandler).Methods("GET")
	v1.HandleFunc("/widgets/reels/likes", s.ToggleReelLikeHandler).Methods("POST")
	v1.HandleFunc("/widgets/stories/viewed", s.ViewedStoriesHandler).Methods("GET")
	v1.HandleFunc("/widgets/stories/viewed", s.MarkStoryViewedHandler).Methods("POST")

	v1.HandleFunc("/debug/sync", s.SyncTraceHandler).Methods("GET")

	return otelhttp.NewHandler(r, "bridge")
}

// observe records the request counter and latency for one handled request.
func (s *Server) observe(endpoint, method string, status int, start time.Time) {
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
