package api

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/middleware"
)

type actionRequest struct {
	CampaignID   string `json:"campaign_id"`
	SubElementID string `json:"sub_element_id,omitempty"`
}

type eventRequest struct {
	CampaignID string         `json:"campaign_id,omitempty"`
	EventName  string         `json:"event_name"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ImpressionHandler handles POST /v1/impression. Repeats within a screen visit
// are dropped by the engine; the response is 204 either way.
func (s *Server) ImpressionHandler(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, "impression", true, s.Engine.RecordImpression)
}

// ClickHandler handles POST /v1/click. Every click is forwarded.
func (s *Server) ClickHandler(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, "click", false, s.Engine.RecordClick)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, endpoint string, throttled bool, record func(ctx context.Context, campaignID, subElementID string)) {
	ctx, span := tracer.Start(r.Context(), "ActionHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v1/"+endpoint),
			attribute.String("action", endpoint),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const method = "POST"

	var req actionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid body")
		logger.Warn("decode "+endpoint+" body", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	span.SetAttributes(
		attribute.String("campaign_id", req.CampaignID),
		attribute.String("sub_element_id", req.SubElementID),
	)
	if throttled && !s.Limiter.Allow(req.CampaignID) {
		span.SetStatus(codes.Error, "rate limited")
		logger.Debug(endpoint+" throttled", zap.String("campaign_id", req.CampaignID))
		s.Metrics.IncrementTracking(endpoint, "rate_limited")
		s.observe(endpoint, method, http.StatusTooManyRequests, start)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	record(ctx, req.CampaignID, req.SubElementID)

	w.WriteHeader(http.StatusNoContent)
	s.observe(endpoint, method, http.StatusNoContent, start)
}

// EventHandler handles POST /v1/event for free-form analytics events.
func (s *Server) EventHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "EventHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v1/event"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "event"
	const method = "POST"

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid body")
		logger.Warn("decode event body", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.EventName == "" {
		logger.Warn("missing event name")
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "event_name required", http.StatusBadRequest)
		return
	}

	span.SetAttributes(attribute.String("event_name", req.EventName))
	s.Engine.RecordGenericEvent(ctx, req.CampaignID, req.EventName, req.Metadata)

	w.WriteHeader(http.StatusNoContent)
	s.observe(endpoint, method, http.StatusNoContent, start)
}
