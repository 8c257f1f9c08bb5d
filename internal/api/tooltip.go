package api

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/middleware"
	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/placement"
)

type layoutRequest struct {
	Name string            `json:"name"`
	Rect models.LayoutRect `json:"rect"`
	// Removed reports that the element left the composition.
	Removed bool `json:"removed,omitempty"`
}

// LayoutHandler handles POST /v1/layout. The renderer calls it every time a
// tagged element is laid out or removed.
func (s *Server) LayoutHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "layout"
	const method = "POST"

	var req layoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.LoggerFromRequest(r, s.Logger).Warn("decode layout body", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if req.Removed {
		s.Engine.RemoveAnchor(req.Name)
	} else {
		s.Engine.OnLayout(req.Name, req.Rect)
	}

	w.WriteHeader(http.StatusNoContent)
	s.observe(endpoint, method, http.StatusNoContent, start)
}

// TooltipHandler handles GET /v1/tooltip with the sequencer's current cursor.
func (s *Server) TooltipHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "tooltip"
	const method = "GET"

	if err := writeJSON(w, http.StatusOK, s.Engine.CurrentTooltip()); err != nil {
		s.Logger.Warn("encode tooltip", zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}

// HideTooltipHandler handles POST /v1/tooltip/hide.
func (s *Server) HideTooltipHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.Engine.HideTooltip()
	w.WriteHeader(http.StatusNoContent)
	s.observe("tooltip_hide", "POST", http.StatusNoContent, start)
}

// DismissTooltipHandler handles POST /v1/tooltip/dismiss.
func (s *Server) DismissTooltipHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.Engine.DismissTooltip()
	w.WriteHeader(http.StatusNoContent)
	s.observe("tooltip_dismiss", "POST", http.StatusNoContent, start)
}

type placementRequest struct {
	Viewport  models.Rect         `json:"viewport"`
	Popup     models.Size         `json:"popup"`
	Arrow     models.Size         `json:"arrow"`
	Preferred placement.Alignment `json:"preferred"`
}

type placementResponse struct {
	Available bool                 `json:"available"`
	TooltipID string               `json:"tooltip_id,omitempty"`
	Placement *placement.Placement `json:"placement,omitempty"`
}

// PlacementHandler handles POST /v1/tooltip/placement. It positions the current
// tooltip's popup against its anchor; available is false when nothing can be
// placed.
func (s *Server) PlacementHandler(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "PlacementHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v1/tooltip/placement"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "tooltip_placement"
	const method = "POST"

	var req placementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("decode placement body", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var resp placementResponse
	if p, ok := s.Engine.TooltipPlacement(req.Viewport, req.Popup, req.Arrow, req.Preferred); ok {
		resp.Available = true
		resp.Placement = &p
		if cur := s.Engine.CurrentTooltip(); cur.Tooltip != nil {
			resp.TooltipID = cur.Tooltip.ID
		}
		span.SetAttributes(attribute.String("placement.alignment", p.Alignment.String()))
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		logger.Warn("encode placement", zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}
