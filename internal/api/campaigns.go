package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/middleware"
	"github.com/patrickwarner/surfacekit/internal/models"
)

type campaignsResponse struct {
	Screen    string            `json:"screen"`
	Campaigns []models.Campaign `json:"campaigns"`
}

// CampaignsHandler handles GET /v1/campaigns?type=&position=. Without a type
// every live campaign is returned. An unknown type yields an empty list.
func (s *Server) CampaignsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, span := tracer.Start(r.Context(), "CampaignsHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/v1/campaigns"),
			attribute.String("campaign.type", q.Get("type")),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "campaigns"
	const method = "GET"

	position := q.Get("position")
	resp := campaignsResponse{Screen: s.Engine.Screen(), Campaigns: []models.Campaign{}}

	if raw := q.Get("type"); raw != "" {
		t, err := models.ParseCampaignType(raw)
		if err != nil {
			logger.Debug("unknown campaign type requested", zap.String("type", raw))
		} else {
			resp.Campaigns = append(resp.Campaigns, s.Engine.CampaignsOfType(t, position)...)
		}
	} else {
		for _, t := range models.AllCampaignTypes {
			resp.Campaigns = append(resp.Campaigns, s.Engine.CampaignsOfType(t, position)...)
		}
	}

	span.SetAttributes(attribute.Int("campaign.count", len(resp.Campaigns)))
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		logger.Warn("encode campaigns", zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}

// DisableHandler handles POST /v1/campaigns/{id}/disable.
func (s *Server) DisableHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "disable"
	const method = "POST"

	id := mux.Vars(r)["id"]
	s.Engine.DisableCampaign(id)
	middleware.LoggerFromRequest(r, s.Logger).Debug("campaign disabled", zap.String("campaign_id", id))

	w.WriteHeader(http.StatusNoContent)
	s.observe(endpoint, method, http.StatusNoContent, start)
}

type linkResponse struct {
	URL string `json:"url"`
}

// LinkHandler handles GET /v1/campaigns/{id}/link?sub_element_id= and returns
// the macro-expanded destination for a tap. Unknown campaigns yield an empty URL.
func (s *Server) LinkHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "link"
	const method = "GET"

	link, _ := s.Engine.ResolveLink(mux.Vars(r)["id"], r.URL.Query().Get("sub_element_id"))
	if err := writeJSON(w, http.StatusOK, linkResponse{URL: link}); err != nil {
		s.Logger.Warn("encode link", zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}
