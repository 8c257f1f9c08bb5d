package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/middleware"
	"github.com/patrickwarner/surfacekit/internal/syncer"
)

// InitHandler handles POST /v1/init. Fields missing from the body fall back to
// the configured session defaults and the request's User-Agent.
func (s *Server) InitHandler(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "InitHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v1/init"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "init"
	const method = "POST"

	var sess syncer.Session
	if err := decodeJSON(w, r, &sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid body")
		logger.Warn("decode init body", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if sess.AppID == "" {
		sess.AppID = s.Config.AppID
	}
	if sess.AccountID == "" {
		sess.AccountID = s.Config.AccountID
	}
	if sess.UserID == "" {
		sess.UserID = s.Config.UserID
	}
	if sess.UserAgent == "" {
		sess.UserAgent = r.UserAgent()
	}

	span.SetAttributes(attribute.String("user_id", sess.UserID))
	logger.Info("initialize session", zap.String("app_id", sess.AppID), zap.String("user_id", sess.UserID))

	s.Engine.Initialize(sess)

	w.WriteHeader(http.StatusNoContent)
	s.observe(endpoint, method, http.StatusNoContent, start)
}

// SyncHandler handles POST /v1/screens/{screen}/sync. Repeated position query
// parameters narrow eligibility.
func (s *Server) SyncHandler(w http.ResponseWriter, r *http.Request) {
	screen := mux.Vars(r)["screen"]
	_, span := tracer.Start(r.Context(), "SyncHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v1/screens/{screen}/sync"),
			attribute.String("screen", screen),
		))
	defer span.End()

	start := time.Now()
	const endpoint = "sync"
	const method = "POST"

	s.Engine.SyncScreen(screen, r.URL.Query()["position"]...)

	w.WriteHeader(http.StatusNoContent)
	s.observe(endpoint, method, http.StatusNoContent, start)
}

// SyncTraceHandler handles GET /v1/debug/sync with the trace of the most
// recent sync.
func (s *Server) SyncTraceHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "debug_sync"
	const method = "GET"

	tr := s.Engine.LastSyncTrace()
	if tr == nil {
		w.WriteHeader(http.StatusNoContent)
		s.observe(endpoint, method, http.StatusNoContent, start)
		return
	}
	if err := writeJSON(w, http.StatusOK, tr); err != nil {
		s.Logger.Warn("encode sync trace", zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}
