package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/middleware"
)

type idsResponse struct {
	IDs []string `json:"ids"`
	// Liked is set by the reel toggle only.
	Liked *bool `json:"liked,omitempty"`
}

type reelLikeRequest struct {
	ReelID string `json:"reel_id"`
}

type storyViewedRequest struct {
	SlideID string `json:"slide_id"`
}

// LikedReelsHandler handles GET /v1/widgets/reels/likes.
func (s *Server) LikedReelsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.writeIDs(w, "reels_likes", "GET", start, idsResponse{IDs: s.Engine.LikedReels(r.Context())})
}

// ToggleReelLikeHandler handles POST /v1/widgets/reels/likes and flips the
// like state of one reel.
func (s *Server) ToggleReelLikeHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "reels_likes"
	const method = "POST"

	var req reelLikeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ReelID == "" {
		middleware.LoggerFromRequest(r, s.Logger).Warn("invalid reel like body", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "reel_id required", http.StatusBadRequest)
		return
	}

	ids, liked := s.Engine.ToggleReelLike(r.Context(), req.ReelID)
	s.writeIDs(w, endpoint, method, start, idsResponse{IDs: ids, Liked: &liked})
}

// ViewedStoriesHandler handles GET /v1/widgets/stories/viewed.
func (s *Server) ViewedStoriesHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.writeIDs(w, "stories_viewed", "GET", start, idsResponse{IDs: s.Engine.ViewedStories(r.Context())})
}

// MarkStoryViewedHandler handles POST /v1/widgets/stories/viewed.
func (s *Server) MarkStoryViewedHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "stories_viewed"
	const method = "POST"

	var req storyViewedRequest
	if err := decodeJSON(w, r, &req); err != nil || req.SlideID == "" {
		middleware.LoggerFromRequest(r, s.Logger).Warn("invalid story viewed body", zap.Error(err))
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "slide_id required", http.StatusBadRequest)
		return
	}

	s.writeIDs(w, endpoint, method, start, idsResponse{IDs: s.Engine.MarkStoryViewed(r.Context(), req.SlideID)})
}

func (s *Server) writeIDs(w http.ResponseWriter, endpoint, method string, start time.Time, resp idsResponse) {
	if resp.IDs == nil {
		resp.IDs = []string{}
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.Logger.Warn("encode ids", zap.String("endpoint", endpoint), zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}
