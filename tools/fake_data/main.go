// Command fake_data serves randomly generated campaigns over the campaign API
// wire format so the bridge server can run without a real backend.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/observability"
)

var (
	addr       = flag.String("addr", ":8080", "listen address")
	screenCSV  = flag.String("screens", "home,cart,profile", "comma-separated screens to generate campaigns for")
	perScreen  = flag.Int("campaigns", 6, "campaigns per screen")
	anchorCSV  = flag.String("anchors", "search,cart,profile", "anchor names targeted by generated tooltips")
	seed       = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	dump       = flag.Bool("dump", false, "print the generated campaigns as JSON and exit")
	acceptOnly = flag.String("account", "", "only this account id validates (empty accepts any)")
)

type backend struct {
	logger    *zap.Logger
	byScreen  map[string][]string
	campaigns map[string]models.Campaign
	account   string

	mu      sync.Mutex
	tokens  map[string]struct{}
	actions int
	events  int
}

func main() {
	flag.Parse()

	logger, err := observability.InitLoggerWithService("fake-campaign-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	r := rand.New(rand.NewSource(*seed))
	b := &backend{
		logger:    logger,
		byScreen:  map[string][]string{},
		campaigns: map[string]models.Campaign{},
		account:   *acceptOnly,
		tokens:    map[string]struct{}{},
	}
	anchors := splitCSV(*anchorCSV)
	for _, screen := range splitCSV(*screenCSV) {
		for i := 0; i < *perScreen; i++ {
			c := fakeCampaign(r, screen, i, anchors)
			b.campaigns[c.ID] = c
			b.byScreen[screen] = append(b.byScreen[screen], c.ID)
		}
	}

	if *dump {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b.campaigns); err != nil {
			logger.Fatal("encode campaigns", zap.Error(err))
		}
		return
	}

	router := mux.NewRouter()
	router.HandleFunc("/v1/accounts/validate", b.validate).Methods("POST")
	router.HandleFunc("/v1/campaigns/eligible", b.authed(b.eligible)).Methods("GET")
	router.HandleFunc("/v1/campaigns/hydrate", b.authed(b.hydrate)).Methods("POST")
	router.HandleFunc("/v1/actions", b.authed(b.record("action"))).Methods("POST")
	router.HandleFunc("/v1/capture", b.authed(b.record("capture"))).Methods("POST")

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Info("fake campaign API running",
		zap.String("addr", *addr),
		zap.Int("campaigns", len(b.campaigns)),
		zap.Int64("seed", *seed))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}

func (b *backend) validate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppID     string `json:"app_id"`
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if b.account != "" && req.AccountID != b.account {
		b.logger.Warn("rejected account", zap.String("account_id", req.AccountID))
		http.Error(w, "unknown account", http.StatusUnauthorized)
		return
	}
	tok := uuid.NewString()
	b.mu.Lock()
	b.tokens[tok] = struct{}{}
	b.mu.Unlock()
	writeJSON(w, map[string]string{"access_token": tok})
}

func (b *backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		_, ok := b.tokens[tok]
		b.mu.Unlock()
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *backend) eligible(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	positions := q["position"]
	ids := []string{}
	for _, id := range b.byScreen[q.Get("screen")] {
		c := b.campaigns[id]
		if len(positions) == 0 || c.Position == "" || contains(positions, c.Position) {
			ids = append(ids, id)
		}
	}
	writeJSON(w, map[string][]string{"campaign_ids": ids})
}

func (b *backend) hydrate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string   `json:"user_id"`
		CampaignIDs []string `json:"campaign_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	out := []models.Campaign{}
	for _, id := range req.CampaignIDs {
		if c, ok := b.campaigns[id]; ok {
			out = append(out, c)
		}
	}
	writeJSON(w, map[string]any{"campaigns": out})
}

func (b *backend) record(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		if kind == "action" {
			b.actions++
		} else {
			b.events++
		}
		b.mu.Unlock()
		b.logger.Info(kind, zap.Any("body", body))
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeCampaign builds the i-th campaign for screen. The first campaign of every
// screen is a tooltip set so showcases can be exercised.
func fakeCampaign(r *rand.Rand, screen string, i int, anchors []string) models.Campaign {
	id := fmt.Sprintf("%s-%d-%s", screen, i, randomString(r, 4))
	link := fmt.Sprintf("app://%s/%s?user={USER_ID}&session={SESSION_ID}", screen, id)
	img := func(n int) string { return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/300", id, n) }

	var details models.CampaignDetails
	position := ""
	if i == 0 {
		tips := make([]models.Tooltip, 0, len(anchors))
		for n, a := range anchors {
			tips = append(tips, models.Tooltip{ID: fmt.Sprintf("%s-tt%d", id, n), Target: a, Order: n + 1})
		}
		details = &models.TooltipSetDetails{Tooltips: tips}
		return models.Campaign{ID: id, Type: details.CampaignType(), Details: details, Screen: screen}
	}

	switch r.Intn(7) {
	case 0:
		details = &models.BannerDetails{Image: img(0), Link: link, Height: 120}
		position = []string{"top", "bottom"}[r.Intn(2)]
	case 1:
		details = &models.FloaterDetails{Image: img(0), Link: link, Width: 64, Height: 64}
	case 2:
		images := make([]models.WidgetImage, 3)
		for n := range images {
			images[n] = models.WidgetImage{ID: fmt.Sprintf("img-%d", n), Image: img(n), Link: link, Order: n}
		}
		details = &models.WidgetDetails{Images: images, Height: 180}
	case 3:
		reels := make([]models.Reel, 4)
		for n := range reels {
			reels[n] = models.Reel{ID: fmt.Sprintf("%s-reel%d", id, n), Video: fmt.Sprintf("https://cdn.example.com/%s/%d.mp4", id, n), Likes: r.Intn(500)}
		}
		details = &models.ReelSetDetails{Reels: reels}
	case 4:
		details = &models.PIPDetails{SmallVideo: fmt.Sprintf("https://cdn.example.com/%s/pip.mp4", id), Link: link}
	case 5:
		details = &models.ModalDetails{Pages: []models.ModalPage{{Image: img(0), Link: link}, {Image: img(1)}}}
	default:
		slides := make([]models.StorySlide, 3)
		for n := range slides {
			slides[n] = models.StorySlide{ID: fmt.Sprintf("%s-s%d", id, n), Image: img(n), DurationMS: 5000}
		}
		details = &models.StorySetDetails{Groups: []models.StoryGroup{{ID: id + "-g", Name: fakeName(r), Slides: slides}}}
	}
	return models.Campaign{ID: id, Type: details.CampaignType(), Details: details, Position: position, Screen: screen}
}

func fakeName(r *rand.Rand) string {
	adjectives := []string{"Fresh", "Weekend", "Flash", "Spring", "Member"}
	nouns := []string{"Deals", "Picks", "Drops", "Stories", "Rewards"}
	return adjectives[r.Intn(len(adjectives))] + " " + nouns[r.Intn(len(nouns))]
}

func randomString(r *rand.Rand, n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
