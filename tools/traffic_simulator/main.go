// Command traffic_simulator drives a running bridge server the way a renderer
// would: screen switches, layout reports, impressions, clicks and widget
// interactions.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/surfacekit/internal/config"
	"github.com/patrickwarner/surfacekit/internal/db"
	"github.com/patrickwarner/surfacekit/internal/observability"
)

var (
	server    string
	screenCSV string
	anchorCSV string
	totalReq  int
	conc      int
	duration  time.Duration
	rate      float64
	clickRate float64
	likeRate  float64
	stats     bool
	flush     bool
	redisAddr string
	debug     bool
	label     string
	userID    string
	jitter    float64
)

var logger *zap.Logger

var httpClient *http.Client

var userAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 15_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.2 Mobile/15E148 Safari/604.1",
}

const statsInterval = 5 * time.Second

var (
	countSent   uint64
	countErrors uint64
	countImps   uint64
	countClicks uint64
	countSyncs  uint64
)

type campaign struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type campaignsResponse struct {
	Screen    string     `json:"screen"`
	Campaigns []campaign `json:"campaigns"`
}

func main() {
	flag.StringVar(&server, "server", "http://localhost:8787", "bridge server base URL")
	flag.StringVar(&screenCSV, "screens", "home,cart,profile", "comma-separated screens to cycle through")
	flag.StringVar(&anchorCSV, "anchors", "search,cart,profile", "comma-separated anchor names to report layouts for")
	flag.IntVar(&totalReq, "requests", 1000, "total renderer iterations")
	flag.IntVar(&conc, "concurrency", 4, "concurrent iterations")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "iterations per second (0 for unlimited)")
	flag.Float64Var(&clickRate, "click-rate", 0.05, "probability of a click per impression")
	flag.Float64Var(&likeRate, "like-rate", 0.02, "probability of liking a reel per iteration")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "flush redis ledger keys before sending traffic")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.StringVar(&userID, "user", "sim-user", "user id sent on init")
	flag.Float64Var(&jitter, "jitter", 0.0, "random jitter factor for request spacing")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   conc,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	if flush {
		flushLedger()
	}

	screens := splitCSV(screenCSV)
	anchors := splitCSV(anchorCSV)
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := post("/v1/init", map[string]any{"user_id": userID, "user_agent": userAgents[r.Intn(len(userAgents))]}); err != nil {
		logger.Fatal("init session", zap.Error(err))
	}

	var wg sync.WaitGroup
	var rmu sync.Mutex
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var baseInterval time.Duration
	if rate > 0 {
		baseInterval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && totalReq > 0 {
		baseInterval = duration / time.Duration(totalReq)
	}

	start := time.Now()
	next := start

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					return
				}
			}
		}()
	}

	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if baseInterval > 0 {
			effective := baseInterval
			if jitter > 0 {
				jf := 1 + (r.Float64()*2-1)*jitter
				if jf < 0.1 {
					jf = 0.1
				}
				effective = time.Duration(float64(effective) * jf)
			}
			next = next.Add(effective)
			if d := time.Until(next); d > 0 {
				time.Sleep(d)
			}
		}

		rmu.Lock()
		screen := screens[r.Intn(len(screens))]
		seed := r.Int63()
		rmu.Unlock()

		sem <- struct{}{}
		wg.Add(1)
		go func(screen string, seed int64) {
			defer wg.Done()
			defer func() { <-sem }()
			iterate(screen, anchors, rand.New(rand.NewSource(seed)))
		}(screen, seed)
	}

	wg.Wait()
	close(done)
	printStats()
	logger.Info("simulation finished", zap.String("label", label), zap.Duration("elapsed", time.Since(start)))
}

// iterate plays one renderer visit to screen.
func iterate(screen string, anchors []string, r *rand.Rand) {
	atomic.AddUint64(&countSent, 1)

	if err := post("/v1/screens/"+url.PathEscape(screen)+"/sync", nil); err != nil {
		fail("sync", err)
		return
	}
	atomic.AddUint64(&countSyncs, 1)

	for i, name := range anchors {
		layout := map[string]any{
			"name": name,
			"rect": map[string]any{
				"size":               map[string]float64{"width": 80, "height": 40},
				"position_in_window": map[string]float64{"x": float64(20 + 100*i), "y": float64(100 + r.Intn(600))},
			},
		}
		if err := post("/v1/layout", layout); err != nil {
			fail("layout", err)
		}
	}

	var resp campaignsResponse
	if err := get("/v1/campaigns", &resp); err != nil {
		fail("campaigns", err)
		return
	}
	for _, c := range resp.Campaigns {
		if err := post("/v1/impression", map[string]string{"campaign_id": c.ID}); err != nil {
			fail("impression", err)
			continue
		}
		atomic.AddUint64(&countImps, 1)
		if r.Float64() < clickRate {
			if err := post("/v1/click", map[string]string{"campaign_id": c.ID}); err != nil {
				fail("click", err)
				continue
			}
			atomic.AddUint64(&countClicks, 1)
		}
		if c.Type == "REEL_SET" && r.Float64() < likeRate {
			if err := post("/v1/widgets/reels/likes", map[string]string{"reel_id": c.ID + "-reel"}); err != nil {
				fail("like", err)
			}
		}
	}

	if r.Float64() < 0.5 {
		if err := post("/v1/tooltip/dismiss", nil); err != nil {
			fail("dismiss", err)
		}
	}
	logger.Debug("iteration done", zap.String("screen", screen), zap.Int("campaigns", len(resp.Campaigns)))
}

func post(path string, body any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send(req, nil)
}

func get(path string, out any) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server+path, nil)
	if err != nil {
		return err
	}
	return send(req, out)
}

func send(req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: http %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fail(step string, err error) {
	atomic.AddUint64(&countErrors, 1)
	logger.Warn("request failed", zap.String("step", step), zap.Error(err))
}

func flushLedger() {
	cfg := config.Load()
	addr := redisAddr
	if addr == "" {
		addr = cfg.RedisAddr
	}
	ctx := context.Background()
	store, err := db.InitRedis(ctx, addr)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer store.Close()

	keys, err := store.Client.Keys(ctx, "ledger:*").Result()
	if err != nil {
		logger.Error("failed to list ledger keys", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := store.Client.Del(ctx, keys...).Err(); err != nil {
			logger.Error("failed to delete ledger keys", zap.Error(err))
			return
		}
	}
	logger.Info("redis ledger flushed", zap.String("addr", addr), zap.Int("keys_deleted", len(keys)))
}

func printStats() {
	logger.Info("stats",
		zap.String("label", label),
		zap.Uint64("iterations", atomic.LoadUint64(&countSent)),
		zap.Uint64("syncs", atomic.LoadUint64(&countSyncs)),
		zap.Uint64("impressions", atomic.LoadUint64(&countImps)),
		zap.Uint64("clicks", atomic.LoadUint64(&countClicks)),
		zap.Uint64("errors", atomic.LoadUint64(&countErrors)))
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"home"}
	}
	return out
}
