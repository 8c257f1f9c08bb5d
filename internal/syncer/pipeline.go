// Package syncer keeps the campaign store in step with the screen the user is
// looking at.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/campaignapi"
	"github.com/patrickwarner/surfacekit/internal/logic"
	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/observability"
	"github.com/patrickwarner/surfacekit/internal/token"
)

// ErrNotInitialized is returned by SyncScreen before Initialize.
var ErrNotInitialized = errors.New("sync pipeline not initialized")

// Sync outcomes, used for metrics and traces.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeUnauthorized = "unauthorized"
	OutcomeSkipped      = "skipped"
)

// Session identifies the app, account and user campaigns are fetched for.
type Session struct {
	AppID      string            `json:"app_id"`
	AccountID  string            `json:"account_id"`
	UserID     string            `json:"user_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	// UserAgent, when set, is parsed into device and OS attributes.
	UserAgent string `json:"user_agent,omitempty"`
}

// ScreenChangeFunc runs when a sync moves to a different screen, before any
// campaign is fetched for it.
type ScreenChangeFunc func(ctx context.Context, from, to string)

// Pipeline fetches eligible campaigns and swaps them into the store.
// Syncs are serialised on syncMu; mu only guards state and is never held
// across a backend call, so readers never wait on a sync.
type Pipeline struct {
	api           campaignapi.API
	store         models.CampaignStore
	token         *token.Cache
	logger        *zap.Logger
	metrics       observability.MetricsRegistry
	tracer        trace.Tracer
	defaultScreen string

	syncMu sync.Mutex

	mu          sync.Mutex
	initialized bool
	session     Session
	screen      string
	hooks       []ScreenChangeFunc
	lastTrace   *logic.SyncTrace
}

// New creates a pipeline writing into store. defaultScreen is synced by
// Initialize.
func New(api campaignapi.API, store models.CampaignStore, defaultScreen string, logger *zap.Logger, metrics observability.MetricsRegistry) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Pipeline{
		api:           api,
		store:         store,
		token:         &token.Cache{},
		logger:        logger.Named("syncer"),
		metrics:       metrics,
		tracer:        observability.Tracer("syncer"),
		defaultScreen: defaultScreen,
	}
}

// OnScreenChange registers fn to run on every distinct screen transition.
func (p *Pipeline) OnScreenChange(fn ScreenChangeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, fn)
}

// Token exposes the session's access token cache to the tracking forwarder.
func (p *Pipeline) Token() *token.Cache {
	return p.token
}

// Initialize validates the account and syncs the default screen. Only the
// first call does anything; later calls return nil.
func (p *Pipeline) Initialize(ctx context.Context, s Session) error {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		p.logger.Debug("initialize called again, ignoring")
		return nil
	}
	p.initialized = true
	s.Attributes = logic.MergeAttributes(logic.AttributesFromUserAgent(s.UserAgent), s.Attributes)
	p.session = s
	p.mu.Unlock()

	tok, err := p.api.ValidateAccount(ctx, s.AppID, s.AccountID)
	if err != nil {
		// no retry: without a token every sync is a no-op for this session
		p.token.Revoke()
		p.logger.Error("account validation failed",
			zap.String("app_id", s.AppID),
			zap.String("account_id", s.AccountID),
			zap.Error(err))
		p.metrics.IncrementSyncs(OutcomeUnauthorized)
		return fmt.Errorf("validate account: %w", err)
	}
	p.token.Set(tok)
	p.logger.Info("account validated",
		zap.String("app_id", s.AppID),
		zap.String("user_id", s.UserID),
		zap.String("token", token.Redact(tok)))

	return p.SyncScreen(ctx, p.defaultScreen)
}

// Initialized reports whether Initialize has been called.
func (p *Pipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// Session returns the session passed to Initialize, attributes included.
func (p *Pipeline) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.session
	s.Attributes = logic.MergeAttributes(nil, p.session.Attributes)
	return s
}

// Screen returns the screen the pipeline currently tracks.
func (p *Pipeline) Screen() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screen
}

// LastTrace returns the trace of the most recent sync, or nil.
func (p *Pipeline) LastTrace() *logic.SyncTrace {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastTrace == nil {
		return nil
	}
	t := *p.lastTrace
	t.Steps = append([]logic.TraceStep(nil), p.lastTrace.Steps...)
	return &t
}

// SyncScreen refreshes the store for screen, optionally narrowed to positions.
// A failed sync leaves the store untouched. Once the access token is lost
// the store is emptied and every later sync returns ErrAuthUnavailable.
func (p *Pipeline) SyncScreen(ctx context.Context, screen string, positions ...string) (err error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return ErrNotInitialized
	}
	session := p.session
	from := p.screen
	changed := screen != from
	p.screen = screen
	hooks := append([]ScreenChangeFunc(nil), p.hooks...)
	p.mu.Unlock()

	ctx, span := p.tracer.Start(ctx, "syncer.SyncScreen",
		trace.WithAttributes(
			attribute.String("screen", screen),
			attribute.StringSlice("positions", positions),
		))
	defer span.End()

	start := time.Now()
	st := &logic.SyncTrace{Screen: screen, StartedAt: start}
	outcome := OutcomeSuccess
	defer func() {
		st.Outcome = outcome
		p.mu.Lock()
		p.lastTrace = st
		p.mu.Unlock()
		p.metrics.IncrementSyncs(outcome)
		p.metrics.RecordSyncLatency(time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
	}()

	// the screen is already current when hooks run, so anything they
	// trigger sees the new screen
	if changed {
		p.store.ClearDisabled()
		for _, fn := range hooks {
			fn(ctx, from, screen)
		}
		st.AddStepWithDetails("screen_changed", nil, map[string]string{"from": from})
	}

	tok, err := p.token.Get()
	if err != nil {
		outcome = OutcomeSkipped
		p.store.Replace(screen, nil)
		return fmt.Errorf("sync %s: %w", screen, campaignapi.ErrAuthUnavailable)
	}

	ids, err := p.api.ListEligibleCampaigns(ctx, tok, screen, positions)
	if err != nil {
		outcome = p.failed(screen, err)
		p.logger.Warn("list eligible campaigns", zap.String("screen", screen), zap.Error(err))
		return fmt.Errorf("sync %s: eligible: %w", screen, err)
	}
	st.AddStep("eligible", ids)

	var campaigns []models.Campaign
	if len(ids) > 0 {
		raws, err := p.api.HydrateCampaigns(ctx, tok, session.UserID, ids, session.Attributes)
		if err != nil {
			outcome = p.failed(screen, err)
			p.logger.Warn("hydrate campaigns", zap.String("screen", screen), zap.Error(err))
			return fmt.Errorf("sync %s: hydrate: %w", screen, err)
		}
		campaigns = models.DecodeCampaigns(raws, func(i int, derr error) {
			reason := "invalid"
			if errors.Is(derr, models.ErrUnknownCampaignType) {
				reason = "unknown_type"
			}
			p.metrics.IncrementCampaignsDropped(reason)
			p.logger.Warn("dropping campaign", zap.Int("index", i), zap.String("reason", reason), zap.Error(derr))
		})
		for i := range campaigns {
			if campaigns[i].Screen == "" {
				campaigns[i].Screen = screen
			}
		}
	}

	decoded := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		decoded = append(decoded, c.ID)
	}
	st.AddStepWithDetails("decoded", decoded, map[string]string{"dropped": fmt.Sprint(len(ids) - len(campaigns))})

	p.store.Replace(screen, campaigns)
	p.metrics.SetCampaignsLoaded(len(campaigns))
	span.SetAttributes(attribute.Int("campaigns", len(campaigns)))

	p.logger.Debug("screen synced",
		zap.String("screen", screen),
		zap.Int("eligible", len(ids)),
		zap.Int("campaigns", len(campaigns)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// failed classifies a sync error. An auth rejection revokes the token and
// empties the store.
func (p *Pipeline) failed(screen string, err error) string {
	if errors.Is(err, campaignapi.ErrUnauthorized) {
		p.token.Revoke()
		p.store.Replace(screen, nil)
		p.logger.Error("campaign api rejected the access token; syncing disabled for this session")
		return OutcomeUnauthorized
	}
	return OutcomeFailure
}
