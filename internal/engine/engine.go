// Package engine wires the campaign store, sync pipeline, tracking forwarder,
// tooltip sequencer and placement calculator into one service object the
// renderer talks to.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/analytics"
	"github.com/patrickwarner/surfacekit/internal/anchors"
	"github.com/patrickwarner/surfacekit/internal/campaignapi"
	"github.com/patrickwarner/surfacekit/internal/config"
	"github.com/patrickwarner/surfacekit/internal/kvstore"
	"github.com/patrickwarner/surfacekit/internal/logic"
	"github.com/patrickwarner/surfacekit/internal/macros"
	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/observability"
	"github.com/patrickwarner/surfacekit/internal/placement"
	"github.com/patrickwarner/surfacekit/internal/showcase"
	"github.com/patrickwarner/surfacekit/internal/syncer"
	"github.com/patrickwarner/surfacekit/internal/tracking"
)

// Deps are the collaborators of an Engine. API is required; everything else
// falls back to an in-memory or no-op implementation.
type Deps struct {
	Config  config.Config
	API     campaignapi.API
	Store   models.CampaignStore
	Ledger  logic.ImpressionLedger
	KV      kvstore.Store
	Journal analytics.Journal
	Macros  *macros.Service
	Logger  *zap.Logger
	Metrics observability.MetricsRegistry
	// SessionID scopes shared ledgers and deep-link macros. Generated when empty.
	SessionID string
}

// Engine is the campaign engine for one app session.
type Engine struct {
	cfg       config.Config
	sessionID string
	logger    *zap.Logger
	metrics   observability.MetricsRegistry

	store     models.CampaignStore
	anchors   *anchors.Registry
	pipeline  *syncer.Pipeline
	forwarder *tracking.Forwarder
	sequencer *showcase.Sequencer
	macros    *macros.Service
	kv        kvstore.Store

	sup    *Supervisor
	syncQ  *ticketQueue
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	seqDone   chan struct{}
	closeOnce sync.Once
}

// New wires an engine. Call Start to run the tooltip sequencer.
func New(d Deps) (*Engine, error) {
	if d.API == nil {
		return nil, errors.New("engine: campaign API is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := d.Metrics
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	store := d.Store
	if store == nil {
		store = models.NewInMemoryCampaignStore()
	}
	kv := d.KV
	if kv == nil {
		kv = kvstore.NewMemoryStore()
	}
	ms := d.Macros
	if ms == nil {
		ms = macros.NewService(logger)
	}
	sessionID := d.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       d.Config,
		sessionID: sessionID,
		logger:    logger.Named("engine").With(zap.String("session_id", sessionID)),
		metrics:   metrics,
		store:     store,
		anchors:   anchors.NewRegistry(),
		macros:    ms,
		kv:        kv,
		syncQ:     newTicketQueue(),
		ctx:       ctx,
		cancel:    cancel,
		seqDone:   make(chan struct{}),
	}
	e.sup = NewSupervisor(e.logger)

	e.pipeline = syncer.New(d.API, store, d.Config.DefaultScreen, e.logger, metrics)
	e.forwarder = tracking.New(tracking.Deps{
		API:      d.API,
		Tokens:   e.pipeline.Token(),
		Ledger:   d.Ledger,
		Journal:  d.Journal,
		Launcher: e.sup,
		Logger:   e.logger,
		Metrics:  metrics,
		Timeout:  d.Config.APITimeout,
	})
	e.sequencer = showcase.New(showcase.StoreSource{Store: store, Screen: e.pipeline.Screen}, e.anchors, d.Config.TooltipPollInterval, e.logger, metrics)

	e.pipeline.OnScreenChange(func(ctx context.Context, from, to string) {
		e.forwarder.Reset(ctx, to)
		e.sequencer.ResetViewed()
		e.logger.Debug("screen changed", zap.String("from", from), zap.String("to", to))
	})
	return e, nil
}

// Start runs the tooltip sequencer until ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		context.AfterFunc(ctx, e.cancel)
		go func() {
			defer close(e.seqDone)
			if err := e.sequencer.Run(e.ctx); err != nil {
				e.logger.Error("tooltip sequencer stopped", zap.Error(err))
			}
		}()
	})
}

// SessionID identifies this engine's session.
func (e *Engine) SessionID() string { return e.sessionID }

// Screen returns the screen the engine last synced for.
func (e *Engine) Screen() string { return e.pipeline.Screen() }

// Initialize validates the account and syncs the default screen in the
// background. Only the first call has any effect.
func (e *Engine) Initialize(s syncer.Session) {
	e.forwarder.SetUser(s.UserID)
	e.runSync("initialize", func(ctx context.Context) error {
		return e.pipeline.Initialize(ctx, s)
	})
}

// SyncScreen refreshes campaigns for screen in the background. Syncs run in
// call order.
func (e *Engine) SyncScreen(screen string, positions ...string) {
	e.runSync("sync:"+screen, func(ctx context.Context) error {
		return e.pipeline.SyncScreen(ctx, screen, positions...)
	})
}

func (e *Engine) runSync(name string, fn func(ctx context.Context) error) {
	ticket := e.syncQ.take()
	e.sup.Go(name, func() {
		e.syncQ.wait(ticket)
		defer e.syncQ.done()
		if e.ctx.Err() != nil {
			return
		}
		if err := fn(e.ctx); err != nil {
			if errors.Is(err, campaignapi.ErrAuthUnavailable) || errors.Is(err, syncer.ErrNotInitialized) {
				e.logger.Debug("sync skipped", zap.String("task", name), zap.Error(err))
				return
			}
			e.logger.Warn("sync failed", zap.String("task", name), zap.Error(err))
		}
	})
}

// CampaignsOfType returns the eligible campaigns of type t, optionally
// narrowed to position. It never blocks on a sync.
func (e *Engine) CampaignsOfType(t models.CampaignType, position string) []models.Campaign {
	return e.store.CampaignsOfType(t, position)
}

// Campaign returns the single eligible campaign of type t for position, or nil.
func (e *Engine) Campaign(t models.CampaignType, position string) *models.Campaign {
	return e.store.Campaign(t, position)
}

// CampaignByID looks a campaign up in the current set, disabled ones included.
func (e *Engine) CampaignByID(id string) (models.Campaign, bool) {
	for _, c := range e.store.All() {
		if c.ID == id {
			return c, true
		}
	}
	return models.Campaign{}, false
}

// DisableCampaign hides a campaign the user closed until the next screen change.
func (e *Engine) DisableCampaign(campaignID string) {
	e.store.Disable(campaignID)
}

// SubscribeCampaigns signals every change of the campaign set.
func (e *Engine) SubscribeCampaigns() (<-chan struct{}, func()) {
	return e.store.Subscribe()
}

func (e *Engine) RecordImpression(ctx context.Context, campaignID, subElementID string) {
	e.forwarder.RecordImpression(ctx, campaignID, subElementID)
}

func (e *Engine) RecordClick(ctx context.Context, campaignID, subElementID string) {
	e.forwarder.RecordClick(ctx, campaignID, subElementID)
}

func (e *Engine) RecordGenericEvent(ctx context.Context, campaignID, eventName string, metadata map[string]any) {
	e.forwarder.RecordGenericEvent(ctx, campaignID, eventName, metadata)
}

// OnLayout records where the host laid out the anchor named name.
func (e *Engine) OnLayout(name string, rect models.LayoutRect) {
	e.anchors.OnLayout(name, rect)
}

// RemoveAnchor forgets an anchor whose element left the screen.
func (e *Engine) RemoveAnchor(name string) {
	e.anchors.Remove(name)
}

// Anchors returns a copy of the known anchor layouts.
func (e *Engine) Anchors() map[string]models.LayoutRect {
	return e.anchors.Snapshot()
}

func (e *Engine) CurrentTooltip() showcase.Cursor {
	return e.sequencer.Current()
}

func (e *Engine) SubscribeTooltip() (<-chan struct{}, func()) {
	return e.sequencer.Subscribe()
}

func (e *Engine) HideTooltip() { e.sequencer.Hide() }

func (e *Engine) DismissTooltip() { e.sequencer.Dismiss() }

// TooltipPlacement positions the current tooltip's popup. It reports false
// when no tooltip is current or its anchor is unknown.
func (e *Engine) TooltipPlacement(viewport models.Rect, popup, arrow models.Size, preferred placement.Alignment) (placement.Placement, bool) {
	cur := e.sequencer.Current()
	if cur.Tooltip == nil {
		return placement.Placement{}, false
	}
	rect, ok := e.anchors.Get(cur.Tooltip.Target)
	if !ok {
		return placement.Placement{}, false
	}
	return placement.Compute(placement.Input{
		Anchor:    rect.BoundsInWindow(),
		Viewport:  viewport,
		Popup:     popup,
		Arrow:     arrow,
		Preferred: preferred,
		Padding:   e.cfg.PopupPadding,
		Gap:       e.cfg.ArrowGap,
	}), true
}

// ResolveLink returns the expanded deep link for a tap on a campaign or one of
// its sub-elements. It reports false when the campaign is unknown or has no
// link.
func (e *Engine) ResolveLink(campaignID, subElementID string) (string, bool) {
	c, ok := e.CampaignByID(campaignID)
	if !ok {
		return "", false
	}
	sess := e.pipeline.Session()
	link := e.macros.DestinationURL(c, subElementID, &macros.LinkContext{
		SessionID:  e.sessionID,
		UserID:     sess.UserID,
		Screen:     e.pipeline.Screen(),
		Timestamp:  time.Now(),
		Attributes: sess.Attributes,
	})
	return link, link != ""
}

// LikedReels returns the reel ids the user liked. Storage errors read as none.
func (e *Engine) LikedReels(ctx context.Context) []string {
	return e.readList(ctx, kvstore.KeyLikedReels)
}

// ToggleReelLike flips the like state of a reel and returns the new list and
// whether the reel is now liked.
func (e *Engine) ToggleReelLike(ctx context.Context, reelID string) ([]string, bool) {
	ids, liked, err := kvstore.Toggle(ctx, e.kv, kvstore.KeyLikedReels, reelID)
	if err != nil {
		e.logger.Warn("toggle reel like", zap.String("reel_id", reelID), zap.Error(err))
		return e.LikedReels(ctx), false
	}
	return ids, liked
}

// ViewedStories returns the story slide ids the user has seen.
func (e *Engine) ViewedStories(ctx context.Context) []string {
	return e.readList(ctx, kvstore.KeyViewedStories)
}

// MarkStoryViewed records a seen story slide and returns the new list.
func (e *Engine) MarkStoryViewed(ctx context.Context, slideID string) []string {
	ids, err := kvstore.Add(ctx, e.kv, kvstore.KeyViewedStories, slideID)
	if err != nil {
		e.logger.Warn("mark story viewed", zap.String("slide_id", slideID), zap.Error(err))
		return e.ViewedStories(ctx)
	}
	return ids
}

func (e *Engine) readList(ctx context.Context, key string) []string {
	ids, err := e.kv.Get(ctx, key)
	if err != nil {
		e.logger.Warn("read widget state", zap.String("key", key), zap.Error(err))
		return []string{}
	}
	return ids
}

// LastSyncTrace returns the trace of the most recent sync, or nil.
func (e *Engine) LastSyncTrace() *logic.SyncTrace {
	return e.pipeline.LastTrace()
}

// Wait blocks until every background sync and tracking task has finished.
func (e *Engine) Wait() {
	e.sup.Wait()
}

// Close stops the sequencer and waits for background work.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		e.startOnce.Do(func() { close(e.seqDone) })
		<-e.seqDone
		e.sup.Wait()
	})
}
