// Package tracking forwards impressions, clicks and generic events to the
// campaign backend. Impressions are deduplicated through a ledger; clicks and
// events never are.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/analytics"
	"github.com/patrickwarner/surfacekit/internal/campaignapi"
	"github.com/patrickwarner/surfacekit/internal/logic"
	"github.com/patrickwarner/surfacekit/internal/observability"
	"github.com/patrickwarner/surfacekit/internal/token"
)

// Tracking outcomes, used for metrics and the journal.
const (
	OutcomeForwarded = "forwarded"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Launcher runs fire-and-forget work.
type Launcher interface {
	Go(name string, fn func())
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(name string, fn func())

func (f LauncherFunc) Go(name string, fn func()) { f(name, fn) }

// Inline runs work on the calling goroutine.
var Inline = LauncherFunc(func(_ string, fn func()) { fn() })

// Deps wires a Forwarder.
type Deps struct {
	API    campaignapi.API
	Tokens *token.Cache
	Ledger logic.ImpressionLedger
	// Journal is optional.
	Journal  analytics.Journal
	Launcher Launcher
	Logger   *zap.Logger
	Metrics  observability.MetricsRegistry
	// Timeout bounds each backend call.
	Timeout time.Duration
}

// Forwarder is the tracking boundary of the engine. Its methods return
// immediately and never report backend failures to the caller.
type Forwarder struct {
	api     campaignapi.API
	tokens  *token.Cache
	ledger  logic.ImpressionLedger
	journal analytics.Journal
	launch  Launcher
	logger  *zap.Logger
	metrics observability.MetricsRegistry
	timeout time.Duration
	// sampleRate thins per-call success logs
	sampleRate float64

	mu     sync.RWMutex
	userID string
	screen string
}

func New(d Deps) *Forwarder {
	f := &Forwarder{
		api:     d.API,
		tokens:  d.Tokens,
		ledger:  d.Ledger,
		journal: d.Journal,
		launch:  d.Launcher,
		logger:  d.Logger,
		metrics: d.Metrics,
		timeout: d.Timeout,

		sampleRate: observability.GetSamplingRate(),
	}
	if f.tokens == nil {
		f.tokens = &token.Cache{}
	}
	if f.ledger == nil {
		f.ledger = logic.NewMemoryLedger()
	}
	if f.launch == nil {
		f.launch = Inline
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	f.logger = f.logger.Named("tracking")
	if f.metrics == nil {
		f.metrics = observability.NewNoOpRegistry()
	}
	return f
}

// SetUser sets the user every record is attributed to.
func (f *Forwarder) SetUser(userID string) {
	f.mu.Lock()
	f.userID = userID
	f.mu.Unlock()
}

func (f *Forwarder) identity() (string, string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.userID, f.screen
}

// Reset clears the impression ledger for screen.
func (f *Forwarder) Reset(ctx context.Context, screen string) {
	f.mu.Lock()
	f.screen = screen
	f.mu.Unlock()
	f.ledger.Reset(ctx)
}

// RecordImpression reports that a campaign, or one of its sub-elements, was
// shown. Only the first call per accounting key reaches the backend; the key
// is marked before the call is issued.
func (f *Forwarder) RecordImpression(ctx context.Context, campaignID, subElementID string) {
	if campaignID == "" {
		f.metrics.IncrementTracking(analytics.KindImpression, OutcomeSkipped)
		f.logger.Debug("impression without campaign id ignored")
		return
	}
	key := logic.ImpressionKey(campaignID, subElementID)
	if !f.ledger.TryMark(ctx, key) {
		f.metrics.IncrementTracking(analytics.KindImpression, OutcomeDuplicate)
		return
	}
	f.sendAction(ctx, campaignapi.EventImpression, analytics.KindImpression, campaignID, subElementID)
}

// RecordClick reports a tap. Every call is forwarded.
func (f *Forwarder) RecordClick(ctx context.Context, campaignID, subElementID string) {
	if campaignID == "" {
		f.metrics.IncrementTracking(analytics.KindClick, OutcomeSkipped)
		f.logger.Debug("click without campaign id ignored")
		return
	}
	f.sendAction(ctx, campaignapi.EventClick, analytics.KindClick, campaignID, subElementID)
}

// RecordGenericEvent forwards a named event to the capture endpoint. It is
// independent of the impression ledger.
func (f *Forwarder) RecordGenericEvent(ctx context.Context, campaignID, eventName string, metadata map[string]any) {
	if eventName == "" {
		f.metrics.IncrementTracking(analytics.KindEvent, OutcomeSkipped)
		return
	}
	userID, screen := f.identity()
	ev := campaignapi.GenericEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		CampaignID: campaignID,
		EventName:  eventName,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
	}
	ctx = context.WithoutCancel(ctx)

	f.launch.Go("tracking.event", func() {
		err := f.call(ctx, func(ctx context.Context, tok string) error {
			return f.api.CaptureEvent(ctx, tok, ev)
		})
		outcome := f.outcome(analytics.KindEvent, err,
			zap.String("event_id", ev.EventID),
			zap.String("event_name", eventName))
		f.journalize(ctx, analytics.Event{
			Timestamp:  ev.Timestamp,
			Kind:       analytics.KindEvent,
			EventID:    ev.EventID,
			UserID:     userID,
			CampaignID: campaignID,
			EventName:  eventName,
			Screen:     screen,
			Outcome:    outcome,
			Metadata:   metadata,
		})
	})
}

func (f *Forwarder) sendAction(ctx context.Context, et campaignapi.EventType, kind, campaignID, subElementID string) {
	userID, screen := f.identity()
	action := campaignapi.Action{
		CampaignID:   campaignID,
		UserID:       userID,
		EventType:    et,
		SubElementID: subElementID,
	}
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()

	f.launch.Go("tracking."+kind, func() {
		err := f.call(ctx, func(ctx context.Context, tok string) error {
			return f.api.RecordAction(ctx, tok, action)
		})
		outcome := f.outcome(kind, err,
			zap.String("campaign_id", campaignID),
			zap.String("sub_element_id", subElementID))
		f.journalize(ctx, analytics.Event{
			Timestamp:    now,
			Kind:         kind,
			EventID:      uuid.NewString(),
			UserID:       userID,
			CampaignID:   campaignID,
			SubElementID: subElementID,
			Screen:       screen,
			Outcome:      outcome,
		})
	})
}

func (f *Forwarder) call(ctx context.Context, fn func(ctx context.Context, tok string) error) error {
	tok, err := f.tokens.Get()
	if err != nil {
		return errors.Join(campaignapi.ErrAuthUnavailable, err)
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return fn(ctx, tok)
}

func (f *Forwarder) outcome(kind string, err error, fields ...zap.Field) string {
	if err == nil {
		f.metrics.IncrementTracking(kind, OutcomeForwarded)
		if observability.ShouldSample(f.sampleRate) {
			f.logger.Debug(kind+" forwarded", fields...)
		}
		return OutcomeForwarded
	}
	if errors.Is(err, campaignapi.ErrAuthUnavailable) {
		f.metrics.IncrementTracking(kind, OutcomeSkipped)
		f.logger.Debug("no access token, "+kind+" dropped", fields...)
		return OutcomeSkipped
	}
	f.metrics.IncrementTracking(kind, OutcomeFailed)
	f.logger.Warn(kind+" forward failed", append(fields, zap.Error(err))...)
	return OutcomeFailed
}

func (f *Forwarder) journalize(ctx context.Context, ev analytics.Event) {
	if f.journal == nil {
		return
	}
	if err := f.journal.RecordEvent(ctx, ev); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
		f.logger.Warn("journal write failed", zap.String("kind", ev.Kind), zap.Error(err))
	}
}
