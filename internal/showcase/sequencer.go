// Package showcase sequences tooltip presentation: one tooltip at a time, in
// ascending order, each only once its anchor has been laid out.
package showcase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/logic"
	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/observability"
	"github.com/patrickwarner/surfacekit/internal/observable"
)

// DefaultPollInterval is how often the sequencer re-evaluates without input.
const DefaultPollInterval = 500 * time.Millisecond

// ErrRunning is returned when Run is called on a sequencer that already ran.
var ErrRunning = errors.New("sequencer already running")

// State is the sequencer cursor state.
type State int

const (
	Idle State = iota
	Showing
	Dismissing
)

func (s State) String() string {
	switch s {
	case Showing:
		return "showing"
	case Dismissing:
		return "dismissing"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Cursor is the published sequencer state. Tooltip is nil while Idle.
type Cursor struct {
	State   State           `json:"state"`
	Tooltip *models.Tooltip `json:"tooltip,omitempty"`
	Visible bool            `json:"visible"`
}

// TooltipSource yields the ordered tooltips of the active showcase.
type TooltipSource interface {
	Tooltips() []models.Tooltip
	Subscribe() (<-chan struct{}, func())
}

// AnchorSource yields the latest anchor layouts.
type AnchorSource interface {
	Snapshot() map[string]models.LayoutRect
	Subscribe() (<-chan struct{}, func())
}

// StoreSource reads tooltips from the first enabled tooltip-set campaign.
// When Screen is set only sets synced for the screen it returns are read.
type StoreSource struct {
	Store  models.CampaignStore
	Screen func() string
}

func (s StoreSource) Tooltips() []models.Tooltip {
	if s.Screen == nil {
		return models.ActiveTooltips(s.Store)
	}
	return models.ActiveTooltipsOn(s.Store, s.Screen())
}

func (s StoreSource) Subscribe() (<-chan struct{}, func()) { return s.Store.Subscribe() }

type eventKind int

const (
	evTooltips eventKind = iota
	evAnchors
	evTick
	evHide
	evDismiss
	evResetViewed
)

// Sequencer is a state machine driven by a single loop. All state changes
// happen on the goroutine running Run.
type Sequencer struct {
	tooltips TooltipSource
	anchors  AnchorSource
	viewed   *logic.ViewedLedger
	poll     time.Duration
	logger   *zap.Logger
	metrics  observability.MetricsRegistry

	commands chan eventKind
	stopped  chan struct{}
	running  atomic.Bool

	cursor   atomic.Pointer[Cursor]
	notifier *observable.Notifier
}

// New creates a sequencer. poll <= 0 selects DefaultPollInterval.
func New(tooltips TooltipSource, anchors AnchorSource, poll time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Sequencer {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	s := &Sequencer{
		tooltips: tooltips,
		anchors:  anchors,
		viewed:   logic.NewViewedLedger(),
		poll:     poll,
		logger:   logger.Named("showcase"),
		metrics:  metrics,
		commands: make(chan eventKind, 32),
		stopped:  make(chan struct{}),
		notifier: observable.NewNotifier(),
	}
	s.cursor.Store(&Cursor{State: Idle})
	return s
}

// Run drives the sequencer until ctx is done. It evaluates on every tooltip
// or anchor change, on every command and on each poll tick.
func (s *Sequencer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(s.stopped)

	tipCh, cancelTips := s.tooltips.Subscribe()
	defer cancelTips()
	anchorCh, cancelAnchors := s.anchors.Subscribe()
	defer cancelAnchors()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.handle(evTick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tipCh:
			s.handle(evTooltips)
		case <-anchorCh:
			s.handle(evAnchors)
		case ev := <-s.commands:
			s.handle(ev)
		case <-ticker.C:
			s.handle(evTick)
		}
	}
}

// Current returns the published cursor.
func (s *Sequencer) Current() Cursor {
	c := *s.cursor.Load()
	if c.Tooltip != nil {
		tt := *c.Tooltip
		c.Tooltip = &tt
	}
	return c
}

// Subscribe delivers a coalesced signal whenever the cursor changes.
func (s *Sequencer) Subscribe() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}

// Viewed reports whether target was already dispatched on this screen.
func (s *Sequencer) Viewed(target string) bool {
	return s.viewed.Has(target)
}

// Hide starts dismissing the current tooltip: it stays current but invisible.
func (s *Sequencer) Hide() { s.send(evHide) }

// Dismiss clears the current tooltip and lets the next one be selected.
func (s *Sequencer) Dismiss() { s.send(evDismiss) }

// ResetViewed forgets dispatched targets and clears any current tooltip.
// Called on screen change.
func (s *Sequencer) ResetViewed() { s.send(evResetViewed) }

func (s *Sequencer) send(ev eventKind) {
	if !s.running.Load() {
		select {
		case s.commands <- ev:
		default:
			s.logger.Warn("sequencer not running, command dropped")
		}
		return
	}
	select {
	case s.commands <- ev:
	case <-s.stopped:
	}
}

// handle applies one event. Only the Run goroutine calls it.
func (s *Sequencer) handle(ev eventKind) {
	cur := s.cursor.Load()

	switch ev {
	case evHide:
		if cur.State == Showing {
			s.publish(&Cursor{State: Dismissing, Tooltip: cur.Tooltip, Visible: false})
		}
		return
	case evDismiss:
		if cur.State != Idle {
			s.publish(&Cursor{State: Idle})
		}
	case evResetViewed:
		s.viewed.Reset()
		if cur.State != Idle {
			s.publish(&Cursor{State: Idle})
		}
	}

	tips := s.tooltips.Tooltips()
	cur = s.cursor.Load()
	if cur.State != Idle {
		if !s.stale(cur.Tooltip, tips) {
			return
		}
		s.logger.Debug("current tooltip no longer active",
			zap.String("campaign_id", cur.Tooltip.CampaignID),
			zap.String("target", cur.Tooltip.Target))
		s.publish(&Cursor{State: Idle})
	}
	s.selectNext(tips)
}

// stale reports whether tt left the active set or lost its anchor.
func (s *Sequencer) stale(tt *models.Tooltip, tips []models.Tooltip) bool {
	if !containsTooltip(tips, tt) {
		return true
	}
	_, anchored := s.anchors.Snapshot()[tt.Target]
	return !anchored
}

// selectNext shows the first tooltip, in order, that is unviewed and anchored.
func (s *Sequencer) selectNext(tips []models.Tooltip) {
	if len(tips) == 0 {
		return
	}
	anchors := s.anchors.Snapshot()
	for _, tt := range tips {
		if s.viewed.Has(tt.Target) {
			continue
		}
		if _, ok := anchors[tt.Target]; !ok {
			continue
		}
		// marked at dispatch so a dismiss-less relayout never re-queues it
		s.viewed.Add(tt.Target)
		tt := tt
		s.publish(&Cursor{State: Showing, Tooltip: &tt, Visible: true})
		s.logger.Debug("showing tooltip",
			zap.String("campaign_id", tt.CampaignID),
			zap.String("target", tt.Target),
			zap.Int("order", tt.Order))
		return
	}
}

func (s *Sequencer) publish(c *Cursor) {
	s.cursor.Store(c)
	s.metrics.IncrementTooltipTransitions(c.State.String())
	s.notifier.Notify()
}

// containsTooltip matches on campaign and tooltip id so a same-named target
// in another campaign is a different tooltip.
func containsTooltip(tips []models.Tooltip, tt *models.Tooltip) bool {
	for _, t := range tips {
		if t.CampaignID == tt.CampaignID && t.ID == tt.ID {
			return true
		}
	}
	return false
}
