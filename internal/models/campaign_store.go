package models

import (
	"sync"
	"sync/atomic"

	"github.com/patrickwarner/surfacekit/internal/observable"
)

// CampaignStore is the single source of truth for which campaigns apply right
// now. Reads never block and always observe one fully-replaced snapshot.
type CampaignStore interface {
	// Read operations (renderer hot path)
	Screen() string
	All() []Campaign
	CampaignsOfType(t CampaignType, position string) []Campaign
	Campaign(t CampaignType, position string) *Campaign
	IsDisabled(campaignID string) bool

	// Write operations (sync pipeline)
	Replace(screen string, campaigns []Campaign)
	Disable(campaignID string)
	ClearDisabled()

	// Subscribe delivers a coalesced signal after every write.
	Subscribe() (<-chan struct{}, func())
}

// campaignSnapshot is an immutable view of the store.
type campaignSnapshot struct {
	screen    string
	campaigns []Campaign
	byType    map[CampaignType][]int // type -> indexes into campaigns
	disabled  map[string]struct{}
}

// InMemoryCampaignStore implements CampaignStore with atomic snapshot swaps.
// Writers are serialised by writeMu; readers only load the pointer.
type InMemoryCampaignStore struct {
	data     atomic.Pointer[campaignSnapshot]
	writeMu  sync.Mutex
	notifier *observable.Notifier
}

// NewInMemoryCampaignStore creates an empty store.
func NewInMemoryCampaignStore() *InMemoryCampaignStore {
	s := &InMemoryCampaignStore{notifier: observable.NewNotifier()}
	s.data.Store(&campaignSnapshot{
		campaigns: make([]Campaign, 0),
		byType:    make(map[CampaignType][]int),
		disabled:  make(map[string]struct{}),
	})
	return s
}

// Screen returns the screen the current set was synced for.
func (s *InMemoryCampaignStore) Screen() string {
	return s.data.Load().screen
}

// All returns every campaign of the last completed sync, disabled ones included.
func (s *InMemoryCampaignStore) All() []Campaign {
	data := s.data.Load()
	result := make([]Campaign, len(data.campaigns))
	copy(result, data.campaigns)
	return result
}

// CampaignsOfType returns the enabled campaigns of type t, optionally narrowed
// to a position, in the order the API returned them.
func (s *InMemoryCampaignStore) CampaignsOfType(t CampaignType, position string) []Campaign {
	data := s.data.Load()
	var result []Campaign
	for _, idx := range data.byType[t] {
		c := data.campaigns[idx]
		if _, off := data.disabled[c.ID]; off && c.ID != "" {
			continue
		}
		if !c.MatchesPosition(position) {
			continue
		}
		result = append(result, c)
	}
	return result
}

// Campaign returns the single eligible campaign of type t for position, or nil.
func (s *InMemoryCampaignStore) Campaign(t CampaignType, position string) *Campaign {
	matches := s.CampaignsOfType(t, position)
	if len(matches) == 0 {
		return nil
	}
	c := matches[0]
	return &c
}

// IsDisabled reports whether the user closed the campaign on this screen.
func (s *InMemoryCampaignStore) IsDisabled(campaignID string) bool {
	_, ok := s.data.Load().disabled[campaignID]
	return ok
}

// Replace swaps in a new campaign set for screen. The disabled list is kept;
// the sync pipeline clears it on screen transitions.
func (s *InMemoryCampaignStore) Replace(screen string, campaigns []Campaign) {
	s.writeMu.Lock()
	current := s.data.Load()

	owned := make([]Campaign, len(campaigns))
	copy(owned, campaigns)
	byType := make(map[CampaignType][]int)
	for i, c := range owned {
		byType[c.Type] = append(byType[c.Type], i)
	}

	s.data.Store(&campaignSnapshot{
		screen:    screen,
		campaigns: owned,
		byType:    byType,
		disabled:  current.disabled,
	})
	s.writeMu.Unlock()
	s.notifier.Notify()
}

// Disable hides a campaign from reads until the disabled list is cleared.
func (s *InMemoryCampaignStore) Disable(campaignID string) {
	if campaignID == "" {
		return
	}
	s.writeMu.Lock()
	current := s.data.Load()
	if _, ok := current.disabled[campaignID]; ok {
		s.writeMu.Unlock()
		return
	}
	disabled := make(map[string]struct{}, len(current.disabled)+1)
	for id := range current.disabled {
		disabled[id] = struct{}{}
	}
	disabled[campaignID] = struct{}{}
	s.data.Store(&campaignSnapshot{
		screen:    current.screen,
		campaigns: current.campaigns,
		byType:    current.byType,
		disabled:  disabled,
	})
	s.writeMu.Unlock()
	s.notifier.Notify()
}

// ClearDisabled re-enables every campaign.
func (s *InMemoryCampaignStore) ClearDisabled() {
	s.writeMu.Lock()
	current := s.data.Load()
	if len(current.disabled) == 0 {
		s.writeMu.Unlock()
		return
	}
	s.data.Store(&campaignSnapshot{
		screen:    current.screen,
		campaigns: current.campaigns,
		byType:    current.byType,
		disabled:  make(map[string]struct{}),
	})
	s.writeMu.Unlock()
	s.notifier.Notify()
}

// Subscribe registers for change signals.
func (s *InMemoryCampaignStore) Subscribe() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}

// ActiveTooltips returns the ordered tooltips of the first enabled tooltip-set
// campaign, or nil.
func ActiveTooltips(store CampaignStore) []Tooltip {
	if store == nil {
		return nil
	}
	c := store.Campaign(CampaignTypeTooltipSet, "")
	if c == nil {
		return nil
	}
	return c.Tooltips()
}

// ActiveTooltipsOn is ActiveTooltips restricted to tooltip sets synced for
// screen. A set left over from the previous screen yields nil until the new
// screen's sync replaces it.
func ActiveTooltipsOn(store CampaignStore, screen string) []Tooltip {
	if store == nil {
		return nil
	}
	for _, c := range store.CampaignsOfType(CampaignTypeTooltipSet, "") {
		if c.Screen == screen {
			return c.Tooltips()
		}
	}
	return nil
}
