package models

import (
	"errors"
	"fmt"
	"strings"
)

// CampaignType identifies which widget family a campaign targets. The engine
// treats it as the discriminator of the CampaignDetails sum type.
type CampaignType string

// Campaign types understood by the engine. Anything else in a hydrated payload
// is elided during decode.
const (
	CampaignTypeBanner      CampaignType = "BANNER"
	CampaignTypeFloater     CampaignType = "FLOATER"
	CampaignTypeWidget      CampaignType = "WIDGET"
	CampaignTypeCSAT        CampaignType = "CSAT"
	CampaignTypeReelSet     CampaignType = "REEL_SET"
	CampaignTypeTooltipSet  CampaignType = "TOOLTIP_SET"
	CampaignTypePIP         CampaignType = "PIP"
	CampaignTypeBottomSheet CampaignType = "BOTTOM_SHEET"
	CampaignTypeSurvey      CampaignType = "SURVEY"
	CampaignTypeModal       CampaignType = "MODAL"
	CampaignTypeStorySet    CampaignType = "STORY_SET"
)

var (
	// ErrUnknownCampaignType is returned when a payload names a type the engine cannot render.
	ErrUnknownCampaignType = errors.New("unknown campaign type")
	// ErrInvalidCampaign is returned when a payload is missing a required field.
	ErrInvalidCampaign = errors.New("invalid campaign")
)

// AllCampaignTypes lists every recognised type in declaration order.
var AllCampaignTypes = []CampaignType{
	CampaignTypeBanner,
	CampaignTypeFloater,
	CampaignTypeWidget,
	CampaignTypeCSAT,
	CampaignTypeReelSet,
	CampaignTypeTooltipSet,
	CampaignTypePIP,
	CampaignTypeBottomSheet,
	CampaignTypeSurvey,
	CampaignTypeModal,
	CampaignTypeStorySet,
}

// ParseCampaignType converts a wire value to a CampaignType. Matching is
// case-insensitive and accepts dashes in place of underscores.
func ParseCampaignType(s string) (CampaignType, error) {
	norm := CampaignType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	for _, t := range AllCampaignTypes {
		if t == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCampaignType, s)
}

// Campaign is a server-defined marketing directive of one specific type, scoped
// to a screen and optionally a position on that screen. Campaigns are immutable
// once decoded; the store replaces the whole set on every sync.
type Campaign struct {
	// ID identifies the campaign for accounting. The API may omit it, in which
	// case impressions and clicks for the campaign cannot be recorded.
	ID   string       `json:"id,omitempty"`
	Type CampaignType `json:"type"`
	// Details is the type-specific payload; its concrete type always matches Type.
	Details CampaignDetails `json:"details"`
	// Position is the slot on the screen the campaign was configured for
	// (e.g. "top", "bottom"). Empty means any position.
	Position string `json:"position,omitempty"`
	// Screen is the screen identifier the campaign was eligible for.
	Screen string `json:"screen,omitempty"`
}

// MatchesPosition reports whether the campaign should render in the given slot.
// An empty filter matches every campaign.
func (c Campaign) MatchesPosition(position string) bool {
	if position == "" {
		return true
	}
	return strings.EqualFold(c.Position, position)
}

// Tooltips returns the campaign's tooltips ordered for display, or nil when the
// campaign is not a tooltip set.
func (c Campaign) Tooltips() []Tooltip {
	ts, ok := c.Details.(*TooltipSetDetails)
	if !ok || ts == nil {
		return nil
	}
	return ts.Ordered()
}

// SubElementIDs lists the accounting ids of the campaign's sub-elements (widget
// images, reels, story slides). Single-surface campaigns return nil.
func (c Campaign) SubElementIDs() []string {
	if se, ok := c.Details.(interface{ subElementIDs() []string }); ok {
		return se.subElementIDs()
	}
	return nil
}
