package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// CampaignDetails is the closed set of type-specific campaign payloads. Each
// implementation reports its CampaignType and validates its required fields.
// Styling payloads are kept as raw JSON and handed to the renderer untouched.
type CampaignDetails interface {
	CampaignType() CampaignType
	Validate() error
}

// detailsFactory maps each recognised type to a constructor for its payload.
var detailsFactory = map[CampaignType]func() CampaignDetails{
	CampaignTypeBanner:      func() CampaignDetails { return &BannerDetails{} },
	CampaignTypeFloater:     func() CampaignDetails { return &FloaterDetails{} },
	CampaignTypeWidget:      func() CampaignDetails { return &WidgetDetails{} },
	CampaignTypeCSAT:        func() CampaignDetails { return &CSATDetails{} },
	CampaignTypeReelSet:     func() CampaignDetails { return &ReelSetDetails{} },
	CampaignTypeTooltipSet:  func() CampaignDetails { return &TooltipSetDetails{} },
	CampaignTypePIP:         func() CampaignDetails { return &PIPDetails{} },
	CampaignTypeBottomSheet: func() CampaignDetails { return &BottomSheetDetails{} },
	CampaignTypeSurvey:      func() CampaignDetails { return &SurveyDetails{} },
	CampaignTypeModal:       func() CampaignDetails { return &ModalDetails{} },
	CampaignTypeStorySet:    func() CampaignDetails { return &StorySetDetails{} },
}

func invalid(t CampaignType, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidCampaign, t, fmt.Sprintf(format, args...))
}

// BannerDetails is an inline image banner.
type BannerDetails struct {
	Image   string          `json:"image"`
	Link    string          `json:"link,omitempty"`
	Height  float64         `json:"height,omitempty"`
	Styling json.RawMessage `json:"styling,omitempty"`
}

func (d *BannerDetails) CampaignType() CampaignType { return CampaignTypeBanner }

func (d *BannerDetails) Validate() error {
	if d.Image == "" {
		return invalid(CampaignTypeBanner, "image is required")
	}
	return nil
}

// FloaterDetails is a floating button/image pinned over the screen content.
type FloaterDetails struct {
	Image   string          `json:"image"`
	Link    string          `json:"link,omitempty"`
	Width   float64         `json:"width,omitempty"`
	Height  float64         `json:"height,omitempty"`
	Styling json.RawMessage `json:"styling,omitempty"`
}

func (d *FloaterDetails) CampaignType() CampaignType { return CampaignTypeFloater }

func (d *FloaterDetails) Validate() error {
	if d.Image == "" {
		return invalid(CampaignTypeFloater, "image is required")
	}
	return nil
}

// WidgetImage is one card of a widget carousel. Its ID is the sub-element
// accounting key.
type WidgetImage struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	Link  string `json:"link,omitempty"`
	Order int    `json:"order"`
}

// WidgetDetails is a carousel of images.
type WidgetDetails struct {
	Images  []WidgetImage   `json:"images"`
	Height  float64         `json:"height,omitempty"`
	Styling json.RawMessage `json:"styling,omitempty"`
}

func (d *WidgetDetails) CampaignType() CampaignType { return CampaignTypeWidget }

func (d *WidgetDetails) Validate() error {
	if len(d.Images) == 0 {
		return invalid(CampaignTypeWidget, "at least one image is required")
	}
	for i, img := range d.Images {
		if img.ID == "" {
			return invalid(CampaignTypeWidget, "image %d has no id", i)
		}
	}
	return nil
}

func (d *WidgetDetails) subElementIDs() []string {
	ids := make([]string, 0, len(d.Images))
	for _, img := range d.Images {
		ids = append(ids, img.ID)
	}
	return ids
}

// CSATDetails is a customer-satisfaction rating prompt.
type CSATDetails struct {
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Options      []string        `json:"options,omitempty"`
	ThankYouText string          `json:"thank_you_text,omitempty"`
	Styling      json.RawMessage `json:"styling,omitempty"`
}

func (d *CSATDetails) CampaignType() CampaignType { return CampaignTypeCSAT }

func (d *CSATDetails) Validate() error {
	if d.Title == "" {
		return invalid(CampaignTypeCSAT, "title is required")
	}
	return nil
}

// Reel is one short video in a reel set.
type Reel struct {
	ID         string `json:"id"`
	Video      string `json:"video"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	Link       string `json:"link,omitempty"`
	ButtonText string `json:"button_text,omitempty"`
	Likes      int    `json:"likes,omitempty"`
}

// ReelSetDetails is a vertical feed of short videos.
type ReelSetDetails struct {
	Reels   []Reel          `json:"reels"`
	Styling json.RawMessage `json:"styling,omitempty"`
}

func (d *ReelSetDetails) CampaignType() CampaignType { return CampaignTypeReelSet }

func (d *ReelSetDetails) Validate() error {
	if len(d.Reels) == 0 {
		return invalid(CampaignTypeReelSet, "at least one reel is required")
	}
	for i, r := range d.Reels {
		if r.ID == "" {
			return invalid(CampaignTypeReelSet, "reel %d has no id", i)
		}
	}
	return nil
}

func (d *ReelSetDetails) subElementIDs() []string {
	ids := make([]string, 0, len(d.Reels))
	for _, r := range d.Reels {
		ids = append(ids, r.ID)
	}
	return ids
}

// TooltipSetDetails groups the tooltips of one showcase campaign.
type TooltipSetDetails struct {
	Tooltips []Tooltip       `json:"tooltips"`
	Styling  json.RawMessage `json:"styling,omitempty"`
}

func (d *TooltipSetDetails) CampaignType() CampaignType { return CampaignTypeTooltipSet }

func (d *TooltipSetDetails) Validate() error {
	if len(d.Tooltips) == 0 {
		return invalid(CampaignTypeTooltipSet, "at least one tooltip is required")
	}
	for i, tt := range d.Tooltips {
		if tt.Target == "" {
			return invalid(CampaignTypeTooltipSet, "tooltip %d has no target", i)
		}
	}
	return nil
}

// Ordered returns a copy of the tooltips sorted ascending by Order. Ties keep
// their payload order.
func (d *TooltipSetDetails) Ordered() []Tooltip {
	out := make([]Tooltip, len(d.Tooltips))
	copy(out, d.Tooltips)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// PIPDetails is a picture-in-picture video that can expand to full screen.
type PIPDetails struct {
	SmallVideo string          `json:"small_video"`
	LargeVideo string          `json:"large_video,omitempty"`
	Link       string          `json:"link,omitempty"`
	Position   string          `json:"position,omitempty"`
	Styling    json.RawMessage `json:"styling,omitempty"`
}

func (d *PIPDetails) CampaignType() CampaignType { return CampaignTypePIP }

func (d *PIPDetails) Validate() error {
	if d.SmallVideo == "" {
		return invalid(CampaignTypePIP, "small_video is required")
	}
	return nil
}

// BottomSheetDetails is a sheet of content blocks anchored to the screen bottom.
// Blocks are opaque to the engine.
type BottomSheetDetails struct {
	Blocks  []json.RawMessage `json:"blocks"`
	Link    string            `json:"link,omitempty"`
	Styling json.RawMessage   `json:"styling,omitempty"`
}

func (d *BottomSheetDetails) CampaignType() CampaignType { return CampaignTypeBottomSheet }

func (d *BottomSheetDetails) Validate() error {
	if len(d.Blocks) == 0 {
		return invalid(CampaignTypeBottomSheet, "at least one block is required")
	}
	return nil
}

// SurveyOption is one selectable answer.
type SurveyOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SurveyDetails is a single-question survey.
type SurveyDetails struct {
	Question string          `json:"question"`
	Options  []SurveyOption  `json:"options"`
	Styling  json.RawMessage `json:"styling,omitempty"`
}

func (d *SurveyDetails) CampaignType() CampaignType { return CampaignTypeSurvey }

func (d *SurveyDetails) Validate() error {
	if d.Question == "" {
		return invalid(CampaignTypeSurvey, "question is required")
	}
	if len(d.Options) == 0 {
		return invalid(CampaignTypeSurvey, "at least one option is required")
	}
	return nil
}

// ModalPage is one page of a modal.
type ModalPage struct {
	Image string `json:"image"`
	Link  string `json:"link,omitempty"`
}

// ModalDetails is a centered dialog with one or more pages.
type ModalDetails struct {
	Pages   []ModalPage     `json:"pages"`
	Styling json.RawMessage `json:"styling,omitempty"`
}

func (d *ModalDetails) CampaignType() CampaignType { return CampaignTypeModal }

func (d *ModalDetails) Validate() error {
	if len(d.Pages) == 0 {
		return invalid(CampaignTypeModal, "at least one page is required")
	}
	return nil
}

// StorySlide is one frame of a story group. Its ID is the sub-element
// accounting key.
type StorySlide struct {
	ID         string `json:"id"`
	Image      string `json:"image,omitempty"`
	Video      string `json:"video,omitempty"`
	Link       string `json:"link,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

// StoryGroup is one ring in the story tray.
type StoryGroup struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Thumbnail string       `json:"thumbnail,omitempty"`
	Slides    []StorySlide `json:"slides"`
}

// StorySetDetails is a tray of story groups.
type StorySetDetails struct {
	Groups  []StoryGroup    `json:"groups"`
	Styling json.RawMessage `json:"styling,omitempty"`
}

func (d *StorySetDetails) CampaignType() CampaignType { return CampaignTypeStorySet }

func (d *StorySetDetails) Validate() error {
	if len(d.Groups) == 0 {
		return invalid(CampaignTypeStorySet, "at least one story group is required")
	}
	for i, g := range d.Groups {
		if g.ID == "" {
			return invalid(CampaignTypeStorySet, "story group %d has no id", i)
		}
	}
	return nil
}

func (d *StorySetDetails) subElementIDs() []string {
	var ids []string
	for _, g := range d.Groups {
		for _, s := range g.Slides {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
