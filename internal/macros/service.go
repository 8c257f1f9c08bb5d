package macros

import (
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/models"
)

// Service resolves and expands the deep links behind campaign surfaces.
type Service struct {
	expander *MacroExpander
	logger   *zap.Logger
}

// NewService creates a new macro expansion service
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		expander: NewMacroExpander(logger),
		logger:   logger.Named("macro_service"),
	}
}

// NewServiceForTesting creates a new macro expansion service for testing with isolated metrics
func NewServiceForTesting(logger *zap.Logger) *Service {
	return &Service{
		expander: NewMacroExpanderForTesting(logger, false),
		logger:   logger.Named("macro_service"),
	}
}

// RegisterCustomMacro allows registration of additional macro expansion functions
func (s *Service) RegisterCustomMacro(name string, expansionFunc ExpansionFunc) error {
	return s.expander.RegisterMacro(name, expansionFunc)
}

// GetRegisteredMacros returns a list of all registered macro names
func (s *Service) GetRegisteredMacros() []string {
	return s.expander.GetRegisteredMacros()
}

// ValidateURL validates that a URL contains only supported macros
func (s *Service) ValidateURL(rawURL string) []string {
	return s.expander.ValidateURL(rawURL)
}

// LinkContext carries the session data a deep link may reference.
type LinkContext struct {
	SessionID  string
	UserID     string
	Screen     string
	Timestamp  time.Time
	Attributes map[string]string
}

// ExpandLink expands macros in rawURL for the given campaign and sub-element.
func (s *Service) ExpandLink(rawURL string, c models.Campaign, subElementID string, lc *LinkContext) (string, error) {
	if rawURL == "" {
		return "", nil
	}
	if lc == nil {
		lc = &LinkContext{}
	}
	ts := lc.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return s.expander.ExpandURL(rawURL, &ExpansionContext{
		SessionID:    lc.SessionID,
		UserID:       lc.UserID,
		Screen:       lc.Screen,
		Timestamp:    ts,
		CampaignID:   c.ID,
		CampaignType: string(c.Type),
		SubElementID: subElementID,
		CustomParams: lc.Attributes,
	})
}

// DestinationURL determines where a tap on the campaign goes.
// Priority: sub-element link > campaign-level link > empty string.
// An expansion failure falls back to the unexpanded link.
func (s *Service) DestinationURL(c models.Campaign, subElementID string, lc *LinkContext) string {
	rawURL := LinkFor(c, subElementID)
	if rawURL == "" {
		s.logger.Debug("No link configured",
			zap.String("campaign_id", c.ID),
			zap.String("sub_element_id", subElementID))
		return ""
	}

	expanded, err := s.ExpandLink(rawURL, c, subElementID, lc)
	if err != nil {
		s.logger.Error("Failed to expand link macros, using original URL",
			zap.String("raw_url", rawURL),
			zap.Error(err))
		return rawURL
	}
	return expanded
}

// LinkFor returns the unexpanded link for a campaign. When subElementID names
// a widget image, reel, story slide or tooltip with its own link, that link
// wins; otherwise the campaign-level link is used.
func LinkFor(c models.Campaign, subElementID string) string {
	switch d := c.Details.(type) {
	case *models.BannerDetails:
		return d.Link
	case *models.FloaterDetails:
		return d.Link
	case *models.PIPDetails:
		return d.Link
	case *models.BottomSheetDetails:
		return d.Link
	case *models.WidgetDetails:
		for _, img := range d.Images {
			if img.ID == subElementID {
				return img.Link
			}
		}
	case *models.ReelSetDetails:
		for _, r := range d.Reels {
			if r.ID == subElementID {
				return r.Link
			}
		}
	case *models.TooltipSetDetails:
		for _, tt := range d.Tooltips {
			if tt.ID == subElementID || tt.Target == subElementID {
				return tt.Link
			}
		}
	case *models.StorySetDetails:
		for _, g := range d.Groups {
			for _, sl := range g.Slides {
				if sl.ID == subElementID {
					return sl.Link
				}
			}
		}
	case *models.ModalDetails:
		for _, p := range d.Pages {
			if p.Link != "" {
				return p.Link
			}
		}
	}
	return ""
}
