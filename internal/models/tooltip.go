package models

import "encoding/json"

// Tooltip actions tell the renderer what a tap on the tooltip body does.
const (
	TooltipActionDismiss  = "dismiss"  // close the tooltip and move on
	TooltipActionDeepLink = "deeplink" // open Link, then close
)

// Tooltip is one step of a tooltip showcase. It anchors to the UI element
// named by Target and is shown in ascending Order within its campaign.
type Tooltip struct {
	ID string `json:"id"`
	// Target is the anchor name the host registers layout coordinates under.
	Target string `json:"target"`
	// Order is the ascending sort key within the campaign.
	Order int `json:"order"`
	// CampaignID is filled in by the decoder from the owning campaign so that
	// accounting can be done from the tooltip alone.
	CampaignID string `json:"campaign_id,omitempty"`
	Link       string `json:"link,omitempty"`
	Action     string `json:"action,omitempty"`
	// Content holds text and styling for the renderer.
	Content json.RawMessage `json:"content,omitempty"`
}
