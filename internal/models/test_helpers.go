package models

import "encoding/json"

// NewTooltipCampaign builds a decoded tooltip-set campaign for tests.
func NewTooltipCampaign(id string, tooltips ...Tooltip) Campaign {
	for i := range tooltips {
		tooltips[i].CampaignID = id
	}
	return Campaign{
		ID:      id,
		Type:    CampaignTypeTooltipSet,
		Details: &TooltipSetDetails{Tooltips: tooltips},
	}
}

// NewBannerCampaign builds a decoded banner campaign for tests.
func NewBannerCampaign(id, position string) Campaign {
	return Campaign{
		ID:       id,
		Type:     CampaignTypeBanner,
		Position: position,
		Details:  &BannerDetails{Image: "https://cdn.example.com/" + id + ".png", Styling: json.RawMessage(`{}`)},
	}
}
