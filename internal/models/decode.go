package models

import (
	"encoding/json"
	"fmt"
)

// campaignEnvelope mirrors the wire shape of a hydrated campaign before its
// details are decoded into the type-specific struct.
type campaignEnvelope struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position string          `json:"position"`
	Screen   string          `json:"screen"`
	Details  json.RawMessage `json:"details"`
}

// DecodeCampaign decodes one hydrated campaign. Unknown types wrap
// ErrUnknownCampaignType; missing required fields wrap ErrInvalidCampaign.
func DecodeCampaign(raw []byte) (Campaign, error) {
	var env campaignEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Campaign{}, fmt.Errorf("%w: %v", ErrInvalidCampaign, err)
	}
	t, err := ParseCampaignType(env.Type)
	if err != nil {
		return Campaign{}, err
	}
	if len(env.Details) == 0 || string(env.Details) == "null" {
		return Campaign{}, invalid(t, "details are required")
	}

	details := detailsFactory[t]()
	if err := json.Unmarshal(env.Details, details); err != nil {
		return Campaign{}, invalid(t, "decode details: %v", err)
	}
	if err := details.Validate(); err != nil {
		return Campaign{}, err
	}

	// tooltips inherit the owning campaign for accounting
	if ts, ok := details.(*TooltipSetDetails); ok {
		for i := range ts.Tooltips {
			ts.Tooltips[i].CampaignID = env.ID
		}
	}

	return Campaign{
		ID:       env.ID,
		Type:     t,
		Details:  details,
		Position: env.Position,
		Screen:   env.Screen,
	}, nil
}

// DecodeCampaigns decodes a hydrated batch, eliding records that fail to
// decode. onDrop, when non-nil, is told about every elided record.
func DecodeCampaigns(raws []json.RawMessage, onDrop func(index int, err error)) []Campaign {
	out := make([]Campaign, 0, len(raws))
	for i, raw := range raws {
		c, err := DecodeCampaign(raw)
		if err != nil {
			if onDrop != nil {
				onDrop(i, err)
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// UnmarshalJSON decodes a campaign through DecodeCampaign so Details always
// holds the concrete struct for Type.
func (c *Campaign) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeCampaign(data)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}
