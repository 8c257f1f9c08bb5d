package logic

import "time"

// TraceStep records the campaign ids present after one stage of a sync.
type TraceStep struct {
	Stage       string            `json:"stage"`
	CampaignIDs []string          `json:"campaign_ids"`
	Details     map[string]string `json:"details,omitempty"`
}

// SyncTrace captures the ordered steps of one screen sync.
type SyncTrace struct {
	Screen    string      `json:"screen"`
	StartedAt time.Time   `json:"started_at"`
	Outcome   string      `json:"outcome"`
	Steps     []TraceStep `json:"steps"`
}

// AddStep appends a trace entry for the given stage. Duplicate ids are removed.
func (t *SyncTrace) AddStep(stage string, ids []string) {
	t.AddStepWithDetails(stage, ids, nil)
}

// AddStepWithDetails appends a trace entry with additional details.
func (t *SyncTrace) AddStepWithDetails(stage string, ids []string, details map[string]string) {
	if t == nil {
		return
	}
	step := TraceStep{Stage: stage, Details: details, CampaignIDs: []string{}}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		step.CampaignIDs = append(step.CampaignIDs, id)
	}
	t.Steps = append(t.Steps, step)
}
