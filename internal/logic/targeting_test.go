package logic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributesFromUserAgent(t *testing.T) {
	tests := []struct {
		name            string
		ua              string
		expectedDevice  string
		expectedOS      string
		expectedBrowser string
		expectedIsBot   string
	}{
		{
			name:            "iPhone Safari",
			ua:              "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/605.1.15",
			expectedDevice:  "mobile",
			expectedOS:      "ios",
			expectedBrowser: "safari",
			expectedIsBot:   "false",
		},
		{
			name:            "Android Chrome",
			ua:              "Mozilla/5.0 (Linux; Android 11; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.58 Mobile Safari/537.36",
			expectedDevice:  "mobile",
			expectedOS:      "android",
			expectedBrowser: "chrome",
			expectedIsBot:   "false",
		},
		{
			name:            "iPad Safari",
			ua:              "Mozilla/5.0 (iPad; CPU OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/605.1.15",
			expectedDevice:  "tablet",
			expectedOS:      "ios",
			expectedBrowser: "safari",
			expectedIsBot:   "false",
		},
		{
			name:            "Windows Chrome",
			ua:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.75 Safari/537.36",
			expectedDevice:  "desktop",
			expectedOS:      "windows",
			expectedBrowser: "chrome",
			expectedIsBot:   "false",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := AttributesFromUserAgent(tt.ua)
			assert.Equal(t, tt.expectedDevice, attrs[AttrDeviceType])
			assert.True(t, strings.Contains(strings.ToLower(attrs[AttrOS]), tt.expectedOS), "os %q", attrs[AttrOS])
			assert.True(t, strings.Contains(strings.ToLower(attrs[AttrBrowser]), tt.expectedBrowser), "browser %q", attrs[AttrBrowser])
			assert.Equal(t, tt.expectedIsBot, attrs[AttrIsBot])
		})
	}
}

func TestAttributesFromUserAgent_Empty(t *testing.T) {
	assert.Nil(t, AttributesFromUserAgent("  "))
}

func TestMergeAttributes_CallerWins(t *testing.T) {
	derived := map[string]string{AttrOS: "iOS", AttrDeviceType: "mobile"}
	caller := map[string]string{AttrOS: "custom", "tier": "gold"}

	got := MergeAttributes(derived, caller)
	assert.Equal(t, map[string]string{AttrOS: "custom", AttrDeviceType: "mobile", "tier": "gold"}, got)
	assert.Equal(t, "iOS", derived[AttrOS], "inputs are not mutated")
	assert.Nil(t, MergeAttributes(nil, nil))
}

func TestSyncTrace(t *testing.T) {
	var tr SyncTrace
	tr.AddStep("eligible", []string{"a", "b", "a"})
	tr.AddStepWithDetails("hydrated", nil, map[string]string{"dropped": "1"})

	assert.Len(t, tr.Steps, 2)
	assert.Equal(t, []string{"a", "b"}, tr.Steps[0].CampaignIDs)
	assert.Equal(t, []string{}, tr.Steps[1].CampaignIDs)

	var nilTrace *SyncTrace
	nilTrace.AddStep("noop", nil)
}
