package macros

import (
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMacroExpander_ExpandURL(t *testing.T) {
	logger := zaptest.NewLogger(t)
	expander := NewMacroExpanderForTesting(logger, false)

	ctx := &ExpansionContext{
		SessionID:    "sess-123",
		UserID:       "user-456",
		Screen:       "home",
		Timestamp:    time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
		CampaignID:   "camp-789",
		CampaignType: "WIDGET",
		SubElementID: "img-2",
		CustomParams: map[string]string{
			"utm_source":   "push",
			"utm_campaign": "summer2024",
		},
	}

	tests := []struct {
		name           string
		rawURL         string
		expectedURL    string
		expectedError  bool
		customExpander func(*MacroExpander)
	}{
		{
			name:        "No macros",
			rawURL:      "https://example.com/landing",
			expectedURL: "https://example.com/landing",
		},
		{
			name:        "Single macro",
			rawURL:      "https://example.com/landing?c={CAMPAIGN_ID}",
			expectedURL: "https://example.com/landing?c=camp-789",
		},
		{
			name:        "Multiple macros",
			rawURL:      "app://open?s={SESSION_ID}&u={USER_ID}&sc={SCREEN}&e={SUB_ELEMENT_ID}&t={CAMPAIGN_TYPE}",
			expectedURL: "app://open?s=sess-123&u=user-456&sc=home&e=img-2&t=WIDGET",
		},
		{
			name:        "Timestamp macros",
			rawURL:      "https://example.com/landing?ts={TIMESTAMP}&ms={TIMESTAMP_MS}&iso={ISO_TIMESTAMP}",
			expectedURL: "https://example.com/landing?ts=1705314645&ms=1705314645000&iso=2024-01-15T10%3A30%3A45Z",
		},
		{
			name:        "Custom parameters",
			rawURL:      "https://example.com/landing?source={CUSTOM.utm_source}&campaign={CUSTOM.utm_campaign}",
			expectedURL: "https://example.com/landing?source=push&campaign=summer2024",
		},
		{
			name:        "Empty URL",
			rawURL:      "",
			expectedURL: "",
		},
		{
			name:          "Invalid URL",
			rawURL:        "://invalid-url",
			expectedURL:   "://invalid-url",
			expectedError: true,
		},
		{
			name:        "Custom macro",
			rawURL:      "https://example.com/landing?custom={CUSTOM_MACRO}",
			expectedURL: "https://example.com/landing?custom=custom_value",
			customExpander: func(exp *MacroExpander) {
				_ = exp.RegisterMacro("CUSTOM_MACRO", func(ctx *ExpansionContext) (string, error) {
					return "custom_value", nil
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.customExpander != nil {
				tt.customExpander(expander)
			}

			expandedURL, err := expander.ExpandURL(tt.rawURL, ctx)
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedURL, expandedURL)
		})
	}
}

func TestMacroExpander_CustomParameterExpansion(t *testing.T) {
	expander := NewMacroExpanderForTesting(zaptest.NewLogger(t), false)

	ctx := &ExpansionContext{
		CustomParams: map[string]string{
			"campaign": "holiday 2024",
			"os":       "iOS",
		},
	}

	got, err := expander.ExpandURL("app://x?c={CUSTOM.campaign}&os={CUSTOM.os}&m={CUSTOM.missing}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "app://x?c=holiday+2024&os=iOS&m={CUSTOM.missing}", got)

	v, err := expander.ExpandCustomParameter("os", ctx)
	require.NoError(t, err)
	assert.Equal(t, "iOS", v)

	_, err = expander.ExpandCustomParameter("missing", ctx)
	assert.Error(t, err)
	_, err = expander.ExpandCustomParameter("os", &ExpansionContext{})
	assert.Error(t, err)
}

func TestMacroExpander_StrictMode(t *testing.T) {
	expander := NewMacroExpanderForTesting(zaptest.NewLogger(t), true)
	require.NoError(t, expander.RegisterMacro("FAILS", func(ctx *ExpansionContext) (string, error) {
		return "", errors.New("no value")
	}))

	got, err := expander.ExpandURL("app://x?f={FAILS}&c={CAMPAIGN_ID}", &ExpansionContext{CampaignID: "c"})
	assert.Error(t, err)
	assert.Empty(t, got)

	expander.SetStrictMode(false)
	got, err = expander.ExpandURL("app://x?f={FAILS}&c={CAMPAIGN_ID}", &ExpansionContext{CampaignID: "c"})
	require.NoError(t, err)
	assert.Equal(t, "app://x?f={FAILS}&c=c", got)
}

func TestMacroExpander_ValidateURL(t *testing.T) {
	expander := NewMacroExpanderForTesting(zaptest.NewLogger(t), false)

	tests := []struct {
		name   string
		rawURL string
		want   []string
	}{
		{"all supported", "app://x?c={CAMPAIGN_ID}&u={USER_ID}&r={RANDOM}", nil},
		{"custom params always valid", "app://x?a={CUSTOM.anything}", nil},
		{"unsupported", "app://x?a={AUCTION_ID}&b={CAMPAIGN_ID}&c={PRICE}", []string{"AUCTION_ID", "PRICE"}},
		{"unterminated brace", "app://x?a={CAMPAIGN_ID", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expander.ValidateURL(tt.rawURL))
		})
	}
}

func TestMacroExpander_RegisterMacro(t *testing.T) {
	expander := NewMacroExpanderForTesting(zaptest.NewLogger(t), false)

	assert.Error(t, expander.RegisterMacro("", func(ctx *ExpansionContext) (string, error) { return "", nil }))
	assert.Error(t, expander.RegisterMacro("X", nil))

	require.NoError(t, expander.RegisterMacro("SCREEN", func(ctx *ExpansionContext) (string, error) {
		return strings.ToUpper(ctx.Screen), nil
	}))
	got, err := expander.ExpandURL("app://x?s={SCREEN}", &ExpansionContext{Screen: "cart"})
	require.NoError(t, err)
	assert.Equal(t, "app://x?s=CART", got, "registered macro overrides the default")
}

func TestMacroExpander_GetRegisteredMacros(t *testing.T) {
	expander := NewMacroExpanderForTesting(zaptest.NewLogger(t), false)

	macros := expander.GetRegisteredMacros()
	sort.Strings(macros)
	assert.Equal(t, []string{
		"CAMPAIGN_ID", "CAMPAIGN_TYPE", "CUSTOM", "ISO_TIMESTAMP", "RANDOM", "SCREEN",
		"SESSION_ID", "SUB_ELEMENT_ID", "TIMESTAMP", "TIMESTAMP_MS", "USER_ID", "UUID",
	}, macros)
}

func TestMacroExpander_UnknownMacroLeftInPlace(t *testing.T) {
	expander := NewMacroExpanderForTesting(zaptest.NewLogger(t), false)

	got, err := expander.ExpandURL("https://example.com?id={CAMPAIGN_ID}&invalid={NONEXISTENT_MACRO}", &ExpansionContext{CampaignID: "123"})
	require.NoError(t, err)
	assert.Contains(t, got, "{NONEXISTENT_MACRO}")
	assert.Contains(t, got, "id=123")
}
