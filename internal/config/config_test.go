package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "surfacekit", cfg.ServiceName)
	assert.Equal(t, "home", cfg.DefaultScreen)
	assert.Equal(t, 500*time.Millisecond, cfg.TooltipPollInterval)
	assert.Equal(t, "memory", cfg.LedgerBackend)
	assert.Equal(t, cfg.APIBaseURL+"/v1/capture", cfg.TrackingURL)
	assert.Empty(t, cfg.ClickHouseDSN)
	assert.Empty(t, cfg.SessionID)
	assert.False(t, cfg.TrackingRateLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEFAULT_SCREEN", "checkout")
	t.Setenv("TOOLTIP_POLL_INTERVAL", "2")
	t.Setenv("POPUP_PADDING", "12.5")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("TRACKING_URL", "https://track.example.com/capture")
	t.Setenv("SESSION_ID", "shared-session")
	t.Setenv("TRACKING_RATE_LIMIT", "true")

	cfg := Load()

	assert.Equal(t, "checkout", cfg.DefaultScreen)
	assert.Equal(t, 2*time.Second, cfg.TooltipPollInterval)
	assert.Equal(t, 12.5, cfg.PopupPadding)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
	assert.Equal(t, "https://track.example.com/capture", cfg.TrackingURL)
	assert.Equal(t, "shared-session", cfg.SessionID)
	assert.True(t, cfg.TrackingRateLimit)
}
