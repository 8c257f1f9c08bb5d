package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds engine configuration derived from environment variables.
type Config struct {
	ServiceName  string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Campaign API
	APIBaseURL  string
	TrackingURL string
	APITimeout  time.Duration
	// Session defaults used by the bridge server and MCP tools
	AppID         string
	AccountID     string
	UserID        string
	DefaultScreen string
	// SessionID scopes the shared impression ledger; generated when empty
	SessionID string
	// Tooltip showcase
	TooltipPollInterval time.Duration
	PopupPadding        float64
	ArrowGap            float64
	// Per-campaign throttle on impression calls, off by default
	TrackingRateLimit  bool
	TrackingRateBurst  int
	TrackingRatePerSec int
	// Storage backends: "memory", "redis" or "postgres" (KV only)
	LedgerBackend string
	KVBackend     string
	RedisAddr     string
	LedgerTTL     time.Duration
	PostgresDSN   string
	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	// ClickHouseDSN enables the tracking journal when set.
	ClickHouseDSN string
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.ServiceName = getenv("SERVICE_NAME", "surfacekit")
	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)

	cfg.APIBaseURL = getenv("API_BASE_URL", "http://localhost:8080")
	cfg.TrackingURL = getenv("TRACKING_URL", cfg.APIBaseURL+"/v1/capture")
	cfg.APITimeout = envDuration("API_TIMEOUT", 10*time.Second)

	cfg.AppID = getenv("APP_ID", "")
	cfg.AccountID = getenv("ACCOUNT_ID", "")
	cfg.UserID = getenv("USER_ID", "")
	cfg.DefaultScreen = getenv("DEFAULT_SCREEN", "home")
	cfg.SessionID = getenv("SESSION_ID", "")

	cfg.TooltipPollInterval = envDuration("TOOLTIP_POLL_INTERVAL", 500*time.Millisecond)
	cfg.PopupPadding = envFloat("POPUP_PADDING", 8)
	cfg.ArrowGap = envFloat("ARROW_GAP", 4)

	cfg.TrackingRateLimit = envBool("TRACKING_RATE_LIMIT", false)
	cfg.TrackingRateBurst = envInt("TRACKING_RATE_BURST", 20)
	cfg.TrackingRatePerSec = envInt("TRACKING_RATE_PER_SEC", 10)

	cfg.LedgerBackend = getenv("LEDGER_BACKEND", "memory")
	cfg.KVBackend = getenv("KV_BACKEND", "memory")
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	// ledger keys outlive any realistic session
	cfg.LedgerTTL = envDuration("LEDGER_TTL", 24*time.Hour)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 2)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
