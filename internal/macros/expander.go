package macros

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// MacroExpander handles macro expansion in campaign deep links.
type MacroExpander struct {
	logger       *zap.Logger
	expansions   map[string]ExpansionFunc
	expansionsMu sync.RWMutex
	strictMode   bool // any expansion failure fails the whole link

	expansionCounter  *prometheus.CounterVec
	expansionDuration prometheus.Histogram
	failureCounter    *prometheus.CounterVec
}

// ExpansionFunc defines the signature for macro expansion functions
type ExpansionFunc func(ctx *ExpansionContext) (string, error)

// ExpansionContext contains all data available for macro expansion
type ExpansionContext struct {
	SessionID string
	UserID    string
	Screen    string
	Timestamp time.Time

	CampaignID   string
	CampaignType string
	SubElementID string

	// CustomParams are the session's targeting attributes, reachable as {CUSTOM.key}.
	CustomParams map[string]string
}

type expanderMetrics struct {
	expansions *prometheus.CounterVec
	duration   prometheus.Histogram
	failures   *prometheus.CounterVec
}

func newExpanderMetrics(factory promauto.Factory) expanderMetrics {
	return expanderMetrics{
		expansions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "link_macro_expansions_total",
				Help: "Total number of deep-link macro expansions performed",
			},
			[]string{"macro", "success"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "link_macro_expansion_duration_seconds",
				Help:    "Time taken to expand all macros in a link",
				Buckets: prometheus.DefBuckets,
			},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "link_macro_expansion_failures_total",
				Help: "Total number of deep-link macro expansion failures",
			},
			[]string{"macro", "error_type"},
		),
	}
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     expanderMetrics
)

// NewMacroExpander creates a lenient expander registered on the default registry.
func NewMacroExpander(logger *zap.Logger) *MacroExpander {
	return NewMacroExpanderWithMode(logger, false)
}

// NewMacroExpanderWithMode creates an expander with configurable strict/lenient mode.
func NewMacroExpanderWithMode(logger *zap.Logger, strictMode bool) *MacroExpander {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = newExpanderMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return newExpander(logger, strictMode, defaultMetrics)
}

// NewMacroExpanderForTesting creates an expander whose metrics live on a private registry.
func NewMacroExpanderForTesting(logger *zap.Logger, strictMode bool) *MacroExpander {
	return newExpander(logger, strictMode, newExpanderMetrics(promauto.With(prometheus.NewRegistry())))
}

func newExpander(logger *zap.Logger, strictMode bool, m expanderMetrics) *MacroExpander {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &MacroExpander{
		logger:            logger,
		expansions:        make(map[string]ExpansionFunc),
		strictMode:        strictMode,
		expansionCounter:  m.expansions,
		expansionDuration: m.duration,
		failureCounter:    m.failures,
	}
	e.registerDefaultMacros()
	return e
}

// SetStrictMode enables or disables strict macro expansion mode
func (e *MacroExpander) SetStrictMode(strict bool) {
	e.strictMode = strict
}

// ExpandURL expands all macros in the given link.
func (e *MacroExpander) ExpandURL(rawURL string, ctx *ExpansionContext) (string, error) {
	start := time.Now()
	defer func() {
		e.expansionDuration.Observe(time.Since(start).Seconds())
	}()

	if rawURL == "" {
		return "", nil
	}
	if _, err := url.Parse(rawURL); err != nil {
		e.logger.Error("Failed to parse link for macro expansion",
			zap.String("url", rawURL),
			zap.Error(err))
		return rawURL, err
	}
	if ctx == nil {
		ctx = &ExpansionContext{}
	}

	expanded := e.expandCustomParams(rawURL, ctx)

	expanded, macrosFound, err := e.expandStandardMacros(expanded, ctx)
	if err != nil {
		if e.strictMode {
			return "", err
		}
		e.logger.Warn("Macro expansion completed with errors, continuing with partial expansion",
			zap.String("original_url", rawURL),
			zap.String("partial_url", expanded),
			zap.Error(err))
	}

	if macrosFound > 0 {
		e.logger.Debug("Expanded macros in link",
			zap.String("original_url", rawURL),
			zap.String("expanded_url", expanded),
			zap.Int("macros_found", macrosFound))
	}
	return expanded, nil
}

func (e *MacroExpander) expandStandardMacros(rawURL string, ctx *ExpansionContext) (string, int, error) {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	var replacements []string
	found := 0
	var firstErr error
	for macro, fn := range e.expansions {
		placeholder := "{" + macro + "}"
		if !strings.Contains(rawURL, placeholder) {
			continue
		}
		found++

		value, err := fn(ctx)
		if err != nil {
			e.expansionCounter.WithLabelValues(macro, "false").Inc()
			e.failureCounter.WithLabelValues(macro, "expansion_error").Inc()
			e.logger.Error("Failed to expand macro",
				zap.String("macro", macro),
				zap.String("url", rawURL),
				zap.Error(err))
			if e.strictMode {
				return "", 0, fmt.Errorf("macro expansion failed in strict mode for macro '%s': %w", macro, err)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		replacements = append(replacements, placeholder, url.QueryEscape(value))
		e.expansionCounter.WithLabelValues(macro, "true").Inc()
	}

	if len(replacements) > 0 {
		rawURL = strings.NewReplacer(replacements...).Replace(rawURL)
	}
	return rawURL, found, firstErr
}

// RegisterMacro adds a custom macro expansion function
func (e *MacroExpander) RegisterMacro(name string, expansionFunc ExpansionFunc) error {
	if name == "" {
		return fmt.Errorf("macro name cannot be empty")
	}
	if expansionFunc == nil {
		return fmt.Errorf("expansion function cannot be nil")
	}

	e.expansionsMu.Lock()
	defer e.expansionsMu.Unlock()
	e.expansions[name] = expansionFunc

	e.logger.Info("Registered custom macro", zap.String("macro", name))
	return nil
}

// GetRegisteredMacros returns a list of all registered macro names
func (e *MacroExpander) GetRegisteredMacros() []string {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	macros := make([]string, 0, len(e.expansions))
	for name := range e.expansions {
		macros = append(macros, name)
	}
	return macros
}

func (e *MacroExpander) registerDefaultMacros() {
	e.expansions["SESSION_ID"] = func(ctx *ExpansionContext) (string, error) { return ctx.SessionID, nil }
	e.expansions["USER_ID"] = func(ctx *ExpansionContext) (string, error) { return ctx.UserID, nil }
	e.expansions["SCREEN"] = func(ctx *ExpansionContext) (string, error) { return ctx.Screen, nil }
	e.expansions["CAMPAIGN_ID"] = func(ctx *ExpansionContext) (string, error) { return ctx.CampaignID, nil }
	e.expansions["CAMPAIGN_TYPE"] = func(ctx *ExpansionContext) (string, error) { return ctx.CampaignType, nil }
	e.expansions["SUB_ELEMENT_ID"] = func(ctx *ExpansionContext) (string, error) { return ctx.SubElementID, nil }

	e.expansions["TIMESTAMP"] = func(ctx *ExpansionContext) (string, error) {
		return fmt.Sprintf("%d", ctx.Timestamp.Unix()), nil
	}
	e.expansions["TIMESTAMP_MS"] = func(ctx *ExpansionContext) (string, error) {
		return fmt.Sprintf("%d", ctx.Timestamp.UnixMilli()), nil
	}
	e.expansions["ISO_TIMESTAMP"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.Timestamp.Format(time.RFC3339), nil
	}

	// cache busting
	e.expansions["RANDOM"] = func(ctx *ExpansionContext) (string, error) {
		return fmt.Sprintf("%d", time.Now().UnixNano()), nil
	}
	e.expansions["UUID"] = func(ctx *ExpansionContext) (string, error) {
		return uuid.New().String(), nil
	}

	// CUSTOM.key is handled by expandCustomParams
	e.expansions["CUSTOM"] = func(ctx *ExpansionContext) (string, error) {
		return "", fmt.Errorf("CUSTOM macro requires a parameter key")
	}
}

// ExpandCustomParameter returns the value of custom parameter key.
func (e *MacroExpander) ExpandCustomParameter(key string, ctx *ExpansionContext) (string, error) {
	if ctx.CustomParams == nil {
		return "", fmt.Errorf("no custom parameters available")
	}
	value, exists := ctx.CustomParams[key]
	if !exists {
		return "", fmt.Errorf("custom parameter '%s' not found", key)
	}
	return value, nil
}

// expandCustomParams expands {CUSTOM.key} patterns. Unknown keys are left as is.
func (e *MacroExpander) expandCustomParams(rawURL string, ctx *ExpansionContext) string {
	if ctx.CustomParams == nil {
		return rawURL
	}
	expanded := rawURL
	for key, value := range ctx.CustomParams {
		placeholder := "{CUSTOM." + key + "}"
		if strings.Contains(expanded, placeholder) {
			expanded = strings.ReplaceAll(expanded, placeholder, url.QueryEscape(value))
		}
	}
	return expanded
}

// ValidateURL returns the macros in rawURL that no expansion function handles.
func (e *MacroExpander) ValidateURL(rawURL string) []string {
	var unsupported []string

	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	rest := rawURL
	for {
		start := strings.Index(rest, "{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end == -1 {
			break
		}
		end += start
		macro := rest[start+1 : end]
		rest = rest[end+1:]

		if strings.HasPrefix(macro, "CUSTOM.") {
			continue
		}
		if _, ok := e.expansions[macro]; !ok {
			unsupported = append(unsupported, macro)
		}
	}
	return unsupported
}
