// Package campaignapi is the HTTP client for the campaign backend: account
// validation, eligibility, hydration and tracking.
package campaignapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/observability"
)

var (
	// ErrUnauthorized is returned when the backend rejects the credentials (401/403).
	ErrUnauthorized = errors.New("campaign api: unauthorized")
	// ErrAuthUnavailable is returned when no usable access token exists for the session.
	ErrAuthUnavailable = errors.New("campaign api: access token unavailable")
)

// StatusError carries a non-2xx response that is not an auth failure.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Operation, e.StatusCode, e.Body)
}

// EventType is the accounting kind of an action record.
type EventType string

const (
	EventImpression EventType = "IMP"
	EventClick      EventType = "CLK"
)

// Action is an impression or click record.
type Action struct {
	CampaignID   string    `json:"campaign_id"`
	UserID       string    `json:"user_id"`
	EventType    EventType `json:"event_type"`
	SubElementID string    `json:"sub_element_id,omitempty"`
}

// GenericEvent is a free-form event sent to the capture endpoint.
type GenericEvent struct {
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	CampaignID string         `json:"campaign_id,omitempty"`
	EventName  string         `json:"event_name"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// API is the campaign backend as seen by the sync pipeline and the tracker.
type API interface {
	ValidateAccount(ctx context.Context, appID, accountID string) (string, error)
	ListEligibleCampaigns(ctx context.Context, token, screen string, positions []string) ([]string, error)
	HydrateCampaigns(ctx context.Context, token, userID string, campaignIDs []string, attributes map[string]string) ([]json.RawMessage, error)
	RecordAction(ctx context.Context, token string, action Action) error
	CaptureEvent(ctx context.Context, token string, event GenericEvent) error
}

// Client implements API over HTTP/JSON.
type Client struct {
	baseURL     string
	trackingURL string
	httpClient  *http.Client
	logger      *zap.Logger
	metrics     observability.MetricsRegistry
}

var _ API = (*Client)(nil)

// NewClient creates a client for baseURL. trackingURL receives generic events;
// when empty it defaults to baseURL + "/v1/capture".
func NewClient(baseURL, trackingURL string, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if trackingURL == "" {
		trackingURL = baseURL + "/v1/capture"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Client{
		baseURL:     baseURL,
		trackingURL: trackingURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger.Named("campaignapi"),
		metrics: metrics,
	}
}

type validateRequest struct {
	AppID     string `json:"app_id"`
	AccountID string `json:"account_id"`
}

type validateResponse struct {
	AccessToken string `json:"access_token"`
}

// ValidateAccount exchanges the app and account ids for an access token.
func (c *Client) ValidateAccount(ctx context.Context, appID, accountID string) (string, error) {
	var resp validateResponse
	err := c.do(ctx, "validate", http.MethodPost, c.baseURL+"/v1/accounts/validate", "",
		validateRequest{AppID: appID, AccountID: accountID}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("validate: empty access token: %w", ErrUnauthorized)
	}
	return resp.AccessToken, nil
}

type eligibleResponse struct {
	CampaignIDs []string `json:"campaign_ids"`
}

// ListEligibleCampaigns returns the ids of campaigns eligible for screen,
// optionally narrowed to positions.
func (c *Client) ListEligibleCampaigns(ctx context.Context, token, screen string, positions []string) ([]string, error) {
	q := url.Values{}
	q.Set("screen", screen)
	for _, p := range positions {
		if p != "" {
			q.Add("position", p)
		}
	}
	var resp eligibleResponse
	if err := c.do(ctx, "eligible", http.MethodGet, c.baseURL+"/v1/campaigns/eligible?"+q.Encode(), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.CampaignIDs, nil
}

type hydrateRequest struct {
	UserID      string            `json:"user_id"`
	CampaignIDs []string          `json:"campaign_ids"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type hydrateResponse struct {
	Campaigns []json.RawMessage `json:"campaigns"`
}

// HydrateCampaigns fetches full campaign definitions. Records are returned raw
// so one malformed campaign cannot fail the batch.
func (c *Client) HydrateCampaigns(ctx context.Context, token, userID string, campaignIDs []string, attributes map[string]string) ([]json.RawMessage, error) {
	var resp hydrateResponse
	err := c.do(ctx, "hydrate", http.MethodPost, c.baseURL+"/v1/campaigns/hydrate", token,
		hydrateRequest{UserID: userID, CampaignIDs: campaignIDs, Attributes: attributes}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Campaigns, nil
}

// RecordAction posts an impression or click.
func (c *Client) RecordAction(ctx context.Context, token string, action Action) error {
	return c.do(ctx, "action", http.MethodPost, c.baseURL+"/v1/actions", token, action, nil)
}

// CaptureEvent posts a generic event to the tracking endpoint.
func (c *Client) CaptureEvent(ctx context.Context, token string, event GenericEvent) error {
	return c.do(ctx, "capture", http.MethodPost, c.trackingURL, token, event, nil)
}

// do performs one JSON round trip. out may be nil when the body is ignored.
func (c *Client) do(ctx context.Context, op, method, endpoint, token string, body, out any) error {
	start := time.Now()
	outcome := "success"
	defer func() {
		c.metrics.RecordAPILatency(op, time.Since(start))
		c.metrics.IncrementAPICalls(op, outcome)
	}()

	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			outcome = "failure"
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		outcome = "failure"
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "failure"
		return fmt.Errorf("%s: http request: %w", op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		outcome = "unauthorized"
		return fmt.Errorf("%s: http %d: %w", op, resp.StatusCode, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		outcome = "failure"
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = "failure"
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
