package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/analytics"
	"github.com/patrickwarner/surfacekit/internal/engine"
	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/placement"
	"github.com/patrickwarner/surfacekit/internal/syncer"
)

// eventReader is the query side of the ClickHouse journal.
type eventReader interface {
	EventsByUser(ctx context.Context, userID string, limit int) ([]analytics.EventRecord, error)
}

// ToolServer holds the engine the MCP tools inspect.
type ToolServer struct {
	eng    *engine.Engine
	events eventReader
	logger *zap.Logger
	// syncTimeout bounds how long a tool waits for a sync to land.
	syncTimeout time.Duration
}

type InitSessionInput struct {
	AppID     string            `json:"app_id,omitempty"`
	AccountID string            `json:"account_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Attrs     map[string]string `json:"attributes,omitempty"`
}

type SyncScreenInput struct {
	Screen    string   `json:"screen"`
	Positions []string `json:"positions,omitempty"`
}

type SyncOutput struct {
	Screen    string `json:"screen"`
	Outcome   string `json:"outcome"`
	Campaigns int    `json:"campaigns"`
}

type ListCampaignsInput struct {
	Type     string `json:"type,omitempty"`
	Position string `json:"position,omitempty"`
}

type CampaignSummary struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Position string `json:"position,omitempty"`
	Screen   string `json:"screen,omitempty"`
	Details  any    `json:"details"`
}

type ListCampaignsOutput struct {
	Screen    string            `json:"screen"`
	Campaigns []CampaignSummary `json:"campaigns"`
}

type ComputePlacementInput struct {
	Anchor    models.Rect `json:"anchor"`
	Viewport  models.Rect `json:"viewport"`
	Popup     models.Size `json:"popup"`
	Arrow     models.Size `json:"arrow"`
	Preferred string      `json:"preferred,omitempty"`
	Padding   float64     `json:"padding,omitempty"`
	Gap       float64     `json:"gap,omitempty"`
}

type PlacementOutput struct {
	Alignment    string       `json:"alignment"`
	Offset       models.Point `json:"offset"`
	ArrowCenterX float64      `json:"arrow_center_x"`
	ArrowOffset  models.Point `json:"arrow_offset"`
}

type TooltipOutput struct {
	State      string `json:"state"`
	Visible    bool   `json:"visible"`
	ID         string `json:"id,omitempty"`
	Target     string `json:"target,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
}

type LastSyncOutput struct {
	Available bool   `json:"available"`
	Screen    string `json:"screen,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Steps     []Step `json:"steps,omitempty"`
}

type Step struct {
	Stage       string            `json:"stage"`
	CampaignIDs []string          `json:"campaign_ids"`
	Details     map[string]string `json:"details,omitempty"`
}

type RecentEventsInput struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

type EventSummary struct {
	Timestamp  string `json:"timestamp"`
	Kind       string `json:"kind"`
	CampaignID string `json:"campaign_id,omitempty"`
	EventName  string `json:"event_name,omitempty"`
	Screen     string `json:"screen,omitempty"`
	Outcome    string `json:"outcome"`
}

type RecentEventsOutput struct {
	Events []EventSummary `json:"events"`
}

// InitSession validates the account and syncs the default screen.
func (s *ToolServer) InitSession(ctx context.Context, req *mcp.CallToolRequest, input InitSessionInput) (*mcp.CallToolResult, SyncOutput, error) {
	s.eng.Initialize(syncer.Session{
		AppID:      input.AppID,
		AccountID:  input.AccountID,
		UserID:     input.UserID,
		UserAgent:  input.UserAgent,
		Attributes: input.Attrs,
	})
	if err := s.waitForSync(ctx); err != nil {
		return nil, SyncOutput{}, err
	}
	return nil, s.syncOutput(), nil
}

// SyncScreen switches to a screen and waits for its campaigns.
func (s *ToolServer) SyncScreen(ctx context.Context, req *mcp.CallToolRequest, input SyncScreenInput) (*mcp.CallToolResult, SyncOutput, error) {
	if input.Screen == "" {
		return nil, SyncOutput{}, errors.New("screen is required")
	}
	s.eng.SyncScreen(input.Screen, input.Positions...)
	if err := s.waitForSync(ctx); err != nil {
		return nil, SyncOutput{}, err
	}
	return nil, s.syncOutput(), nil
}

// ListCampaigns returns the live campaigns, optionally filtered.
func (s *ToolServer) ListCampaigns(ctx context.Context, req *mcp.CallToolRequest, input ListCampaignsInput) (*mcp.CallToolResult, ListCampaignsOutput, error) {
	types := models.AllCampaignTypes
	if input.Type != "" {
		t, err := models.ParseCampaignType(input.Type)
		if err != nil {
			return nil, ListCampaignsOutput{}, err
		}
		types = []models.CampaignType{t}
	}

	out := ListCampaignsOutput{Screen: s.eng.Screen(), Campaigns: []CampaignSummary{}}
	for _, t := range types {
		for _, c := range s.eng.CampaignsOfType(t, input.Position) {
			out.Campaigns = append(out.Campaigns, CampaignSummary{
				ID:       c.ID,
				Type:     string(c.Type),
				Position: c.Position,
				Screen:   c.Screen,
				Details:  c.Details,
			})
		}
	}
	return nil, out, nil
}

// ComputePlacement runs the popup placement calculator on caller geometry.
func (s *ToolServer) ComputePlacement(ctx context.Context, req *mcp.CallToolRequest, input ComputePlacementInput) (*mcp.CallToolResult, PlacementOutput, error) {
	var pref placement.Alignment
	_ = pref.UnmarshalText([]byte(input.Preferred))

	p := placement.Compute(placement.Input{
		Anchor:    input.Anchor,
		Viewport:  input.Viewport,
		Popup:     input.Popup,
		Arrow:     input.Arrow,
		Preferred: pref,
		Padding:   input.Padding,
		Gap:       input.Gap,
	})
	return nil, PlacementOutput{
		Alignment:    p.Alignment.String(),
		Offset:       p.Offset,
		ArrowCenterX: p.ArrowCenterX,
		ArrowOffset:  p.ArrowOffset,
	}, nil
}

// CurrentTooltip reports the showcase cursor.
func (s *ToolServer) CurrentTooltip(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, TooltipOutput, error) {
	cur := s.eng.CurrentTooltip()
	out := TooltipOutput{State: cur.State.String(), Visible: cur.Visible}
	if cur.Tooltip != nil {
		out.ID = cur.Tooltip.ID
		out.Target = cur.Tooltip.Target
		out.CampaignID = cur.Tooltip.CampaignID
	}
	return nil, out, nil
}

// LastSync returns the trace of the most recent sync.
func (s *ToolServer) LastSync(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, LastSyncOutput, error) {
	tr := s.eng.LastSyncTrace()
	if tr == nil {
		return nil, LastSyncOutput{}, nil
	}
	out := LastSyncOutput{
		Available: true,
		Screen:    tr.Screen,
		StartedAt: tr.StartedAt.Format(time.RFC3339Nano),
		Outcome:   tr.Outcome,
	}
	for _, st := range tr.Steps {
		out.Steps = append(out.Steps, Step{Stage: st.Stage, CampaignIDs: st.CampaignIDs, Details: st.Details})
	}
	return nil, out, nil
}

// RecentEvents reads the tracking journal for one user.
func (s *ToolServer) RecentEvents(ctx context.Context, req *mcp.CallToolRequest, input RecentEventsInput) (*mcp.CallToolResult, RecentEventsOutput, error) {
	if s.events == nil {
		return nil, RecentEventsOutput{}, analytics.ErrUnavailable
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	recs, err := s.events.EventsByUser(ctx, input.UserID, limit)
	if err != nil {
		return nil, RecentEventsOutput{}, fmt.Errorf("query events: %w", err)
	}
	out := RecentEventsOutput{Events: make([]EventSummary, 0, len(recs))}
	for _, r := range recs {
		out.Events = append(out.Events, EventSummary{
			Timestamp:  r.Timestamp.Format(time.RFC3339Nano),
			Kind:       r.Kind,
			CampaignID: r.CampaignID,
			EventName:  r.EventName,
			Screen:     r.Screen,
			Outcome:    r.Outcome,
		})
	}
	return nil, out, nil
}

func (s *ToolServer) waitForSync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.eng.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("sync still running", zap.Error(ctx.Err()))
		return fmt.Errorf("waiting for sync: %w", ctx.Err())
	}
}

func (s *ToolServer) syncOutput() SyncOutput {
	out := SyncOutput{Screen: s.eng.Screen()}
	if tr := s.eng.LastSyncTrace(); tr != nil {
		out.Outcome = tr.Outcome
	}
	for _, t := range models.AllCampaignTypes {
		out.Campaigns += len(s.eng.CampaignsOfType(t, ""))
	}
	return out
}
