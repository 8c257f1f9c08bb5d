package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Journal receives a copy of every tracking record the engine forwards.
// Implementations should return ErrUnavailable when storage is not configured.
type Journal interface {
	RecordEvent(ctx context.Context, ev Event) error
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// Event kinds written to the journal.
const (
	KindImpression = "impression"
	KindClick      = "click"
	KindEvent      = "event"
)

// Event is one journal entry.
type Event struct {
	Timestamp    time.Time
	Kind         string
	EventID      string
	UserID       string
	CampaignID   string
	SubElementID string
	EventName    string
	Screen       string
	// Outcome is "forwarded" or "failed" depending on the backend call.
	Outcome  string
	Metadata map[string]any
}

// EventRecord mirrors a row in the engine_events table.
type EventRecord struct {
	Timestamp    time.Time       `json:"timestamp"`
	Kind         string          `json:"kind"`
	EventID      string          `json:"event_id"`
	UserID       string          `json:"user_id"`
	CampaignID   string          `json:"campaign_id"`
	SubElementID string          `json:"sub_element_id,omitempty"`
	EventName    string          `json:"event_name,omitempty"`
	Screen       string          `json:"screen,omitempty"`
	Outcome      string          `json:"outcome"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

var _ Journal = (*Analytics)(nil)

const createEventsTable = `CREATE TABLE IF NOT EXISTS engine_events (
       timestamp      DateTime64(3),
       kind           String,
       event_id       String,
       user_id        String,
       campaign_id    String,
       sub_element_id String,
       event_name     String,
       screen         String,
       outcome        String,
       metadata       String
   ) ENGINE=MergeTree() ORDER BY (kind, timestamp)`

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(ctx context.Context, dsn string) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(5)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	a := &Analytics{DB: db}
	if err := a.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	zap.L().Info("Connected to ClickHouse")
	return a, nil
}

// EnsureSchema creates the events table if needed.
func (a *Analytics) EnsureSchema(ctx context.Context) error {
	if _, err := a.DB.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("clickhouse create table: %w", err)
	}
	return nil
}

// RecordEvent inserts a single event row.
func (a *Analytics) RecordEvent(ctx context.Context, ev Event) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	meta := ""
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(raw)
	}

	stmt := `INSERT INTO engine_events (timestamp, kind, event_id, user_id, campaign_id, sub_element_id, event_name, screen, outcome, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ev.Timestamp, ev.Kind, ev.EventID, ev.UserID, ev.CampaignID, ev.SubElementID, ev.EventName, ev.Screen, ev.Outcome, meta); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("kind", ev.Kind))
		return fmt.Errorf("insert %s event: %w", ev.Kind, err)
	}
	return nil
}

// EventsByUser returns the most recent events for a user, newest first.
func (a *Analytics) EventsByUser(ctx context.Context, userID string, limit int) ([]EventRecord, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT timestamp, kind, event_id, user_id, campaign_id, sub_element_id, event_name, screen, outcome, metadata FROM engine_events WHERE user_id=? ORDER BY timestamp DESC LIMIT ?`
	rows, err := a.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		var meta string
		if err := rows.Scan(&ev.Timestamp, &ev.Kind, &ev.EventID, &ev.UserID, &ev.CampaignID, &ev.SubElementID, &ev.EventName, &ev.Screen, &ev.Outcome, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if meta != "" {
			ev.Metadata = json.RawMessage(meta)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
