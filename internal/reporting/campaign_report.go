// Package reporting summarises campaign delivery from the ClickHouse tracking
// journal: daily impressions and clicks, per sub-element performance and the
// share of tracking calls the backend rejected.
package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DailyMetrics is one day of delivery for a campaign. CTR is a percentage.
type DailyMetrics struct {
	Date        time.Time `json:"date"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	CTR         float64   `json:"ctr"`
}

// SubElementMetrics is delivery for one sub-element (widget image, reel,
// tooltip, story slide) of a campaign.
type SubElementMetrics struct {
	SubElementID string  `json:"sub_element_id"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	CTR          float64 `json:"ctr"`
}

// CampaignSummary is the report for one campaign over a window of days.
type CampaignSummary struct {
	CampaignID  string              `json:"campaign_id"`
	Days        int                 `json:"days"`
	Impressions int64               `json:"impressions"`
	Clicks      int64               `json:"clicks"`
	CTR         float64             `json:"ctr"`
	Events      int64               `json:"events"`
	Failed      int64               `json:"failed"`
	Daily       []DailyMetrics      `json:"daily"`
	SubElements []SubElementMetrics `json:"sub_elements"`
}

// FailureRate is the percentage of journaled calls the backend did not accept.
func (s *CampaignSummary) FailureRate() float64 {
	total := s.Impressions + s.Clicks + s.Events
	if total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(total) * 100
}

// GenerateCampaignReport queries the journal for campaignID over the last days.
func GenerateCampaignReport(ctx context.Context, db *sql.DB, campaignID string, days int) (*CampaignSummary, error) {
	if days <= 0 {
		days = 7
	}
	summary := &CampaignSummary{CampaignID: campaignID, Days: days}

	daily, err := getDailyMetrics(ctx, db, campaignID, days)
	if err != nil {
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}
	summary.Daily = daily
	for _, d := range daily {
		summary.Impressions += d.Impressions
		summary.Clicks += d.Clicks
	}
	summary.CTR = ctr(summary.Impressions, summary.Clicks)

	if err := getTotals(ctx, db, campaignID, days, summary); err != nil {
		return nil, fmt.Errorf("get totals: %w", err)
	}

	subs, err := getSubElementMetrics(ctx, db, campaignID, days, 10)
	if err != nil {
		return nil, fmt.Errorf("get sub-element metrics: %w", err)
	}
	summary.SubElements = subs

	return summary, nil
}

func getDailyMetrics(ctx context.Context, db *sql.DB, campaignID string, days int) ([]DailyMetrics, error) {
	query := `
		SELECT
			toDate(timestamp) as date,
			countIf(kind = 'impression' AND outcome = 'forwarded') as impressions,
			countIf(kind = 'click' AND outcome = 'forwarded') as clicks
		FROM engine_events
		WHERE campaign_id = ?
			AND timestamp >= now() - INTERVAL ? DAY
		GROUP BY date
		ORDER BY date DESC`

	rows, err := db.QueryContext(ctx, query, campaignID, days)
	if err != nil {
		return nil, fmt.Errorf("query daily metrics: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var metrics []DailyMetrics
	for rows.Next() {
		var m DailyMetrics
		if err := rows.Scan(&m.Date, &m.Impressions, &m.Clicks); err != nil {
			return nil, fmt.Errorf("scan daily metrics: %w", err)
		}
		m.CTR = ctr(m.Impressions, m.Clicks)
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func getTotals(ctx context.Context, db *sql.DB, campaignID string, days int, s *CampaignSummary) error {
	query := `
		SELECT
			countIf(kind = 'event') as events,
			countIf(outcome = 'failed') as failed
		FROM engine_events
		WHERE campaign_id = ?
			AND timestamp >= now() - INTERVAL ? DAY`

	if err := db.QueryRowContext(ctx, query, campaignID, days).Scan(&s.Events, &s.Failed); err != nil {
		return fmt.Errorf("query totals: %w", err)
	}
	return nil
}

// getSubElementMetrics ranks the campaign's sub-elements by impressions.
func getSubElementMetrics(ctx context.Context, db *sql.DB, campaignID string, days, limit int) ([]SubElementMetrics, error) {
	query := `
		SELECT
			sub_element_id,
			countIf(kind = 'impression' AND outcome = 'forwarded') as impressions,
			countIf(kind = 'click' AND outcome = 'forwarded') as clicks
		FROM engine_events
		WHERE campaign_id = ?
			AND sub_element_id != ''
			AND timestamp >= now() - INTERVAL ? DAY
		GROUP BY sub_element_id
		ORDER BY impressions DESC
		LIMIT ?`

	rows, err := db.QueryContext(ctx, query, campaignID, days, limit)
	if err != nil {
		return nil, fmt.Errorf("query sub-element metrics: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []SubElementMetrics
	for rows.Next() {
		var m SubElementMetrics
		if err := rows.Scan(&m.SubElementID, &m.Impressions, &m.Clicks); err != nil {
			return nil, fmt.Errorf("scan sub-element metrics: %w", err)
		}
		m.CTR = ctr(m.Impressions, m.Clicks)
		out = append(out, m)
	}
	return out, rows.Err()
}

func ctr(impressions, clicks int64) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(clicks) / float64(impressions) * 100
}
