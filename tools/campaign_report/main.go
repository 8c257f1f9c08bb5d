// Campaign Report Tool summarises delivery of one campaign from the ClickHouse
// tracking journal.
//
// Usage:
//
//	go run ./tools/campaign_report -campaign-id=home-0-ab12 -days=30
//
// The report covers forwarded impressions and clicks, a daily breakdown, the
// top sub-elements and the share of tracking calls the backend rejected.
//
// Configuration:
//
//	-campaign-id: Required. The campaign ID to report on
//	-days: Optional. Number of days to include (default: 7)
//	-clickhouse-dsn: Optional. ClickHouse connection string (default: CLICKHOUSE_DSN)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/patrickwarner/surfacekit/internal/analytics"
	"github.com/patrickwarner/surfacekit/internal/config"
	"github.com/patrickwarner/surfacekit/internal/reporting"
)

func main() {
	var (
		campaignID = flag.String("campaign-id", "", "Campaign ID to generate report for")
		days       = flag.Int("days", 7, "Number of days to include in report")
		dsn        = flag.String("clickhouse-dsn", config.Load().ClickHouseDSN, "ClickHouse DSN")
	)
	flag.Parse()

	if *campaignID == "" {
		fmt.Fprintf(os.Stderr, "Error: campaign-id is required\n")
		flag.Usage()
		os.Exit(1)
	}
	if *dsn == "" {
		fmt.Fprintf(os.Stderr, "Error: clickhouse-dsn is required (flag or CLICKHOUSE_DSN)\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := analytics.InitClickHouse(ctx, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to ClickHouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	summary, err := reporting.GenerateCampaignReport(ctx, a.DB, *campaignID, *days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	printCampaignReport(summary)
}

func printCampaignReport(summary *reporting.CampaignSummary) {
	line := "───────────────────────────────────────────────────────────────"
	fmt.Printf("CAMPAIGN DELIVERY REPORT\n%s\n", line)
	fmt.Printf("Campaign ID: %s\n", summary.CampaignID)
	fmt.Printf("Report Period: %d days (ending %s)\n\n", summary.Days, time.Now().Format("2006-01-02"))

	fmt.Printf("Impressions:   %s\n", formatNumber(summary.Impressions))
	fmt.Printf("Clicks:        %s\n", formatNumber(summary.Clicks))
	fmt.Printf("CTR:           %.2f%%\n", summary.CTR)
	fmt.Printf("Events:        %s\n", formatNumber(summary.Events))
	fmt.Printf("Failed calls:  %s (%.1f%%)\n\n", formatNumber(summary.Failed), summary.FailureRate())

	if len(summary.Daily) > 0 {
		fmt.Printf("DAILY BREAKDOWN\n%s\n", line)
		fmt.Printf("Date        | Impressions | Clicks |   CTR\n")
		for _, d := range summary.Daily {
			fmt.Printf("%-10s | %11s | %6s | %6.2f%%\n",
				d.Date.Format("2006-01-02"), formatNumber(d.Impressions), formatNumber(d.Clicks), d.CTR)
		}
		fmt.Println()
	}

	if len(summary.SubElements) > 0 {
		fmt.Printf("TOP SUB-ELEMENTS\n%s\n", line)
		fmt.Printf("%-24s | Impressions | Clicks |   CTR\n", "Sub-element")
		for _, s := range summary.SubElements {
			fmt.Printf("%-24s | %11s | %6s | %6.2f%%\n",
				s.SubElementID, formatNumber(s.Impressions), formatNumber(s.Clicks), s.CTR)
		}
		fmt.Println()
	}

	if summary.FailureRate() > 5 {
		fmt.Printf("Warning: %.1f%% of tracking calls failed; check campaign API credentials\n", summary.FailureRate())
	}
	if summary.Impressions > 0 && summary.Clicks == 0 {
		fmt.Printf("No clicks recorded in this period\n")
	}
}

// formatNumber adds thousands separators: 1234567 becomes "1,234,567".
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}
	result := ""
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}
	return result
}
