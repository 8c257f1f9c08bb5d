package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/analytics"
	"github.com/patrickwarner/surfacekit/internal/campaignapi"
	"github.com/patrickwarner/surfacekit/internal/config"
	"github.com/patrickwarner/surfacekit/internal/engine"
	"github.com/patrickwarner/surfacekit/internal/observability"
)

type schema = map[string]interface{}

var (
	rectSchema = schema{
		"type": "object",
		"properties": schema{
			"left":   schema{"type": "number"},
			"top":    schema{"type": "number"},
			"right":  schema{"type": "number"},
			"bottom": schema{"type": "number"},
		},
	}
	sizeSchema = schema{
		"type": "object",
		"properties": schema{
			"width":  schema{"type": "number"},
			"height": schema{"type": "number"},
		},
	}
	emptySchema = schema{"type": "object"}
)

// registerTools adds every inspection tool to server.
func registerTools(server *mcp.Server, ts *ToolServer) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "init_session",
		Description: "Validate the account and sync campaigns for the default screen",
		InputSchema: schema{
			"type": "object",
			"properties": schema{
				"app_id":     schema{"type": "string", "description": "Application id (defaults to APP_ID)"},
				"account_id": schema{"type": "string", "description": "Account id (defaults to ACCOUNT_ID)"},
				"user_id":    schema{"type": "string", "description": "End user id"},
				"user_agent": schema{"type": "string", "description": "User-Agent used to derive device attributes"},
				"attributes": schema{
					"type":                 "object",
					"additionalProperties": schema{"type": "string"},
					"description":          "Targeting attributes sent with hydration",
				},
			},
		},
	}, ts.InitSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_screen",
		Description: "Switch to a screen and load its eligible campaigns",
		InputSchema: schema{
			"type": "object",
			"properties": schema{
				"screen": schema{"type": "string", "description": "Screen identifier"},
				"positions": schema{
					"type":        "array",
					"items":       schema{"type": "string"},
					"description": "Optional positions to narrow eligibility",
				},
			},
			"required": []string{"screen"},
		},
	}, ts.SyncScreen)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_campaigns",
		Description: "List the live campaigns for the current screen",
		InputSchema: schema{
			"type": "object",
			"properties": schema{
				"type":     schema{"type": "string", "description": "Campaign type such as BANNER or TOOLTIP_SET (optional)"},
				"position": schema{"type": "string", "description": "Position filter (optional)"},
			},
		},
	}, ts.ListCampaigns)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compute_placement",
		Description: "Compute where a tooltip popup and its arrow are drawn for an anchor",
		InputSchema: schema{
			"type": "object",
			"properties": schema{
				"anchor":    rectSchema,
				"viewport":  rectSchema,
				"popup":     sizeSchema,
				"arrow":     sizeSchema,
				"preferred": schema{"type": "string", "enum": []string{"auto", "top", "bottom"}},
				"padding":   schema{"type": "number"},
				"gap":       schema{"type": "number"},
			},
			"required": []string{"anchor", "viewport", "popup"},
		},
	}, ts.ComputePlacement)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "current_tooltip",
		Description: "Show the tooltip showcase state",
		InputSchema: emptySchema,
	}, ts.CurrentTooltip)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "last_sync",
		Description: "Show the stage-by-stage trace of the most recent sync",
		InputSchema: emptySchema,
	}, ts.LastSync)

	if ts.events != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "recent_events",
			Description: "Read recent tracking events for a user from the ClickHouse journal",
			InputSchema: schema{
				"type": "object",
				"properties": schema{
					"user_id": schema{"type": "string"},
					"limit":   schema{"type": "integer", "minimum": 1, "maximum": 1000},
				},
				"required": []string{"user_id"},
			},
		}, ts.RecentEvents)
	}
}

func main() {
	// stdout carries the protocol, so logs go to stderr
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.LevelKey = "level"
	zcfg.EncoderConfig.NameKey = "logger"
	zcfg.EncoderConfig.CallerKey = "caller"
	zcfg.EncoderConfig.MessageKey = "msg"
	zcfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("surfacekit-mcp").With(zap.String("service", "surfacekit-mcp"))

	if err := run(logger, config.Load()); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewNoOpRegistry()
	client := campaignapi.NewClient(cfg.APIBaseURL, cfg.TrackingURL, cfg.APITimeout, logger, metrics)

	ts := &ToolServer{logger: logger, syncTimeout: 2 * cfg.APITimeout}
	deps := engine.Deps{Config: cfg, API: client, Logger: logger, Metrics: metrics}

	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(ctx, cfg.ClickHouseDSN)
		if err != nil {
			logger.Warn("ClickHouse unavailable, recent_events disabled", zap.Error(err))
		} else {
			defer ch.Close()
			deps.Journal = ch
			ts.events = ch
		}
	}

	eng, err := engine.New(deps)
	if err != nil {
		return err
	}
	eng.Start(ctx)
	defer eng.Close()
	ts.eng = eng

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "surfacekit",
		Version: "1.0.0",
	}, nil)
	registerTools(server, ts)

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio", zap.String("api", cfg.APIBaseURL))
	if err := server.Run(ctx, transport); err != nil {
		return fmt.Errorf("%w (mcp log: %s)", err, logBuffer.String())
	}
	return nil
}
