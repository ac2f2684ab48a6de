// Package main implements the one-shot CLI runner: it executes a single
// workflow described by a JSON block list to completion and reports the
// result, without starting the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	json "github.com/goccy/go-json"

	"github.com/gurre/leadpipe/blocks/csvblocks"
	"github.com/gurre/leadpipe/blocks/enrichblocks"
	"github.com/gurre/leadpipe/blocks/filterblock"
	"github.com/gurre/leadpipe/config"
	"github.com/gurre/leadpipe/datastore"
	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/enrichclient"
)

type blockSpec struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("leadpipe-run", flag.ExitOnError)

	workflowFile := fs.String("workflow", "", "Path to a JSON file containing the block list to run")
	dataDir := fs.String("data-dir", "./data", "Local directory CSV blocks resolve file_path/file_name against")
	rootDir := fs.String("root-dir", ".", "Secondary directory tried after data-dir")
	enrichAPIKey := fs.String("enrich-api-key", "", "Enrichment API credential")
	enrichBaseURL := fs.String("enrich-base-url", "", "Enrichment API base URL")
	requestTimeout := fs.Duration("request-timeout", 30*time.Second, "Per-HTTP-call timeout for the enrichment client")
	maxWaitPoll := fs.Duration("max-wait-poll", 5*time.Minute, "Max time to poll an async enrich-lead job")
	requestsPerSecond := fs.Float64("requests-per-second", 5, "Client-side rate limit for outbound enrichment calls")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *workflowFile == "" {
		return fmt.Errorf("-workflow is required")
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfg := &config.Config{
		DataDir:           *dataDir,
		RootDir:           *rootDir,
		EnrichAPIKey:      *enrichAPIKey,
		EnrichBaseURL:     *enrichBaseURL,
		RequestTimeout:    *requestTimeout,
		MaxWaitPoll:       *maxWaitPoll,
		RequestsPerSecond: *requestsPerSecond,
		ShutdownTimeout:   30 * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	raw, err := os.ReadFile(*workflowFile)
	if err != nil {
		return fmt.Errorf("read workflow file: %w", err)
	}
	var specs []blockSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return fmt.Errorf("parse workflow file: %w", err)
	}

	blocks := make([]engine.BlockDefinition, len(specs))
	for i, s := range specs {
		blocks[i] = engine.BlockDefinition{ID: s.ID, Kind: engine.BlockKind(s.Type), Config: s.Config}
	}

	store, err := datastore.NewLocalStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("create local store: %w", err)
	}
	client := enrichclient.NewHTTPClient(cfg.EnrichBaseURL, cfg.EnrichAPIKey, cfg.RequestTimeout, cfg.MaxWaitPoll, cfg.RequestsPerSecond, nil)

	eng := engine.New(func(kind engine.BlockKind, config map[string]any) (engine.Block, error) {
		switch kind {
		case engine.KindReadCSV:
			return csvblocks.NewReadCSV(cfg.DataDir, cfg.RootDir, store), nil
		case engine.KindSaveCSV:
			return csvblocks.NewSaveCSV(store), nil
		case engine.KindFilter:
			return filterblock.New(), nil
		case engine.KindEnrichLead:
			return enrichblocks.NewEnrichLead(client), nil
		case engine.KindFindEmail:
			return enrichblocks.NewFindEmail(client), nil
		default:
			return nil, fmt.Errorf("unknown block kind %q", kind)
		}
	}, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	workflowID := eng.CreateWorkflow(blocks)
	fmt.Printf("Starting workflow %s with %d blocks\n", workflowID, len(blocks))

	if err := eng.ExecuteWorkflow(ctx, workflowID, 0, 0); err != nil {
		return fmt.Errorf("execute workflow: %w", err)
	}

	ws, _ := eng.GetWorkflowStatus(workflowID)
	switch ws.Status {
	case engine.WorkflowCompleted:
		fmt.Printf("Workflow completed: %d rows\n", ws.ResultRowCount)
		return nil
	case engine.WorkflowPaused:
		fmt.Printf("Workflow paused at row %d\n", ws.LastProcessedRow)
		return nil
	case engine.WorkflowFailed:
		return fmt.Errorf("workflow failed: %s", ws.Error)
	default:
		return fmt.Errorf("workflow ended in unexpected status %s", ws.Status)
	}
}
