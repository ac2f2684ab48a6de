// Package main implements the long-lived HTTP server: it wires the engine,
// the file surface, the enrichment client and metrics behind the httpapi
// router, and serves until an interrupt signal requests a graceful
// shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gurre/s3streamer"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gurre/leadpipe/blocks/csvblocks"
	"github.com/gurre/leadpipe/blocks/enrichblocks"
	"github.com/gurre/leadpipe/blocks/filterblock"
	"github.com/gurre/leadpipe/config"
	"github.com/gurre/leadpipe/datastore"
	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/enrichclient"
	"github.com/gurre/leadpipe/httpapi"
	"github.com/gurre/leadpipe/metrics"
	"github.com/gurre/leadpipe/report"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("leadpipe-server", flag.ExitOnError)

	dataDir := fs.String("data-dir", "./data", "Local directory CSV blocks resolve file_path/file_name against")
	rootDir := fs.String("root-dir", ".", "Secondary directory tried after data-dir")
	listenAddr := fs.String("listen", ":8080", "HTTP listen address")
	s3Bucket := fs.String("s3-bucket", "", "Optional S3 bucket backing the file surface instead of data-dir")
	s3Prefix := fs.String("s3-prefix", "", "Key prefix within s3-bucket")
	enrichAPIKey := fs.String("enrich-api-key", "", "Enrichment API credential")
	enrichBaseURL := fs.String("enrich-base-url", "", "Enrichment API base URL")
	requestTimeout := fs.Duration("request-timeout", 30*time.Second, "Per-HTTP-call timeout for the enrichment client")
	maxWaitPoll := fs.Duration("max-wait-poll", 5*time.Minute, "Max time to poll an async enrich-lead job")
	requestsPerSecond := fs.Float64("requests-per-second", 5, "Client-side rate limit for outbound enrichment calls")
	reportS3URI := fs.String("report", "", "Optional S3 URI for workflow reports")
	shutdownTimeout := fs.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfg := &config.Config{
		DataDir:           *dataDir,
		RootDir:           *rootDir,
		ListenAddr:        *listenAddr,
		EnrichAPIKey:      *enrichAPIKey,
		EnrichBaseURL:     *enrichBaseURL,
		RequestTimeout:    *requestTimeout,
		MaxWaitPoll:       *maxWaitPoll,
		RequestsPerSecond: *requestsPerSecond,
		ReportS3URI:       *reportS3URI,
		ShutdownTimeout:   *shutdownTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	var store datastore.Store
	localStore, err := datastore.NewLocalStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("create local store: %w", err)
	}
	store = localStore

	var reportUploader report.Uploader
	if *s3Bucket != "" || cfg.ReportS3URI != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)

		if *s3Bucket != "" {
			streamer := s3streamer.NewS3Streamer(s3Client)
			store = datastore.NewS3Store(s3Client, streamer, *s3Bucket, *s3Prefix)
		}
		if cfg.ReportS3URI != "" {
			reportUploader = report.NewS3Uploader(s3Client)
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := enrichclient.NewHTTPClient(cfg.EnrichBaseURL, cfg.EnrichAPIKey, cfg.RequestTimeout, cfg.MaxWaitPoll, cfg.RequestsPerSecond, m)

	eng := engine.New(blockFactory(cfg, store, client), m)

	server := httpapi.New(eng, store, m, reg, reportUploader, cfg.ReportS3URI)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		<-ctx.Done()
		log.Printf("[SERVER] shutdown signal received, draining for up to %s", cfg.ShutdownTimeout)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[SERVER] graceful shutdown error: %v", err)
		}
	}()

	log.Printf("[SERVER] listening on %s", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	log.Println("[SERVER] stopped")
	return nil
}

// blockFactory closes over every block's dependencies and constructs the
// concrete Block for a given kind, rejecting anything outside the closed
// BlockKind set.
func blockFactory(cfg *config.Config, dataStore datastore.Store, client enrichclient.Client) engine.BlockFactory {
	return func(kind engine.BlockKind, config map[string]any) (engine.Block, error) {
		switch kind {
		case engine.KindReadCSV:
			return csvblocks.NewReadCSV(cfg.DataDir, cfg.RootDir, dataStore), nil
		case engine.KindSaveCSV:
			return csvblocks.NewSaveCSV(dataStore), nil
		case engine.KindFilter:
			return filterblock.New(), nil
		case engine.KindEnrichLead:
			return enrichblocks.NewEnrichLead(client), nil
		case engine.KindFindEmail:
			return enrichblocks.NewFindEmail(client), nil
		default:
			return nil, fmt.Errorf("unknown block kind %q", kind)
		}
	}
}
