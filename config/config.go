// Package config implements configuration management for the leadpipe
// process: data/root directories, the HTTP listen address, and the
// enrichment client's credentials and rate limit.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all configuration for a leadpipe process, whether it is
// driving the one-shot CLI runner or the long-lived HTTP server.
type Config struct {
	DataDir            string        // directory CSV source/sink blocks resolve relative file_path/file_name against
	RootDir            string        // secondary resolution directory, tried after DataDir
	ListenAddr         string        // HTTP listen address, e.g. ":8080" (server mode only)
	EnrichAPIKey       string        // credential handed to the enrichment client
	EnrichBaseURL      string        // base URL of the remote enrichment API
	RequestTimeout     time.Duration // per-HTTP-call timeout inside the enrichment client
	MaxWaitPoll        time.Duration // max time to poll an async enrich-lead job before giving up
	RequestsPerSecond  float64       // client-side rate limit applied to outbound enrichment calls
	ReportS3URI        string        // optional S3 URI a COMPLETED/FAILED/PAUSED workflow's report is uploaded to
	ShutdownTimeout    time.Duration // graceful shutdown timeout for the HTTP server
}

// Validate ensures all required fields are present and have valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	if c.RootDir == "" {
		return fmt.Errorf("root directory is required")
	}

	if c.EnrichAPIKey == "" {
		return fmt.Errorf("enrichment API key is required")
	}

	if c.EnrichBaseURL == "" {
		return fmt.Errorf("enrichment base URL is required")
	}
	if !strings.HasPrefix(c.EnrichBaseURL, "http://") && !strings.HasPrefix(c.EnrichBaseURL, "https://") {
		return fmt.Errorf("enrichment base URL must use http or https")
	}

	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request timeout must be at least 1 second")
	}

	if c.MaxWaitPoll < c.RequestTimeout {
		return fmt.Errorf("max wait poll must be at least the request timeout")
	}

	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}

	if c.ReportS3URI != "" {
		if !strings.HasPrefix(c.ReportS3URI, "s3://") {
			return fmt.Errorf("report S3 URI must start with s3://")
		}
		u, err := url.Parse(c.ReportS3URI)
		if err != nil {
			return fmt.Errorf("invalid report S3 URI: %w", err)
		}
		if u.Scheme != "s3" {
			return fmt.Errorf("report S3 URI must use s3 scheme")
		}
	}

	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second")
	}

	return nil
}
