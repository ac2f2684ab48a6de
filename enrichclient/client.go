// Package enrichclient implements the Enrichment Client collaborator: an
// injected capability the two enrichment blocks call per row, returning a
// success/error result the core must tolerate arbitrary payload keys from.
package enrichclient

import "context"

// Result is the outcome of one enrichment call: either Success with an
// arbitrary-shaped Data payload, or a failure with a Detail string. The
// core extracts every key from Data except "success"/"error" into
// enriched_* columns, so Data's shape is deliberately untyped.
type Result struct {
	Success bool
	Data    map[string]any
	Detail  string
}

// Client is the Enrichment Client collaborator. Implementations must treat
// upstream failures as ordinary Result values, never as an error return:
// an error return is reserved for failures the calling block cannot
// recover from (e.g. a malformed request), not for ordinary upstream
// rejections.
type Client interface {
	// EnrichLead submits a lead enrichment job and returns once it
	// resolves (success or failure), or once the configured max wait
	// elapses.
	EnrichLead(ctx context.Context, leadInfo map[string]string, structFields map[string]string) (Result, error)

	// FindEmail looks up an email address for a lead.
	FindEmail(ctx context.Context, lead map[string]string, mode string) (Result, error)
}
