package enrichblocks

import (
	"context"

	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/enrichclient"
	"github.com/gurre/leadpipe/frame"
)

// FindEmailBlock fans out one email-discovery call per candidate row,
// skipping rows that already carry an email when skip_existing is set.
type FindEmailBlock struct {
	client enrichclient.Client
}

// NewFindEmail constructs a FindEmailBlock against client.
func NewFindEmail(client enrichclient.Client) *FindEmailBlock {
	return &FindEmailBlock{client: client}
}

// Execute implements engine.Block.
func (b *FindEmailBlock) Execute(ctx context.Context, in *frame.Frame, config map[string]any, onProgress engine.ProgressFunc, pauseCheck engine.PauseCheckFunc, startRow int) (engine.ExecResult, error) {
	if in == nil || in.Len() == 0 {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrEmptyInput, "no frame to process")
	}

	mode := stringOr(config["mode"], "PROFESSIONAL")
	nameCol := stringOr(config["name_column"], "name")
	companyCol := stringOr(config["company_column"], "company")
	linkedinCol := stringOr(config["linkedin_column"], "linkedin")
	outputCol := stringOr(config["output_column"], "found_email")
	skipExisting := boolOr(config["skip_existing"], true)
	maxConcurrent := intOr(config["max_concurrent"], 10)
	batchSize := intOr(config["batch_size"], maxConcurrent)
	if maxConcurrent < 1 {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigInvalid, "max_concurrent must be at least 1")
	}
	if batchSize < 1 {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigInvalid, "batch_size must be at least 1")
	}

	working := in.Clone()
	working.AddColumn(outputCol)

	// Build the candidate list, preserving source row order. Rows with a
	// pre-existing email are resolved immediately, without a client call,
	// when skip_existing is set.
	var candidates []frame.RowID
	for _, id := range working.RowIDs() {
		if skipExisting {
			if email, ok := cellString(working, id, "email"); ok && email != "" {
				working.Set(id, outputCol, email)
				continue
			}
		}
		candidates = append(candidates, id)
	}

	if len(candidates) == 0 {
		onProgress(100)
		return engine.ExecResult{Frame: working}, nil
	}

	process := func(ctx context.Context, id frame.RowID) {
		lead := map[string]string{}
		if v, ok := cellString(working, id, nameCol); ok {
			lead["name"] = v
		}
		if v, ok := cellString(working, id, companyCol); ok {
			lead["company"] = v
		}
		if v, ok := cellString(working, id, linkedinCol); ok {
			lead["linkedin"] = v
		}

		result, err := b.client.FindEmail(ctx, lead, mode)
		if err != nil || !result.Success {
			return
		}
		email, _ := result.Data["email"].(string)
		if email == "" {
			email, _ = result.Data["found_email"].(string)
		}
		if email != "" {
			working.Set(id, outputCol, email)
		}
	}

	lastProcessed, paused := runBatches(ctx, candidates, startRow, maxConcurrent, batchSize, pauseCheck, onProgress, process)
	if paused {
		return engine.ExecResult{Frame: working, Paused: true, LastProcessedRow: lastProcessed}, nil
	}
	return engine.ExecResult{Frame: working}, nil
}
