package enrichblocks

import (
	"context"

	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/enrichclient"
	"github.com/gurre/leadpipe/frame"
)

// EnrichLeadBlock fans out one Enrichment Client call per row, writing the
// response payload's keys (minus success/error) into enriched_* columns.
type EnrichLeadBlock struct {
	client enrichclient.Client
}

// NewEnrichLead constructs an EnrichLeadBlock against client.
func NewEnrichLead(client enrichclient.Client) *EnrichLeadBlock {
	return &EnrichLeadBlock{client: client}
}

// Execute implements engine.Block.
func (b *EnrichLeadBlock) Execute(ctx context.Context, in *frame.Frame, config map[string]any, onProgress engine.ProgressFunc, pauseCheck engine.PauseCheckFunc, startRow int) (engine.ExecResult, error) {
	if in == nil || in.Len() == 0 {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrEmptyInput, "no frame to enrich")
	}

	structFields := normalizeStruct(config["struct"])
	nameCol := stringOr(config["name_column"], "name")
	companyCol := stringOr(config["company_column"], "company")
	linkedinCol := stringOr(config["linkedin_column"], "linkedin")
	maxConcurrent := intOr(config["max_concurrent"], 1)
	batchSize := intOr(config["batch_size"], maxConcurrent)
	if maxConcurrent < 1 {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigInvalid, "max_concurrent must be at least 1")
	}
	if batchSize < 1 {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigInvalid, "batch_size must be at least 1")
	}

	working := in.Clone()
	rows := working.RowIDs()

	process := func(ctx context.Context, id frame.RowID) {
		leadInfo := map[string]string{}
		if v, ok := cellString(working, id, nameCol); ok {
			leadInfo["name"] = v
		}
		if v, ok := cellString(working, id, companyCol); ok {
			leadInfo["company"] = v
		}
		if v, ok := cellString(working, id, linkedinCol); ok {
			leadInfo["linkedin"] = v
		}
		if v, ok := cellString(working, id, "email"); ok {
			leadInfo["email"] = v
		}
		if v, ok := cellString(working, id, "company_location"); ok {
			leadInfo["location"] = v
		}

		result, err := b.client.EnrichLead(ctx, leadInfo, structFields)
		if err != nil || !result.Success {
			return
		}
		for key, value := range result.Data {
			if key == "success" || key == "error" {
				continue
			}
			working.Set(id, "enriched_"+key, value)
		}
	}

	lastProcessed, paused := runBatches(ctx, rows, startRow, maxConcurrent, batchSize, pauseCheck, onProgress, process)
	if paused {
		return engine.ExecResult{Frame: working, Paused: true, LastProcessedRow: lastProcessed}, nil
	}
	return engine.ExecResult{Frame: working}, nil
}

// normalizeStruct converts the "struct" config key, which may arrive as a
// list of {name, description} objects or a direct name→description
// mapping, into a plain map[string]string. Nil/empty input means "default
// fields" and is represented as a nil map.
func normalizeStruct(v any) map[string]string {
	switch s := v.(type) {
	case []any:
		out := make(map[string]string, len(s))
		for _, item := range s {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, ok := m["name"].(string)
			if !ok || name == "" {
				continue
			}
			desc, _ := m["description"].(string)
			out[name] = desc
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(s))
		for k, val := range s {
			if str, ok := val.(string); ok {
				out[k] = str
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
