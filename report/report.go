// Package report builds and uploads a terminal-state summary of a
// completed, failed, or paused workflow run, grounded on the teacher's
// checkpoint/restore summary (coordinator.Coordinator's end-of-run report)
// adapted from a PITR restore run to a workflow run.
package report

import (
	"context"
	"time"

	"github.com/gurre/leadpipe/engine"
)

// Report is a terminal-state summary of one workflow run.
type Report struct {
	WorkflowID     string    `json:"workflow_id"`
	Status         string    `json:"status"`
	BlockCount     int       `json:"block_count"`
	ResultRowCount int       `json:"result_row_count"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
	DurationMillis int64     `json:"duration_ms,omitempty"`
}

// Build projects a terminal WorkflowState into a Report.
func Build(ws engine.WorkflowState) Report {
	r := Report{
		WorkflowID:     ws.WorkflowID,
		Status:         string(ws.Status),
		BlockCount:     len(ws.BlocksConfig),
		ResultRowCount: ws.ResultRowCount,
		Error:          ws.Error,
	}
	if ws.StartedAt != nil {
		r.StartedAt = *ws.StartedAt
	}
	if ws.CompletedAt != nil {
		r.CompletedAt = *ws.CompletedAt
	}
	if ws.StartedAt != nil && ws.CompletedAt != nil {
		r.DurationMillis = ws.CompletedAt.Sub(*ws.StartedAt).Milliseconds()
	}
	return r
}

// Uploader uploads a Report to uri, an s3://bucket/key destination.
type Uploader interface {
	UploadReport(ctx context.Context, uri string, r Report) error
}
