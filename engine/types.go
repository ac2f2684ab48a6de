package engine

import (
	"sync/atomic"
	"time"
)

// BlockKind is the closed set of block types the engine knows how to
// construct and run. Adding a kind means adding it here, to Catalog in
// catalog.go, and to the BlockFactory each entrypoint passes to New; the
// engine does not support runtime plugin registration.
type BlockKind string

const (
	KindReadCSV    BlockKind = "READ_CSV"
	KindSaveCSV    BlockKind = "SAVE_CSV"
	KindFilter     BlockKind = "FILTER"
	KindEnrichLead BlockKind = "ENRICH_LEAD"
	KindFindEmail  BlockKind = "FIND_EMAIL"
)

// WorkflowStatus is the lifecycle state of a workflow as a whole.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "PENDING"
	WorkflowRunning   WorkflowStatus = "RUNNING"
	WorkflowPaused    WorkflowStatus = "PAUSED"
	WorkflowCompleted WorkflowStatus = "COMPLETED"
	WorkflowFailed    WorkflowStatus = "FAILED"
)

// BlockStatus is the lifecycle state of a single block within a workflow.
type BlockStatus string

const (
	BlockPending   BlockStatus = "PENDING"
	BlockRunning   BlockStatus = "RUNNING"
	BlockPaused    BlockStatus = "PAUSED"
	BlockCompleted BlockStatus = "COMPLETED"
	BlockFailed    BlockStatus = "FAILED"
	BlockSkipped   BlockStatus = "SKIPPED"
)

// BlockDefinition is one user-supplied step of a workflow's pipeline.
type BlockDefinition struct {
	ID     string
	Kind   BlockKind
	Config map[string]any
}

// BlockProgress tracks one block's execution state, one per BlockDefinition,
// in the same order as the workflow's blocks.
type BlockProgress struct {
	BlockID     string
	Kind        BlockKind
	Status      BlockStatus
	Progress    int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// WorkflowState is the full mutable execution state of one workflow. Every
// field is read and written only by the goroutine executing the workflow,
// except PauseRequested: RequestPause sets it from whatever goroutine
// handles the pause request (e.g. an HTTP handler) while the executing
// goroutine polls it via pauseCheck, so it is an *atomic.Bool rather than a
// plain bool. It is a pointer so that GetWorkflowStatus's by-value copy of
// WorkflowState shares the same underlying flag instead of copying a stale
// snapshot of it.
type WorkflowState struct {
	WorkflowID        string
	Status            WorkflowStatus
	Blocks            []BlockProgress
	BlocksConfig      []BlockDefinition
	CurrentBlockIndex int
	PauseRequested    *atomic.Bool
	LastProcessedRow  int
	ResultColumns     []string
	ResultRowCount    int
	ResultPreview     []map[string]any
	StartedAt         *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
	Error             string
}

// WorkflowSummary is a thin read-only projection of a WorkflowState for
// listing surfaces that don't need the full preview/progress detail.
type WorkflowSummary struct {
	WorkflowID string
	Status     WorkflowStatus
	CreatedAt  time.Time
	BlockCount int
}
