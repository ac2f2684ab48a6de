// Package engine implements the Workflow Execution Engine: the state
// machine that drives a linear sequence of blocks over a tabular frame,
// coordinates pause/resume at row granularity, and preserves partial
// results when a workflow stops short of completion.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gurre/leadpipe/frame"
	"github.com/gurre/leadpipe/metrics"
)

// BlockFactory constructs the concrete Block for a given kind and config.
// It is supplied once at Engine construction and is the engine's closed
// kind→constructor table: unknown kinds are rejected by the factory, never
// by open-world lookup.
type BlockFactory func(kind BlockKind, config map[string]any) (Block, error)

// Engine owns every workflow's mutable state and its current frame. It is
// safe to construct once per process and share across goroutines serving
// concurrent workflows, since each workflow's execution touches only its
// own map entry once inserted; RWMutex protects map insertion and eviction,
// not per-workflow field access (that remains single-writer, see
// WorkflowState).
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*WorkflowState
	frames    map[string]*frame.Frame
	newBlock  BlockFactory
	metrics   *metrics.Metrics
}

// New constructs an Engine. factory is consulted once per block per
// execute/resume call to instantiate the concrete Block implementation. m
// may be nil, in which case block execution records nothing; callers that
// want /metrics populated pass the same *metrics.Metrics the HTTP surface
// serves.
func New(factory BlockFactory, m *metrics.Metrics) *Engine {
	return &Engine{
		workflows: make(map[string]*WorkflowState),
		frames:    make(map[string]*frame.Frame),
		newBlock:  factory,
		metrics:   m,
	}
}

// CreateWorkflow allocates a fresh workflow id and materializes a
// WorkflowState in PENDING status, one BlockProgress per supplied
// BlockDefinition.
func (e *Engine) CreateWorkflow(blocks []BlockDefinition) string {
	id := uuid.NewString()
	progress := make([]BlockProgress, len(blocks))
	for i, b := range blocks {
		progress[i] = BlockProgress{BlockID: b.ID, Kind: b.Kind, Status: BlockPending}
	}

	ws := &WorkflowState{
		WorkflowID:     id,
		Status:         WorkflowPending,
		Blocks:         progress,
		BlocksConfig:   append([]BlockDefinition(nil), blocks...),
		PauseRequested: &atomic.Bool{},
		CreatedAt:      time.Now(),
	}

	e.mu.Lock()
	e.workflows[id] = ws
	e.mu.Unlock()

	log.Printf("[ENGINE] created workflow %s with %d blocks", id, len(blocks))
	return id
}

// ExecuteWorkflow drives workflow id through its block sequence starting at
// startBlockIndex/startRow, to COMPLETED, FAILED, or PAUSED.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, startBlockIndex, startRow int) error {
	ws, ok := e.getWorkflow(workflowID)
	if !ok {
		return fmt.Errorf("workflow %s not found", workflowID)
	}

	ws.Status = WorkflowRunning
	ws.PauseRequested.Store(false)
	if ws.StartedAt == nil {
		now := time.Now()
		ws.StartedAt = &now
	}

	current := e.getFrame(workflowID)
	if startBlockIndex > 0 && current == nil {
		return fmt.Errorf("resume requires a stored frame for workflow %s", workflowID)
	}

	for i := 0; i < len(ws.BlocksConfig); i++ {
		if i < startBlockIndex {
			continue
		}

		def := ws.BlocksConfig[i]
		ws.CurrentBlockIndex = i
		ws.Blocks[i].Status = BlockRunning
		if ws.Blocks[i].StartedAt == nil {
			now := time.Now()
			ws.Blocks[i].StartedAt = &now
		}

		block, err := e.newBlock(def.Kind, def.Config)
		if err != nil {
			constructErr := NewExecutionError(ErrConfigInvalid, err.Error())
			e.countBlockError(def.Kind, constructErr)
			e.fail(ws, i, constructErr)
			return nil
		}

		blockStartRow := 0
		if i == startBlockIndex {
			blockStartRow = startRow
		}

		onProgress := func(pct int) {
			ws.Blocks[i].Progress = pct
		}
		pauseCheck := func() bool {
			return ws.PauseRequested.Load()
		}

		log.Printf("[ENGINE] workflow %s entering block %d (%s)", workflowID, i, def.Kind)
		blockStart := time.Now()
		e.countBlockExecuted()
		result, err := block.Execute(ctx, current, def.Config, onProgress, pauseCheck, blockStartRow)
		e.observeBlockDuration(def.Kind, time.Since(blockStart))
		if err != nil {
			e.countBlockError(def.Kind, err)
			e.fail(ws, i, err)
			return nil
		}

		if result.Paused {
			ws.Status = WorkflowPaused
			ws.Blocks[i].Status = BlockPaused
			ws.LastProcessedRow = result.LastProcessedRow
			current = result.Frame
			e.setFrame(workflowID, current)
			e.refreshPreview(ws, current)
			log.Printf("[ENGINE] workflow %s paused in block %d at row %d", workflowID, i, result.LastProcessedRow)
			return nil
		}

		now := time.Now()
		ws.Blocks[i].Status = BlockCompleted
		ws.Blocks[i].Progress = 100
		ws.Blocks[i].CompletedAt = &now
		current = result.Frame
		e.setFrame(workflowID, current)
		e.refreshPreview(ws, current)
		startRow = 0
	}

	ws.Status = WorkflowCompleted
	now := time.Now()
	ws.CompletedAt = &now
	log.Printf("[ENGINE] workflow %s completed", workflowID)
	return nil
}

// countBlockExecuted records one block execution starting, regardless of
// its outcome.
func (e *Engine) countBlockExecuted() {
	if e.metrics == nil {
		return
	}
	e.metrics.BlocksExecuted.Inc()
}

// observeBlockDuration records how long a single block.Execute call took,
// labeled by block kind.
func (e *Engine) observeBlockDuration(kind BlockKind, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.BlockDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// countBlockError records a block execution that returned an error, labeled
// by block kind and the error's Kind when it is an *ExecutionError.
func (e *Engine) countBlockError(kind BlockKind, err error) {
	if e.metrics == nil {
		return
	}
	errKind := string(ErrInternal)
	if execErr, ok := err.(*ExecutionError); ok {
		errKind = string(execErr.Kind)
	}
	e.metrics.BlockErrors.WithLabelValues(string(kind), errKind).Inc()
}

// fail transitions the workflow and its current block to FAILED, copying
// the error detail into both.
func (e *Engine) fail(ws *WorkflowState, blockIndex int, err error) {
	detail := err.Error()
	now := time.Now()
	ws.Status = WorkflowFailed
	ws.Error = detail
	ws.Blocks[blockIndex].Status = BlockFailed
	ws.Blocks[blockIndex].Error = detail
	ws.Blocks[blockIndex].CompletedAt = &now
	ws.CompletedAt = &now
	log.Printf("[ENGINE] workflow %s failed in block %d: %s", ws.WorkflowID, blockIndex, detail)
}

// refreshPreview updates ResultColumns/ResultRowCount/ResultPreview from
// the frame currently stored for a workflow, kept in lock-step per block
// completion and pause capture.
func (e *Engine) refreshPreview(ws *WorkflowState, f *frame.Frame) {
	if f == nil {
		ws.ResultColumns = nil
		ws.ResultRowCount = 0
		ws.ResultPreview = nil
		return
	}
	ws.ResultColumns = append([]string(nil), f.Columns()...)
	ws.ResultRowCount = f.Len()
	ws.ResultPreview = f.Head(10)
}

// ResumeWorkflow resumes a PAUSED workflow from its saved cursor. It
// returns an error if the workflow is not resumable.
func (e *Engine) ResumeWorkflow(ctx context.Context, workflowID string) error {
	ws, ok := e.getWorkflow(workflowID)
	if !ok {
		return fmt.Errorf("workflow %s not found", workflowID)
	}
	if ws.Status != WorkflowPaused {
		return fmt.Errorf("workflow %s cannot resume from status %s", workflowID, ws.Status)
	}
	if ws.BlocksConfig == nil {
		return fmt.Errorf("workflow %s has no stored block configuration", workflowID)
	}
	return e.ExecuteWorkflow(ctx, workflowID, ws.CurrentBlockIndex, ws.LastProcessedRow)
}

// RequestPause marks a RUNNING workflow's cooperative cancellation flag.
// It is idempotent and returns false if the workflow is not RUNNING.
func (e *Engine) RequestPause(workflowID string) bool {
	ws, ok := e.getWorkflow(workflowID)
	if !ok || ws.Status != WorkflowRunning {
		return false
	}
	ws.PauseRequested.Store(true)
	return true
}

// GetWorkflowStatus returns a copy of the workflow's current state, or
// false if it does not exist.
func (e *Engine) GetWorkflowStatus(workflowID string) (WorkflowState, bool) {
	ws, ok := e.getWorkflow(workflowID)
	if !ok {
		return WorkflowState{}, false
	}
	return *ws, true
}

// GetWorkflowResult returns the full frame rows for a COMPLETED workflow.
func (e *Engine) GetWorkflowResult(workflowID string) ([]map[string]any, error) {
	ws, ok := e.getWorkflow(workflowID)
	if !ok {
		return nil, fmt.Errorf("workflow %s not found", workflowID)
	}
	if ws.Status != WorkflowCompleted {
		return nil, fmt.Errorf("workflow %s is not completed (status %s)", workflowID, ws.Status)
	}
	f := e.getFrame(workflowID)
	if f == nil {
		return nil, nil
	}
	return f.Rows(), nil
}

// CleanupWorkflow evicts both the workflow's state and its stored frame.
func (e *Engine) CleanupWorkflow(workflowID string) {
	e.mu.Lock()
	delete(e.workflows, workflowID)
	delete(e.frames, workflowID)
	e.mu.Unlock()
}

// ListWorkflows returns a thin projection of every known workflow, newest
// first by creation time. It backs a workflow-listing surface implied by
// any multi-workflow service but not itself part of the core state machine.
func (e *Engine) ListWorkflows() []WorkflowSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]WorkflowSummary, 0, len(e.workflows))
	for _, ws := range e.workflows {
		out = append(out, WorkflowSummary{
			WorkflowID: ws.WorkflowID,
			Status:     ws.Status,
			CreatedAt:  ws.CreatedAt,
			BlockCount: len(ws.BlocksConfig),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (e *Engine) getWorkflow(id string) (*WorkflowState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ws, ok := e.workflows[id]
	return ws, ok
}

func (e *Engine) getFrame(id string) *frame.Frame {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frames[id]
}

func (e *Engine) setFrame(id string, f *frame.Frame) {
	e.mu.Lock()
	e.frames[id] = f
	e.mu.Unlock()
}
