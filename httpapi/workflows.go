package httpapi

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	json "github.com/goccy/go-json"

	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/report"
)

type blockDefinitionRequest struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

type workflowExecuteRequest struct {
	Blocks []blockDefinitionRequest `json:"blocks"`
}

type workflowCreateResponse struct {
	WorkflowID string `json:"workflow_id"`
	Message    string `json:"message"`
}

type blockProgressResponse struct {
	BlockID   string `json:"block_id"`
	BlockType string `json:"block_type"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
}

type workflowStatusResponse struct {
	WorkflowID        string                  `json:"workflow_id"`
	Status            string                  `json:"status"`
	Blocks            []blockProgressResponse `json:"blocks"`
	CurrentBlockIndex int                     `json:"current_block_index"`
	Error             string                  `json:"error,omitempty"`
	ResultPreview     []map[string]any        `json:"result_preview,omitempty"`
	ResultColumns     []string                `json:"result_columns,omitempty"`
	ResultRowCount    int                     `json:"result_row_count"`
}

// handleExecuteWorkflow creates a workflow from the posted block list and
// starts it running in the background; callers poll /status for progress,
// mirroring the original FastAPI surface's background-task dispatch.
func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	blocks := make([]engine.BlockDefinition, len(req.Blocks))
	for i, b := range req.Blocks {
		blocks[i] = engine.BlockDefinition{ID: b.ID, Kind: engine.BlockKind(b.Type), Config: b.Config}
	}

	workflowID := s.engine.CreateWorkflow(blocks)
	s.metrics.WorkflowsCreated.Inc()

	go func() {
		if err := s.engine.ExecuteWorkflow(context.Background(), workflowID, 0, 0); err != nil {
			return
		}
		s.recordTerminalState(workflowID)
	}()

	writeJSON(w, http.StatusOK, workflowCreateResponse{WorkflowID: workflowID, Message: "Workflow started"})
}

func (s *Server) recordTerminalState(workflowID string) {
	ws, ok := s.engine.GetWorkflowStatus(workflowID)
	if !ok {
		return
	}
	switch ws.Status {
	case engine.WorkflowCompleted:
		s.metrics.WorkflowsComplete.Inc()
	case engine.WorkflowFailed:
		s.metrics.WorkflowsFailed.Inc()
	case engine.WorkflowPaused:
		s.metrics.WorkflowsPaused.Inc()
	}
	s.uploadReport(ws)
}

// uploadReport sends a terminal-state report.Report to s.reportURI, when
// both a report.Uploader and a destination URI were configured. Upload
// failures are logged, not surfaced, since a report is a side artifact of
// a workflow run, not part of its result.
func (s *Server) uploadReport(ws engine.WorkflowState) {
	if s.reportUploader == nil || s.reportURI == "" {
		return
	}
	r := report.Build(ws)
	if err := s.reportUploader.UploadReport(context.Background(), s.reportURI, r); err != nil {
		log.Printf("[SERVER] failed to upload report for workflow %s: %v", ws.WorkflowID, err)
	}
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	ws, ok := s.engine.GetWorkflowStatus(workflowID)
	if !ok {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}

	blocks := make([]blockProgressResponse, len(ws.Blocks))
	for i, b := range ws.Blocks {
		blocks[i] = blockProgressResponse{
			BlockID:   b.BlockID,
			BlockType: string(b.Kind),
			Status:    string(b.Status),
			Progress:  b.Progress,
			Error:     b.Error,
		}
	}

	writeJSON(w, http.StatusOK, workflowStatusResponse{
		WorkflowID:        ws.WorkflowID,
		Status:            string(ws.Status),
		Blocks:            blocks,
		CurrentBlockIndex: ws.CurrentBlockIndex,
		Error:             ws.Error,
		ResultPreview:     ws.ResultPreview,
		ResultColumns:     ws.ResultColumns,
		ResultRowCount:    ws.ResultRowCount,
	})
}

func (s *Server) handleWorkflowResults(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	ws, ok := s.engine.GetWorkflowStatus(workflowID)
	if !ok {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	if ws.Status != engine.WorkflowCompleted {
		writeError(w, http.StatusBadRequest, "Workflow is "+string(ws.Status)+", not completed")
		return
	}

	rows, err := s.engine.GetWorkflowResult(workflowID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns":   ws.ResultColumns,
		"row_count": len(rows),
		"data":      rows,
	})
}

func (s *Server) handlePauseWorkflow(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	if !s.engine.RequestPause(workflowID) {
		writeError(w, http.StatusBadRequest, "Workflow is not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pause requested"})
}

func (s *Server) handleResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	ws, ok := s.engine.GetWorkflowStatus(workflowID)
	if !ok {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	if ws.Status != engine.WorkflowPaused {
		writeError(w, http.StatusBadRequest, "Workflow is not paused")
		return
	}

	go func() {
		if err := s.engine.ResumeWorkflow(context.Background(), workflowID); err != nil {
			return
		}
		s.recordTerminalState(workflowID)
	}()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow resumed"})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	s.engine.CleanupWorkflow(workflowID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow deleted"})
}
