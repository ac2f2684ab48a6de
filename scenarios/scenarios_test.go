// Package scenarios exercises the engine end-to-end against the concrete
// block implementations, covering the workflow-level scenarios a single
// package's unit tests cannot: a multi-block pipeline, pause/resume across
// an enrichment block, and per-row upstream failure absorption.
package scenarios

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gurre/leadpipe/blocks/csvblocks"
	"github.com/gurre/leadpipe/blocks/enrichblocks"
	"github.com/gurre/leadpipe/blocks/filterblock"
	"github.com/gurre/leadpipe/datastore"
	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/enrichclient"
)

// scriptedClient is a controllable enrichclient.Client: it fails named
// leads, otherwise succeeds, and records every call it receives under a
// mutex so concurrent batches can be asserted on safely.
type scriptedClient struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{fail: map[string]bool{}}
}

func (c *scriptedClient) EnrichLead(ctx context.Context, leadInfo map[string]string, structFields map[string]string) (enrichclient.Result, error) {
	time.Sleep(time.Millisecond)
	name := leadInfo["name"]
	c.mu.Lock()
	c.calls = append(c.calls, name)
	fail := c.fail[name]
	c.mu.Unlock()

	if fail {
		return enrichclient.Result{Success: false, Detail: "rejected"}, nil
	}
	return enrichclient.Result{Success: true, Data: map[string]any{"title": "Role for " + name}}, nil
}

func (c *scriptedClient) FindEmail(ctx context.Context, lead map[string]string, mode string) (enrichclient.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, lead["name"])
	c.mu.Unlock()
	return enrichclient.Result{Success: true, Data: map[string]any{"email": lead["name"] + "@example.com"}}, nil
}

func newFactory(t *testing.T, dir string, client enrichclient.Client) engine.BlockFactory {
	t.Helper()
	store, err := datastore.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return func(kind engine.BlockKind, config map[string]any) (engine.Block, error) {
		switch kind {
		case engine.KindReadCSV:
			return csvblocks.NewReadCSV(dir, dir, store), nil
		case engine.KindSaveCSV:
			return csvblocks.NewSaveCSV(store), nil
		case engine.KindFilter:
			return filterblock.New(), nil
		case engine.KindEnrichLead:
			return enrichblocks.NewEnrichLead(client), nil
		case engine.KindFindEmail:
			return enrichblocks.NewFindEmail(client), nil
		default:
			return nil, engine.NewExecutionError(engine.ErrConfigInvalid, "unknown block kind")
		}
	}
}

// TestS1HappyPath runs READ_CSV -> FILTER -> SAVE_CSV over a 3-row frame,
// expecting exactly the two Acme rows to survive into out.csv.
func TestS1HappyPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "leads.csv"), []byte("name,company\nAda,Acme\nGrace,Other\nAlan,Acme\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	client := newScriptedClient()
	eng := engine.New(newFactory(t, dir, client), nil)

	blocks := []engine.BlockDefinition{
		{ID: "read", Kind: engine.KindReadCSV, Config: map[string]any{"file_path": "leads.csv"}},
		{ID: "filter", Kind: engine.KindFilter, Config: map[string]any{"column": "company", "operator": "equals", "value": "Acme"}},
		{ID: "save", Kind: engine.KindSaveCSV, Config: map[string]any{"file_name": "out.csv"}},
	}

	workflowID := eng.CreateWorkflow(blocks)
	if err := eng.ExecuteWorkflow(context.Background(), workflowID, 0, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}

	ws, ok := eng.GetWorkflowStatus(workflowID)
	if !ok {
		t.Fatal("expected workflow to exist")
	}
	if ws.Status != engine.WorkflowCompleted {
		t.Fatalf("expected COMPLETED, got %s (error=%s)", ws.Status, ws.Error)
	}
	if ws.ResultRowCount != 2 {
		t.Fatalf("expected 2 Acme rows to survive the filter, got %d", ws.ResultRowCount)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	if err != nil {
		t.Fatalf("expected out.csv to exist: %v", err)
	}
	want := "name,company\nAda,Acme\nAlan,Acme\n"
	if string(data) != want {
		t.Errorf("unexpected out.csv contents: %q, want %q", data, want)
	}
}

func namesCSV(n int) string {
	out := "name,company\n"
	for i := 0; i < n; i++ {
		out += "lead-" + strconv.Itoa(i) + ",Acme\n"
	}
	return out
}

// TestS2PauseThenS3ResumeCompletesWithoutDuplicateCalls drives a 100-row
// enrichment workflow, requests a pause partway through, and verifies the
// pause lands on a batch boundary, then resumes to completion with exactly
// one client call per row overall.
func TestS2PauseThenS3ResumeCompletesWithoutDuplicateCalls(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "leads.csv"), []byte(namesCSV(100)), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	client := newScriptedClient()
	eng := engine.New(newFactory(t, dir, client), nil)

	blocks := []engine.BlockDefinition{
		{ID: "read", Kind: engine.KindReadCSV, Config: map[string]any{"file_path": "leads.csv"}},
		{ID: "enrich", Kind: engine.KindEnrichLead, Config: map[string]any{"batch_size": 10, "max_concurrent": 2}},
	}
	workflowID := eng.CreateWorkflow(blocks)

	go func() {
		time.Sleep(5 * time.Millisecond)
		eng.RequestPause(workflowID)
	}()

	if err := eng.ExecuteWorkflow(context.Background(), workflowID, 0, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}

	ws, _ := eng.GetWorkflowStatus(workflowID)
	if ws.Status != engine.WorkflowPaused {
		t.Fatalf("expected PAUSED, got %s", ws.Status)
	}
	if ws.LastProcessedRow%10 != 0 {
		t.Fatalf("expected pause at a batch boundary (multiple of 10), got %d", ws.LastProcessedRow)
	}

	if err := eng.ResumeWorkflow(context.Background(), workflowID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	ws, _ = eng.GetWorkflowStatus(workflowID)
	if ws.Status != engine.WorkflowCompleted {
		t.Fatalf("expected COMPLETED after resume, got %s (error=%s)", ws.Status, ws.Error)
	}
	if ws.ResultRowCount != 100 {
		t.Fatalf("expected 100 rows, got %d", ws.ResultRowCount)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 100 {
		t.Fatalf("expected exactly 100 enrichment calls across pause+resume, got %d", len(client.calls))
	}
	seen := map[string]int{}
	for _, name := range client.calls {
		seen[name]++
	}
	for name, count := range seen {
		if count != 1 {
			t.Errorf("expected exactly one call for %s, got %d", name, count)
		}
	}
}

// TestS4UpstreamPerRowFailureDoesNotFailTheWorkflow verifies that a single
// row's upstream rejection is absorbed: the workflow still completes, and
// only the rejected row lacks its enrichment columns.
func TestS4UpstreamPerRowFailureDoesNotFailTheWorkflow(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "leads.csv"), []byte("name,company\nlead-0,Acme\nlead-1,Acme\nlead-2,Acme\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	client := newScriptedClient()
	client.fail["lead-1"] = true
	eng := engine.New(newFactory(t, dir, client), nil)

	blocks := []engine.BlockDefinition{
		{ID: "read", Kind: engine.KindReadCSV, Config: map[string]any{"file_path": "leads.csv"}},
		{ID: "enrich", Kind: engine.KindEnrichLead, Config: map[string]any{"batch_size": 3, "max_concurrent": 3}},
	}
	workflowID := eng.CreateWorkflow(blocks)
	if err := eng.ExecuteWorkflow(context.Background(), workflowID, 0, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}

	ws, _ := eng.GetWorkflowStatus(workflowID)
	if ws.Status != engine.WorkflowCompleted {
		t.Fatalf("expected COMPLETED, got %s", ws.Status)
	}
	if ws.Error != "" {
		t.Errorf("expected no workflow-level error, got %q", ws.Error)
	}
	row1 := ws.ResultPreview[1]
	if _, ok := row1["enriched_title"]; ok && row1["enriched_title"] != nil {
		t.Errorf("expected row 1 (rejected upstream) to carry no enrichment, got %v", row1["enriched_title"])
	}
	if ws.ResultPreview[0]["enriched_title"] == nil || ws.ResultPreview[2]["enriched_title"] == nil {
		t.Error("expected rows 0 and 2 to be enriched")
	}
}

// TestS5UnknownOperatorFailsTheWorkflow verifies a Filter config error
// surfaces as a FAILED workflow with the offending detail in its error.
func TestS5UnknownOperatorFailsTheWorkflow(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "leads.csv"), []byte("name,company\nAda,Acme\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	client := newScriptedClient()
	eng := engine.New(newFactory(t, dir, client), nil)

	blocks := []engine.BlockDefinition{
		{ID: "read", Kind: engine.KindReadCSV, Config: map[string]any{"file_path": "leads.csv"}},
		{ID: "filter", Kind: engine.KindFilter, Config: map[string]any{"column": "company", "operator": "matches"}},
	}
	workflowID := eng.CreateWorkflow(blocks)
	if err := eng.ExecuteWorkflow(context.Background(), workflowID, 0, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}

	ws, _ := eng.GetWorkflowStatus(workflowID)
	if ws.Status != engine.WorkflowFailed {
		t.Fatalf("expected FAILED, got %s", ws.Status)
	}
	if ws.Blocks[1].Status != engine.BlockFailed {
		t.Errorf("expected block 1 to be FAILED, got %s", ws.Blocks[1].Status)
	}
	if ws.Error == "" {
		t.Error("expected a non-empty workflow error")
	}
	if !strings.Contains(ws.Error, "operator") {
		t.Errorf("expected the workflow error to name the operator, got %q", ws.Error)
	}
}

// TestS6FindEmailSkipExisting verifies pre-existing emails are preserved
// without a client call, and only the remaining rows trigger lookups.
func TestS6FindEmailSkipExisting(t *testing.T) {
	dir := t.TempDir()
	fixture := "name,company,email\nAda,Acme,ada@known.com\nGrace,Acme,\nAlan,Acme,\nJohn,Acme,john@known.com\n"
	if err := os.WriteFile(filepath.Join(dir, "leads.csv"), []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	client := newScriptedClient()
	eng := engine.New(newFactory(t, dir, client), nil)

	blocks := []engine.BlockDefinition{
		{ID: "read", Kind: engine.KindReadCSV, Config: map[string]any{"file_path": "leads.csv"}},
		{ID: "find", Kind: engine.KindFindEmail, Config: map[string]any{"skip_existing": true, "output_column": "found_email"}},
	}
	workflowID := eng.CreateWorkflow(blocks)
	if err := eng.ExecuteWorkflow(context.Background(), workflowID, 0, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}

	ws, _ := eng.GetWorkflowStatus(workflowID)
	if ws.Status != engine.WorkflowCompleted {
		t.Fatalf("expected COMPLETED, got %s", ws.Status)
	}
	if ws.ResultPreview[0]["found_email"] != "ada@known.com" {
		t.Errorf("expected pre-existing email preserved for row 0, got %v", ws.ResultPreview[0]["found_email"])
	}
	if ws.ResultPreview[3]["found_email"] != "john@known.com" {
		t.Errorf("expected pre-existing email preserved for row 3, got %v", ws.ResultPreview[3]["found_email"])
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 2 {
		t.Fatalf("expected exactly 2 client calls for the rows missing an email, got %d: %v", len(client.calls), client.calls)
	}
}
