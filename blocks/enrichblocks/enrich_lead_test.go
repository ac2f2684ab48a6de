package enrichblocks

import (
	"context"
	"sync"
	"testing"

	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/enrichclient"
	"github.com/gurre/leadpipe/frame"
)

// fakeClient records every EnrichLead/FindEmail call by lead name and
// returns a scripted result, or a default success.
type fakeClient struct {
	mu             sync.Mutex
	enrichCalls    []string
	findEmailCalls []string
	fail           map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{fail: map[string]bool{}}
}

func (c *fakeClient) EnrichLead(ctx context.Context, leadInfo map[string]string, structFields map[string]string) (enrichclient.Result, error) {
	c.mu.Lock()
	c.enrichCalls = append(c.enrichCalls, leadInfo["name"])
	fail := c.fail[leadInfo["name"]]
	c.mu.Unlock()

	if fail {
		return enrichclient.Result{Success: false, Detail: "upstream rejected"}, nil
	}
	return enrichclient.Result{Success: true, Data: map[string]any{"title": "Engineer for " + leadInfo["name"]}}, nil
}

func (c *fakeClient) FindEmail(ctx context.Context, lead map[string]string, mode string) (enrichclient.Result, error) {
	c.mu.Lock()
	c.findEmailCalls = append(c.findEmailCalls, lead["name"])
	c.mu.Unlock()
	return enrichclient.Result{Success: true, Data: map[string]any{"email": lead["name"] + "@example.com"}}, nil
}

func rowNames(n int) *frame.Frame {
	f := frame.New([]string{"name", "company"})
	for i := 0; i < n; i++ {
		f.AddRow(map[string]any{"name": rowName(i), "company": "Acme"})
	}
	return f
}

func rowName(i int) string {
	return "lead-" + itoa(i)
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var out []byte
	for i > 0 {
		out = append([]byte{digits[i%10]}, out...)
		i /= 10
	}
	return string(out)
}

func TestEnrichLeadWritesEnrichedColumns(t *testing.T) {
	client := newFakeClient()
	b := NewEnrichLead(client)

	res, err := b.Execute(context.Background(), rowNames(3), map[string]any{"batch_size": 3, "max_concurrent": 3}, func(int) {}, func() bool { return false }, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range res.Frame.RowIDs() {
		if _, ok := res.Frame.Get(id, "enriched_title"); !ok {
			t.Errorf("expected enriched_title for row %d", id)
		}
	}
}

func TestEnrichLeadAbsorbsPerRowFailure(t *testing.T) {
	client := newFakeClient()
	client.fail["lead-1"] = true
	b := NewEnrichLead(client)

	res, err := b.Execute(context.Background(), rowNames(3), map[string]any{"batch_size": 3, "max_concurrent": 3}, func(int) {}, func() bool { return false }, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := res.Frame.RowIDs()
	if _, ok := res.Frame.Get(ids[0], "enriched_title"); !ok {
		t.Error("expected row 0 enriched")
	}
	if _, ok := res.Frame.Get(ids[1], "enriched_title"); ok {
		t.Error("expected row 1 (failed upstream) to remain unenriched")
	}
	if _, ok := res.Frame.Get(ids[2], "enriched_title"); !ok {
		t.Error("expected row 2 enriched")
	}
}

func TestEnrichLeadPausesAtBatchBoundary(t *testing.T) {
	client := newFakeClient()
	b := NewEnrichLead(client)

	calls := 0
	pauseCheck := func() bool {
		calls++
		return calls > 1 // allow the first batch through, pause before the second
	}

	res, err := b.Execute(context.Background(), rowNames(20), map[string]any{"batch_size": 10, "max_concurrent": 2}, func(int) {}, pauseCheck, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Paused {
		t.Fatal("expected block to pause")
	}
	if res.LastProcessedRow != 10 {
		t.Errorf("expected pause at batch boundary 10, got %d", res.LastProcessedRow)
	}
}

func TestEnrichLeadResumeProcessesEachRowExactlyOnce(t *testing.T) {
	client := newFakeClient()
	b := NewEnrichLead(client)

	in := rowNames(30)
	calls := 0
	pauseCheck := func() bool {
		calls++
		return calls > 1
	}
	res, err := b.Execute(context.Background(), in, map[string]any{"batch_size": 10, "max_concurrent": 2}, func(int) {}, pauseCheck, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Paused || res.LastProcessedRow != 10 {
		t.Fatalf("expected pause at row 10, got paused=%v row=%d", res.Paused, res.LastProcessedRow)
	}

	res2, err := b.Execute(context.Background(), res.Frame, map[string]any{"batch_size": 10, "max_concurrent": 2}, func(int) {}, func() bool { return false }, res.LastProcessedRow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res2.Paused {
		t.Fatal("expected resume to complete")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.enrichCalls) != 30 {
		t.Fatalf("expected exactly 30 calls across pause+resume, got %d", len(client.enrichCalls))
	}
	seen := map[string]int{}
	for _, name := range client.enrichCalls {
		seen[name]++
	}
	for name, count := range seen {
		if count != 1 {
			t.Errorf("expected exactly one call for %s, got %d", name, count)
		}
	}
}

func TestEnrichLeadEmptyFrameIsEmptyInput(t *testing.T) {
	client := newFakeClient()
	b := NewEnrichLead(client)

	_, err := b.Execute(context.Background(), frame.New([]string{"name"}), map[string]any{}, func(int) {}, func() bool { return false }, 0)
	execErr, ok := err.(*engine.ExecutionError)
	if !ok {
		t.Fatalf("expected *engine.ExecutionError, got %T", err)
	}
	if execErr.Kind != engine.ErrEmptyInput {
		t.Errorf("expected EMPTY_INPUT, got %s", execErr.Kind)
	}
}

func TestNormalizeStructFromList(t *testing.T) {
	out := normalizeStruct([]any{
		map[string]any{"name": "education", "description": "Educational background"},
	})
	if out["education"] != "Educational background" {
		t.Errorf("expected normalized struct map, got %v", out)
	}
}

func TestNormalizeStructFromMapping(t *testing.T) {
	out := normalizeStruct(map[string]any{"education": "desc"})
	if out["education"] != "desc" {
		t.Errorf("expected normalized struct map, got %v", out)
	}
}

func TestNormalizeStructEmptyMeansDefault(t *testing.T) {
	if out := normalizeStruct(nil); out != nil {
		t.Errorf("expected nil for empty struct config, got %v", out)
	}
	if out := normalizeStruct([]any{}); out != nil {
		t.Errorf("expected nil for empty list, got %v", out)
	}
}
