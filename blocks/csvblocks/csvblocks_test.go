package csvblocks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gurre/leadpipe/datastore"
)

func newLocalStore(t *testing.T, dir string) *datastore.LocalStore {
	t.Helper()
	store, err := datastore.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return store
}

func TestReadCSVHappyPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leads.csv")
	if err := os.WriteFile(path, []byte("name,company\nAda,Acme\nGrace,Acme\nAlan,Other\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store := newLocalStore(t, dir)
	b := NewReadCSV(dir, dir, store)

	var progressValues []int
	res, err := b.Execute(context.Background(), nil, map[string]any{"file_path": "leads.csv"}, func(p int) { progressValues = append(progressValues, p) }, func() bool { return false }, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Frame.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", res.Frame.Len())
	}
	if got := res.Frame.Columns(); len(got) != 2 || got[0] != "name" || got[1] != "company" {
		t.Fatalf("unexpected columns: %v", got)
	}
	if progressValues[0] != 10 || progressValues[len(progressValues)-1] != 100 {
		t.Errorf("expected progress 10 then 100, got %v", progressValues)
	}
}

func TestReadCSVMissingFilePathIsConfigMissing(t *testing.T) {
	dir := t.TempDir()
	store := newLocalStore(t, dir)
	b := NewReadCSV(dir, dir, store)

	_, err := b.Execute(context.Background(), nil, map[string]any{}, func(int) {}, func() bool { return false }, 0)
	assertExecErr(t, err, "CONFIG_MISSING")
}

func TestReadCSVNotFoundIsIONotFound(t *testing.T) {
	dir := t.TempDir()
	store := newLocalStore(t, dir)
	b := NewReadCSV(dir, dir, store)

	_, err := b.Execute(context.Background(), nil, map[string]any{"file_path": "missing.csv"}, func(int) {}, func() bool { return false }, 0)
	assertExecErr(t, err, "IO_NOT_FOUND")
}

func TestReadCSVResolvesFromRootDirWhenNotInDataDir(t *testing.T) {
	dataDir := t.TempDir()
	rootDir := t.TempDir()
	path := filepath.Join(rootDir, "leads.csv")
	if err := os.WriteFile(path, []byte("name\nAda\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store := newLocalStore(t, dataDir)
	b := NewReadCSV(dataDir, rootDir, store)

	res, err := b.Execute(context.Background(), nil, map[string]any{"file_path": "leads.csv"}, func(int) {}, func() bool { return false }, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Frame.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", res.Frame.Len())
	}
}

func TestSaveCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := newLocalStore(t, dir)

	readBlock := NewReadCSV(dir, dir, store)
	saveBlock := NewSaveCSV(store)

	src := filepath.Join(dir, "leads.csv")
	if err := os.WriteFile(src, []byte("name,company\nAda,Acme\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	readRes, err := readBlock.Execute(context.Background(), nil, map[string]any{"file_path": "leads.csv"}, func(int) {}, func() bool { return false }, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	saveRes, err := saveBlock.Execute(context.Background(), readRes.Frame, map[string]any{"file_name": "out"}, func(int) {}, func() bool { return false }, 0)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saveRes.Frame != readRes.Frame {
		t.Error("expected SaveCSV to return the input frame unchanged")
	}

	written, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	if err != nil {
		t.Fatalf("expected out.csv to exist: %v", err)
	}
	want := "name,company\nAda,Acme\n"
	if string(written) != want {
		t.Errorf("unexpected CSV contents: %q, want %q", written, want)
	}
}

func TestSaveCSVAppendsSuffix(t *testing.T) {
	dir := t.TempDir()
	store := newLocalStore(t, dir)
	b := NewSaveCSV(store)

	readBlock := NewReadCSV(dir, dir, store)
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("name\nAda\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	readRes, err := readBlock.Execute(context.Background(), nil, map[string]any{"file_path": "a.csv"}, func(int) {}, func() bool { return false }, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if _, err := b.Execute(context.Background(), readRes.Frame, map[string]any{"file_name": "report"}, func(int) {}, func() bool { return false }, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.csv")); err != nil {
		t.Errorf("expected report.csv to exist: %v", err)
	}
}

func TestSaveCSVNilFrameIsEmptyInput(t *testing.T) {
	dir := t.TempDir()
	store := newLocalStore(t, dir)
	b := NewSaveCSV(store)

	_, err := b.Execute(context.Background(), nil, map[string]any{}, func(int) {}, func() bool { return false }, 0)
	assertExecErr(t, err, "EMPTY_INPUT")
}

func assertExecErr(t *testing.T, err error, wantKind string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", wantKind)
	}
	if got := err.Error(); len(got) < len(wantKind) || got[:len(wantKind)] != wantKind {
		t.Errorf("expected error kind %s, got %q", wantKind, got)
	}
}
