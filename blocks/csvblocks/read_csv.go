// Package csvblocks implements the CSV source and sink blocks: reading a
// configured file_path into a frame, and writing the current frame back out
// to a named CSV file.
package csvblocks

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gurre/leadpipe/datastore"
	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/frame"
)

// ReadCSVBlock loads a CSV file into a frame. It resolves a local file_path
// through the three-tier local lookup, or downloads directly when file_path
// is an s3:// URI.
type ReadCSVBlock struct {
	dataDir string
	rootDir string
	store   datastore.Store
}

// NewReadCSV constructs a ReadCSVBlock. store is used only for s3:// paths;
// local paths are resolved and read directly against dataDir/rootDir.
func NewReadCSV(dataDir, rootDir string, store datastore.Store) *ReadCSVBlock {
	return &ReadCSVBlock{dataDir: dataDir, rootDir: rootDir, store: store}
}

// Execute implements engine.Block. Ignores start_row: a CSV source is read
// atomically in full.
func (b *ReadCSVBlock) Execute(ctx context.Context, in *frame.Frame, config map[string]any, onProgress engine.ProgressFunc, pauseCheck engine.PauseCheckFunc, startRow int) (engine.ExecResult, error) {
	filePath, _ := config["file_path"].(string)
	if filePath == "" {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrConfigMissing, "file_path is required")
	}

	onProgress(10)

	type readOutcome struct {
		data []byte
		err  error
	}
	done := make(chan readOutcome, 1)
	go func() {
		data, err := b.load(ctx, filePath)
		done <- readOutcome{data, err}
	}()

	var outcome readOutcome
	select {
	case outcome = <-done:
	case <-ctx.Done():
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrIOFailure, ctx.Err().Error())
	}
	if outcome.err != nil {
		return engine.ExecResult{}, outcome.err
	}

	f, err := parseCSV(outcome.data)
	if err != nil {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrIOFailure, err.Error())
	}

	onProgress(100)
	return engine.ExecResult{Frame: f}, nil
}

func (b *ReadCSVBlock) load(ctx context.Context, filePath string) ([]byte, error) {
	if datastore.IsS3URI(filePath) {
		data, err := b.store.Download(ctx, filePath)
		if err != nil {
			return nil, engine.NewExecutionError(engine.ErrIONotFound, fmt.Sprintf("download %q: %v", filePath, err))
		}
		return data, nil
	}

	resolved, ok := datastore.ResolvePath(filePath, b.dataDir, b.rootDir)
	if !ok {
		return nil, engine.NewExecutionError(engine.ErrIONotFound, fmt.Sprintf("CSV file not found: %s", filePath))
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, engine.NewExecutionError(engine.ErrIOFailure, fmt.Sprintf("read %q: %v", resolved, err))
	}
	return data, nil
}

func parseCSV(data []byte) (*frame.Frame, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	f := frame.New(header)
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		cells := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(record) {
				cells[col] = record[i]
			}
		}
		f.AddRow(cells)
	}
	return f, nil
}
