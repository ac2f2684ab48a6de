package csvblocks

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/gurre/leadpipe/datastore"
	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/frame"
)

// SaveCSVBlock writes the current frame to a named CSV file, without a
// row-index column, and returns the frame unchanged.
type SaveCSVBlock struct {
	store datastore.Store
}

// NewSaveCSV constructs a SaveCSVBlock writing through store.
func NewSaveCSV(store datastore.Store) *SaveCSVBlock {
	return &SaveCSVBlock{store: store}
}

// Execute implements engine.Block. Ignores pause_cb/start_row: a CSV sink
// writes atomically.
func (b *SaveCSVBlock) Execute(ctx context.Context, in *frame.Frame, config map[string]any, onProgress engine.ProgressFunc, pauseCheck engine.PauseCheckFunc, startRow int) (engine.ExecResult, error) {
	if in == nil {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrEmptyInput, "no frame to save")
	}

	fileName, _ := config["file_name"].(string)
	if fileName == "" {
		fileName = "output.csv"
	}
	if !strings.HasSuffix(fileName, ".csv") {
		fileName += ".csv"
	}

	onProgress(10)

	data, err := encodeCSV(in)
	if err != nil {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrInternal, err.Error())
	}

	if err := b.store.Upload(ctx, fileName, data); err != nil {
		return engine.ExecResult{}, engine.NewExecutionError(engine.ErrIOFailure, fmt.Sprintf("write %q: %v", fileName, err))
	}

	onProgress(100)
	return engine.ExecResult{Frame: in}, nil
}

func encodeCSV(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	columns := f.Columns()
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for _, row := range f.Rows() {
		record := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok && v != nil {
				record[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
