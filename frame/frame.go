// Package frame implements the in-memory tabular collaborator blocks read
// from and write to: a table of rows addressed by a stable row identifier,
// with named, ordered columns and nullable cells.
package frame

import "sync"

// RowID is a row's stable identifier. It never changes as a Frame is
// filtered, copied, or partially enriched, so batched enrichment tasks that
// complete out of order can still apply their result to the correct row.
type RowID int

// Frame is an in-memory table of rows with named columns. A nil cell (or a
// cell that was never set) is treated as "missing" throughout the package.
//
// Get/Set are safe for concurrent use: enrichment blocks apply many
// in-flight tasks' results to distinct rows of the same frame at once, and
// every such call may need to append a newly-seen enriched_* column.
type Frame struct {
	mu      sync.Mutex
	columns []string
	order   []RowID
	rows    map[RowID]map[string]any
	nextID  RowID
}

// New returns an empty frame with the given column order.
func New(columns []string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{
		columns: cols,
		rows:    make(map[RowID]map[string]any),
	}
}

// AddRow appends a new row built from cells (keyed by column name) and
// returns its stable identifier. Columns present in cells but not yet
// tracked by the frame are appended to the column order.
func (f *Frame) AddRow(cells map[string]any) RowID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	row := make(map[string]any, len(cells))
	for k, v := range cells {
		row[k] = v
		f.ensureColumnLocked(k)
	}
	f.rows[id] = row
	f.order = append(f.order, id)
	return id
}

// ensureColumnLocked appends name to the column order if it isn't already
// tracked. Callers must hold f.mu.
func (f *Frame) ensureColumnLocked(name string) {
	for _, c := range f.columns {
		if c == name {
			return
		}
	}
	f.columns = append(f.columns, name)
}

// AddColumn ensures a column exists in the frame's column order, without
// assigning it a value on any row. Idempotent.
func (f *Frame) AddColumn(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureColumnLocked(name)
}

// Columns returns the frame's columns in declaration order. The returned
// slice must not be mutated by callers.
func (f *Frame) Columns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.columns...)
}

// RowIDs returns the frame's row identifiers in row order. The returned
// slice must not be mutated by callers.
func (f *Frame) RowIDs() []RowID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RowID(nil), f.order...)
}

// Len returns the number of rows in the frame.
func (f *Frame) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// Get returns the value of a cell, and whether it was present (non-missing).
func (f *Frame) Get(id RowID, column string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, false
	}
	v, ok := row[column]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Set writes a cell value, creating the column if it does not yet exist.
// Setting a row id not currently present in the frame is a no-op: callers
// must only Set rows that AddRow (or Clone) already produced. Safe to call
// concurrently for distinct row ids, which is exactly how enrichment
// blocks apply a batch's results.
func (f *Frame) Set(id RowID, column string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return
	}
	row[column] = value
	f.ensureColumnLocked(column)
}

// Clone returns a deep-enough copy of the frame: row identifiers, order and
// column list are preserved, and each row's cell map is independent of the
// source frame's, so writes to the clone never affect the original.
func (f *Frame) Clone() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &Frame{
		columns: append([]string(nil), f.columns...),
		order:   append([]RowID(nil), f.order...),
		rows:    make(map[RowID]map[string]any, len(f.rows)),
		nextID:  f.nextID,
	}
	for id, row := range f.rows {
		cp := make(map[string]any, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.rows[id] = cp
	}
	return out
}

// Filter returns a new frame containing only the rows for which keep
// returns true, preserving row order, row identifiers, and column order.
// keep is invoked without f's lock held, so it may itself call Get/Set on f.
func (f *Frame) Filter(keep func(id RowID) bool) *Frame {
	f.mu.Lock()
	order := append([]RowID(nil), f.order...)
	cols := append([]string(nil), f.columns...)
	nextID := f.nextID
	f.mu.Unlock()

	out := &Frame{
		columns: cols,
		rows:    make(map[RowID]map[string]any),
		nextID:  nextID,
	}
	for _, id := range order {
		if !keep(id) {
			continue
		}

		f.mu.Lock()
		row := f.rows[id]
		cp := make(map[string]any, len(row))
		for k, v := range row {
			cp[k] = v
		}
		f.mu.Unlock()

		out.rows[id] = cp
		out.order = append(out.order, id)
	}
	return out
}

// Head returns the first up to n rows as maps keyed by every column, with
// missing cells normalized to nil.
func (f *Frame) Head(n int) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n > len(f.order) {
		n = len(f.order)
	}
	out := make([]map[string]any, 0, n)
	for _, id := range f.order[:n] {
		out = append(out, f.rowViewLocked(id))
	}
	return out
}

// Rows returns every row as a map keyed by every column, with missing cells
// normalized to nil. Used for full-result projections once a workflow completes.
func (f *Frame) Rows() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.rowViewLocked(id))
	}
	return out
}

// rowViewLocked builds a row's view with one entry per column. Callers must
// hold f.mu.
func (f *Frame) rowViewLocked(id RowID) map[string]any {
	row := f.rows[id]
	view := make(map[string]any, len(f.columns))
	for _, c := range f.columns {
		v, ok := row[c]
		if !ok {
			v = nil
		}
		view[c] = v
	}
	return view
}
