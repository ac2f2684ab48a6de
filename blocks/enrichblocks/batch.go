// Package enrichblocks implements the two row-oriented enrichment blocks
// (ENRICH_LEAD, FIND_EMAIL): batched, concurrency-bounded fan-out to the
// Enrichment Client with pause points at batch boundaries.
package enrichblocks

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/frame"
)

// runBatches drives the common algorithm shared by both enrichment blocks
// (spec §4.5): pause is checked only before a batch is scheduled, never
// inside one, so an in-flight batch always runs to completion before the
// cursor advances. Within a batch, process is invoked concurrently under a
// semaphore bounding live calls to maxConcurrent; task completion order is
// not observable since each task applies its own result keyed by row id.
//
// It returns the row index (within rows) execution stopped at, and whether
// that stop was a pause (true) as opposed to having processed every row.
func runBatches(ctx context.Context, rows []frame.RowID, start, maxConcurrent, batchSize int, pauseCheck engine.PauseCheckFunc, onProgress engine.ProgressFunc, process func(ctx context.Context, id frame.RowID)) (lastProcessed int, paused bool) {
	total := len(rows)
	current := start
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	for current < total {
		if pauseCheck() {
			return current, true
		}

		end := current + batchSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for _, id := range rows[current:end] {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					return
				}
				defer sem.Release(1)
				process(ctx, id)
			}()
		}
		wg.Wait()

		current = end
		onProgress(int(float64(current) / float64(total) * 100))
	}

	onProgress(100)
	return current, false
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func cellString(f *frame.Frame, id frame.RowID, column string) (string, bool) {
	v, ok := f.Get(id, column)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, true
}
