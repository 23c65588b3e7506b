package dbwriter

import (
	"context"
	"sync"

	"github.com/your-org/price-horizon-learner/internal/dataset"
)

// InMemWriter is an in-memory implementation of the DBWriter interface for testing.
type InMemWriter struct {
	mu       sync.RWMutex
	Rows     map[string][]ExampleRow
	IsClosed bool
}

// NewInMemWriter creates a new InMemWriter.
func NewInMemWriter() *InMemWriter {
	return &InMemWriter{Rows: make(map[string][]ExampleRow)}
}

// SaveDataset replaces the rows stored for runID.
func (w *InMemWriter) SaveDataset(ctx context.Context, runID, instrument string, ds dataset.Dataset) (int64, error) {
	rows := ExampleRows(runID, instrument, ds)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Rows[runID] = rows
	return int64(len(rows)), nil
}

// RunRows returns a copy of the rows stored for runID.
func (w *InMemWriter) RunRows(runID string) []ExampleRow {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]ExampleRow(nil), w.Rows[runID]...)
}

// Close marks the writer as closed.
func (w *InMemWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.IsClosed = true
}

// Clear resets the stored rows.
func (w *InMemWriter) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Rows = make(map[string][]ExampleRow)
	w.IsClosed = false
}
