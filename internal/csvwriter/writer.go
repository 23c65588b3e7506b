// Package csvwriter exports training datasets as CSV.
package csvwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/dataset"
)

// Writer writes dataset rows as CSV.
type Writer struct {
	closer io.Closer
	writer *csv.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{writer: csv.NewWriter(w), logger: logger}
}

// NewFileWriter creates a Writer on a new file at filePath.
func NewFileWriter(filePath string, logger *zap.Logger) (*Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}
	w := NewWriter(file, logger)
	w.closer = file
	return w, nil
}

// Header returns the column names for a dataset: the buy date, the feature
// columns and label_1..label_h.
func Header(lookback, horizon int) []string {
	names := dataset.FeatureNames(lookback)
	header := make([]string, 0, 1+len(names)+horizon)
	header = append(header, "buy_date")
	header = append(header, names...)
	for i := 1; i <= horizon; i++ {
		header = append(header, fmt.Sprintf("label_%d", i))
	}
	return header
}

// WriteDataset writes the header followed by one row per example.
func (w *Writer) WriteDataset(ds dataset.Dataset) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(Header(ds.Lookback, ds.Horizon)); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, ex := range ds.Examples {
		features := ex.Vector()
		record := make([]string, 0, 1+len(features)+ds.Horizon)
		record = append(record, ex.BuyDate.Format("2006-01-02"))
		for _, v := range features {
			record = append(record, formatFloat(v))
		}
		if i < len(ds.Labels) {
			for _, v := range ds.Labels[i].Closes {
				record = append(record, formatFloat(v))
			}
		}
		if err := w.writer.Write(record); err != nil {
			return i, fmt.Errorf("failed to write record to CSV: %w", err)
		}
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return ds.Len(), fmt.Errorf("failed to flush CSV: %w", err)
	}
	w.logger.Debug("Dataset written", zap.Int("rows", ds.Len()))
	return ds.Len(), nil
}

// Flush flushes any buffered data to the underlying writer.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Flush()
}

// Close flushes and closes the file opened by NewFileWriter.
func (w *Writer) Close() error {
	w.Flush()
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
