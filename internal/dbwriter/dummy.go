package dbwriter

import (
	"context"

	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/dataset"
)

// dummyWriter is a no-op DBWriter used when no database connection is available.
type dummyWriter struct {
	logger *zap.Logger
}

// NewDummyWriter creates a new dummy writer.
func NewDummyWriter(l *zap.Logger) DBWriter {
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("Creating dummy DB writer because no database connection is available.")
	return &dummyWriter{logger: l}
}

// SaveDataset does nothing and reports zero rows.
func (d *dummyWriter) SaveDataset(ctx context.Context, runID, instrument string, ds dataset.Dataset) (int64, error) {
	d.logger.Debug("Dummy writer: SaveDataset called", zap.String("runID", runID), zap.Int("examples", ds.Len()))
	return 0, nil
}

// Close does nothing.
func (d *dummyWriter) Close() {}
