package dbwriter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/config"
	"github.com/your-org/price-horizon-learner/internal/dataset"
)

const deleteRunExamplesSQL = `DELETE FROM training_examples WHERE run_id = $1`

// Pool is an interface that abstracts the pgxpool.Pool for testability.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Close()
}

// DatasetWriter writes dataset snapshots to PostgreSQL with COPY, one batch
// of BatchSize rows at a time, inside a single transaction per run.
type DatasetWriter struct {
	pool      Pool
	logger    *zap.Logger
	batchSize int
}

// NewDatasetWriter は新しいDatasetWriterを作成します。
// poolがnilの場合は何もしないライターを返します。
func NewDatasetWriter(pool Pool, writerConfig config.DBWriterConfig, logger *zap.Logger) DBWriter {
	if pool == nil {
		return NewDummyWriter(logger)
	}
	batchSize := writerConfig.BatchSize
	if batchSize <= 0 {
		logger.Warn("BatchSize is zero or negative, defaulting to 500.", zap.Int("originalValue", batchSize))
		batchSize = 500
	}
	return &DatasetWriter{pool: pool, logger: logger, batchSize: batchSize}
}

// SaveDataset replaces the stored examples of runID.
func (w *DatasetWriter) SaveDataset(ctx context.Context, runID, instrument string, ds dataset.Dataset) (int64, error) {
	rows := ExampleRows(runID, instrument, ds)

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin dataset transaction: %w", err)
	}
	n, err := w.copyRows(ctx, tx, runID, rows)
	if err != nil {
		_ = tx.Rollback(ctx)
		w.logger.Error("Failed to save dataset", zap.String("runID", runID), zap.Error(err))
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit dataset: %w", err)
	}
	w.logger.Debug("Saved dataset", zap.String("runID", runID), zap.String("instrument", instrument), zap.Int64("rows", n))
	return n, nil
}

func (w *DatasetWriter) copyRows(ctx context.Context, tx pgx.Tx, runID string, rows []ExampleRow) (int64, error) {
	if _, err := tx.Exec(ctx, deleteRunExamplesSQL, runID); err != nil {
		return 0, fmt.Errorf("failed to delete previous examples: %w", err)
	}

	var total int64
	for start := 0; start < len(rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"training_examples"},
			exampleColumns,
			pgx.CopyFromRows(toExampleInterfaces(rows[start:end])),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to copy training examples: %w", err)
		}
		total += n
	}
	return total, nil
}

// Close はデータベース接続プールをクローズします。
func (w *DatasetWriter) Close() {
	w.pool.Close()
	w.logger.Info("Dataset writer connection pool closed")
}
