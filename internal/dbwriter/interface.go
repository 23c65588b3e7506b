package dbwriter

import (
	"context"

	"github.com/your-org/price-horizon-learner/internal/dataset"
)

// DBWriter persists the dataset snapshot a training run was fitted on.
// This allows for mocking in tests.
type DBWriter interface {
	// SaveDataset stores every example of ds under runID and returns the
	// number of rows written. Saving the same run again replaces its rows.
	SaveDataset(ctx context.Context, runID, instrument string, ds dataset.Dataset) (int64, error)
	Close()
}
