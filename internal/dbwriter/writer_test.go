package dbwriter

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/config"
	"github.com/your-org/price-horizon-learner/internal/dataset"
)

func testDataset(n int) dataset.Dataset {
	ds := dataset.Dataset{Lookback: 3, Horizon: 2}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		ds.Examples = append(ds.Examples, dataset.TrainingExample{
			BuyDate:            d,
			CurrentPrice:       100 + float64(i),
			RealizedVolatility: 0.2,
			VIXValue:           14,
			LaggedCloses:       []float64{98 + float64(i), 97 + float64(i)},
			LaggedDates:        []time.Time{d.AddDate(0, 0, -2), d.AddDate(0, 0, -3)},
		})
		ds.Labels = append(ds.Labels, dataset.LabelVector{
			Dates:  []time.Time{d.AddDate(0, 0, 1), d.AddDate(0, 0, 2)},
			Closes: []float64{101 + float64(i), 102 + float64(i)},
		})
	}
	return ds
}

// TestDatasetWriter_ImplementsDBWriter は DatasetWriter が DBWriter インターフェースを実装していることを確認します。
func TestDatasetWriter_ImplementsDBWriter(t *testing.T) {
	assert.Implements(t, (*DBWriter)(nil), new(DatasetWriter))
	assert.Implements(t, (*DBWriter)(nil), new(InMemWriter))
}

func TestDatasetWriter_SaveDataset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Batch size 2 splits five examples into three COPY calls.
	writer := NewDatasetWriter(mock, config.DBWriterConfig{BatchSize: 2}, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteRunExamplesSQL)).WithArgs("AAPL_run").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for _, n := range []int64{2, 2, 1} {
		mock.ExpectCopyFrom(pgx.Identifier{"training_examples"}, exampleColumns).WillReturnResult(n)
	}
	mock.ExpectCommit()

	n, err := writer.SaveDataset(context.Background(), "AAPL_run", "AAPL", testDataset(5))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	// ensure all expectations were met
	require.NoError(t, mock.ExpectationsWereMet(), "there were unfulfilled expectations")
}

func TestDatasetWriter_SaveDataset_Rollback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	writer := NewDatasetWriter(mock, config.DBWriterConfig{}, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteRunExamplesSQL)).WithArgs("AAPL_run").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"training_examples"}, exampleColumns).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = writer.SaveDataset(context.Background(), "AAPL_run", "AAPL", testDataset(3))
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDatasetWriter_NilPool(t *testing.T) {
	writer := NewDatasetWriter(nil, config.DBWriterConfig{BatchSize: 10}, zap.NewNop())
	n, err := writer.SaveDataset(context.Background(), "run", "AAPL", testDataset(4))
	require.NoError(t, err)
	assert.Zero(t, n)
	writer.Close()
}

func TestExampleRows(t *testing.T) {
	ds := testDataset(2)
	rows := ExampleRows("run1", "AAPL", ds)
	require.Len(t, rows, 2)
	assert.Equal(t, ExampleRow{
		RunID:              "run1",
		Instrument:         "AAPL",
		BuyDate:            ds.Examples[1].BuyDate,
		CurrentPrice:       101,
		RealizedVolatility: 0.2,
		VIXValue:           14,
		LaggedCloses:       []float64{99, 98},
		LabelCloses:        []float64{102, 103},
	}, rows[1])

	// Rows must not alias the dataset.
	rows[0].LaggedCloses[0] = -1
	assert.Equal(t, 98.0, ds.Examples[0].LaggedCloses[0])
}

func TestInMemWriter(t *testing.T) {
	w := NewInMemWriter()
	n, err := w.SaveDataset(context.Background(), "run1", "AAPL", testDataset(3))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	_, err = w.SaveDataset(context.Background(), "run1", "AAPL", testDataset(1))
	require.NoError(t, err)
	assert.Len(t, w.RunRows("run1"), 1, "saving a run again replaces its rows")

	w.Close()
	assert.True(t, w.IsClosed)
	w.Clear()
	assert.Empty(t, w.RunRows("run1"))
}
