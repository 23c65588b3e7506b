package learning

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/price-horizon-learner/internal/dataset"
	"github.com/your-org/price-horizon-learner/internal/series"
)

var fixedNow = time.Date(2024, time.June, 28, 15, 30, 0, 0, time.UTC)

// trendDataset builds examples whose labels are the current price plus one.
func trendDataset(n int) dataset.Dataset {
	ds := dataset.Dataset{Lookback: 3, Horizon: 2}
	for i := 0; i < n; i++ {
		c := 100 + float64(i)*0.5 + 3*math.Sin(float64(i)/4)
		ds.Examples = append(ds.Examples, dataset.TrainingExample{
			BuyDate:            fixedNow.AddDate(0, 0, i),
			CurrentPrice:       c,
			RealizedVolatility: 0.2 + 0.01*math.Cos(float64(i)),
			VIXValue:           15 + math.Sin(float64(i)/7),
			LaggedCloses:       []float64{c - 0.4, c - 0.9},
		})
		ds.Labels = append(ds.Labels, dataset.LabelVector{Closes: []float64{c + 1, c + 1}})
	}
	return ds
}

func TestNewRunID(t *testing.T) {
	id := NewRunID("aapl", fixedNow.In(time.FixedZone("JST", 9*3600)))
	assert.Regexp(t, regexp.MustCompile(`^AAPL_20240628T153000_[0-9a-f]{6}$`), id)
	assert.NotEqual(t, id, NewRunID("aapl", fixedNow), "suffix should differ between runs")
}

func TestPersistenceTrainer(t *testing.T) {
	ds := dataset.Dataset{
		Lookback: 2,
		Horizon:  2,
		Examples: []dataset.TrainingExample{
			{CurrentPrice: 10, LaggedCloses: []float64{9}},
			{CurrentPrice: 20, LaggedCloses: []float64{19}},
		},
		Labels: []dataset.LabelVector{
			{Closes: []float64{11, 9}},
			{Closes: []float64{20, 22}},
		},
	}

	trainer := NewPersistenceTrainer()
	trainer.now = func() time.Time { return fixedNow }
	res, err := trainer.Train(context.Background(), "msft", ds, Hyperparameters{})
	require.NoError(t, err)

	// (1 + 1 + 0 + 4) / 4
	assert.InDelta(t, 1.5, res.Loss, 1e-12)
	assert.Equal(t, 2, res.Examples)
	assert.Equal(t, fixedNow, res.TrainedAt)
	assert.Equal(t, "persistence", res.Model.Kind())
	assert.Contains(t, res.RunID, "MSFT_20240628T153000_")

	pred, err := res.Model.Predict([]float64{42, 0.1, 15, 41})
	require.NoError(t, err)
	assert.Equal(t, []float64{42, 42}, pred)

	_, err = res.Model.Predict(nil)
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestLinearTrainer_LossDecreases(t *testing.T) {
	ds := trendDataset(60)
	trainer := NewLinearTrainer(0.05)

	few, err := trainer.Train(context.Background(), "AAPL", ds, Hyperparameters{Epochs: 1})
	require.NoError(t, err)
	many, err := trainer.Train(context.Background(), "AAPL", ds, Hyperparameters{Epochs: 2000})
	require.NoError(t, err)

	assert.False(t, math.IsNaN(many.Loss))
	assert.Less(t, many.Loss, few.Loss/10, "2000 epochs should fit far better than one")
	assert.Equal(t, "linear", many.Model.Kind())

	x, _ := ds.Matrix()
	pred, err := many.Model.Predict(x[10])
	require.NoError(t, err)
	require.Len(t, pred, 2)
	assert.InDelta(t, ds.Labels[10].Closes[0], pred[0], 2.0)

	_, err = many.Model.Predict(x[10][:3])
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestLinearTrainer_Errors(t *testing.T) {
	trainer := NewLinearTrainer(0)

	_, err := trainer.Train(context.Background(), "AAPL", dataset.Dataset{}, Hyperparameters{Epochs: 5})
	assert.ErrorIs(t, err, series.ErrInsufficientData)

	_, err = trainer.Train(context.Background(), "AAPL", trendDataset(5), Hyperparameters{Epochs: 0})
	assert.ErrorIs(t, err, series.ErrInvalidParameters)

	broken := trendDataset(5)
	broken.Labels = broken.Labels[:3]
	_, err = trainer.Train(context.Background(), "AAPL", broken, Hyperparameters{Epochs: 5})
	assert.ErrorIs(t, err, series.ErrMalformedInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = trainer.Train(ctx, "AAPL", trendDataset(5), Hyperparameters{Epochs: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScaler(t *testing.T) {
	rows := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	s := fitScaler(rows)

	z := s.transform([]float64{3, 5})
	assert.InDelta(t, 0, z[0], 1e-12)
	assert.InDelta(t, 0, z[1], 1e-12, "constant column maps to zero")
	assert.InDeltaSlice(t, []float64{5, 5}, s.inverse(s.transform([]float64{5, 5})), 1e-12)
}

func TestModelRegistry(t *testing.T) {
	r := NewModelRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)

	m := &PersistenceModel{horizon: 1}
	r.Put("run1", m)
	got, ok := r.Get("run1")
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, 1, r.Len())
}
