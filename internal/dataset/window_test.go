package dataset

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/price-horizon-learner/internal/series"
)

var baseDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return baseDate.AddDate(0, 0, i)
}

func syntheticPrices(n int) []series.PricePoint {
	out := make([]series.PricePoint, n)
	for i := range out {
		out[i] = series.PricePoint{Date: day(i), Close: 100 + 5*math.Sin(float64(i)/3) + float64(i)*0.1}
	}
	return out
}

func syntheticVIX(n int) []series.VolatilityIndexPoint {
	out := make([]series.VolatilityIndexPoint, n)
	for i := range out {
		out[i] = series.VolatilityIndexPoint{Date: day(i), Value: 15 + math.Cos(float64(i)/5)}
	}
	return out
}

func augmented(n int) []series.AugmentedRecord {
	out := make([]series.AugmentedRecord, n)
	for i := range out {
		out[i] = series.AugmentedRecord{
			AlignedRecord: series.AlignedRecord{
				Date:     day(i),
				Close:    float64(100 + i),
				VIXClose: 20,
			},
			RealizedVolatility: 0.2,
		}
	}
	return out
}

func params(lookback, horizon int) Params {
	p := DefaultParams()
	p.Lookback = lookback
	p.Horizon = horizon
	return p
}

func TestBuildWindows_ExampleCount(t *testing.T) {
	for _, lookback := range []int{2, 3, 10, 15} {
		for _, horizon := range []int{1, 5, 7} {
			for _, n := range []int{0, 1, lookback + horizon - 1, lookback + horizon, lookback + horizon + 1, 80} {
				p := params(lookback, horizon)
				ds, err := BuildWindows(augmented(n), p)
				require.NoError(t, err)

				want := max(0, n-lookback-horizon)
				require.Equal(t, want, ds.Len(), "lookback=%d horizon=%d n=%d", lookback, horizon, n)
				require.Len(t, ds.Labels, want)
				for i := range ds.Examples {
					assert.Len(t, ds.Labels[i].Closes, horizon)
					assert.Len(t, ds.Examples[i].LaggedCloses, lookback-1)
				}
			}
		}
	}
}

func TestBuildWindows_Layout(t *testing.T) {
	records := augmented(30)
	ds, err := BuildWindows(records, params(4, 3))
	require.NoError(t, err)
	require.NotZero(t, ds.Len())

	first := ds.Examples[0]
	assert.Equal(t, day(4), first.BuyDate)
	assert.Equal(t, 104.0, first.CurrentPrice)
	assert.Equal(t, 0.2, first.RealizedVolatility)
	assert.Equal(t, 20.0, first.VIXValue)
	// i-1 (103) is excluded; lags are i-2, i-3, i-4 most recent first.
	assert.Equal(t, []float64{102, 101, 100}, first.LaggedCloses)
	assert.Equal(t, []time.Time{day(2), day(1), day(0)}, first.LaggedDates)
	assert.Equal(t, []float64{105, 106, 107}, ds.Labels[0].Closes)
	assert.Equal(t, []time.Time{day(5), day(6), day(7)}, ds.Labels[0].Dates)

	lag, ok := first.Lag(3)
	assert.True(t, ok)
	assert.Equal(t, 101.0, lag)
	_, ok = first.Lag(1)
	assert.False(t, ok)

	if diff := cmp.Diff([]float64{104, 0.2, 20, 100, 101, 102}, first.Vector(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Vector() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"current_stock_price", "realized_volatility", "vix_value", "close_lag_4", "close_lag_3", "close_lag_2"}, FeatureNames(4))
	assert.Len(t, FeatureNames(4), len(first.Vector()))
}

func TestBuildWindows_SkipsMissingValues(t *testing.T) {
	lookback, horizon := 3, 2
	base, err := BuildWindows(augmented(40), params(lookback, horizon))
	require.NoError(t, err)

	t.Run("missing close removes the buy date and the windows predicting it", func(t *testing.T) {
		records := augmented(40)
		records[20].Close = math.NaN()
		ds, err := BuildWindows(records, params(lookback, horizon))
		require.NoError(t, err)
		assert.Equal(t, base.Len()-(horizon+1), ds.Len())
		for _, e := range ds.Examples {
			assert.NotEqual(t, day(20), e.BuyDate)
		}
	})

	t.Run("missing volatility removes only that buy date", func(t *testing.T) {
		records := augmented(40)
		records[20].RealizedVolatility = math.Inf(1)
		ds, err := BuildWindows(records, params(lookback, horizon))
		require.NoError(t, err)
		assert.Equal(t, base.Len()-1, ds.Len())
	})

	t.Run("missing index value removes only that buy date", func(t *testing.T) {
		records := augmented(40)
		records[20].VIXClose = math.NaN()
		ds, err := BuildWindows(records, params(lookback, horizon))
		require.NoError(t, err)
		assert.Equal(t, base.Len()-1, ds.Len())
	})
}

func TestBuildWindows_InvalidParameters(t *testing.T) {
	_, err := BuildWindows(augmented(30), params(1, 5))
	assert.ErrorIs(t, err, series.ErrInvalidParameters)

	_, err = BuildWindows(augmented(30), params(10, 0))
	assert.ErrorIs(t, err, series.ErrInvalidParameters)
}

func TestBuildTrainingExamples_Count(t *testing.T) {
	p := DefaultParams()
	n := 120
	ds, err := BuildTrainingExamples(syntheticPrices(n), syntheticVIX(n), p)
	require.NoError(t, err)

	augmentedRows := n - p.VolatilityWindow - 1
	assert.Equal(t, augmentedRows-p.Lookback-p.Horizon, ds.Len())
	assert.Equal(t, p.Lookback, ds.Lookback)
	assert.Equal(t, p.Horizon, ds.Horizon)
}

func TestBuildTrainingExamples_MissingIndexDateDropsOneExample(t *testing.T) {
	p := DefaultParams()
	n := 120
	full, err := BuildTrainingExamples(syntheticPrices(n), syntheticVIX(n), p)
	require.NoError(t, err)

	for _, missing := range []int{0, 30, 60, 119} {
		vix := syntheticVIX(n)
		vix = append(vix[:missing:missing], vix[missing+1:]...)

		ds, err := BuildTrainingExamples(syntheticPrices(n), vix, p)
		require.NoError(t, err)
		assert.Equal(t, full.Len()-1, ds.Len(), "missing index date %d", missing)
	}
}

func TestBuildTrainingExamples_NoLeakage(t *testing.T) {
	p := DefaultParams()
	n := 200
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 25; trial++ {
		prices := syntheticPrices(n)
		vix := syntheticVIX(n)
		for i := range prices {
			switch rng.Intn(12) {
			case 0:
				prices[i].Close = math.NaN()
			case 1:
				vix[i].Value = math.NaN()
			}
		}

		ds, err := BuildTrainingExamples(prices, vix, p)
		require.NoError(t, err)

		for i, e := range ds.Examples {
			for k, d := range e.LaggedDates {
				require.True(t, d.Before(e.BuyDate), "trial %d example %d lag %d on or after buy date", trial, i, k)
				if k > 0 {
					require.True(t, d.Before(e.LaggedDates[k-1]), "lags must be most recent first")
				}
			}
			label := ds.Labels[i]
			for k, d := range label.Dates {
				require.True(t, d.After(e.BuyDate), "trial %d example %d label %d on or before buy date", trial, i, k)
				if k > 0 {
					require.True(t, d.After(label.Dates[k-1]), "labels must be chronological")
				}
			}
		}
	}
}

func TestBuildTrainingExamples_Deterministic(t *testing.T) {
	p := DefaultParams()
	a, err := BuildTrainingExamples(syntheticPrices(150), syntheticVIX(150), p)
	require.NoError(t, err)
	b, err := BuildTrainingExamples(syntheticPrices(150), syntheticVIX(150), p)
	require.NoError(t, err)

	ab, err := json.Marshal(a)
	require.NoError(t, err)
	bb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ab, bb)
}

func TestBuildTrainingExamples_Errors(t *testing.T) {
	p := DefaultParams()

	t.Run("no overlapping dates", func(t *testing.T) {
		vix := []series.VolatilityIndexPoint{{Date: day(1000), Value: 15}}
		_, err := BuildTrainingExamples(syntheticPrices(50), vix, p)
		assert.ErrorIs(t, err, series.ErrEmptyResult)
	})

	t.Run("too short without minimum is empty", func(t *testing.T) {
		ds, err := BuildTrainingExamples(syntheticPrices(30), syntheticVIX(30), p)
		require.NoError(t, err)
		assert.Zero(t, ds.Len())
	})

	t.Run("too short with minimum", func(t *testing.T) {
		q := p
		q.MinExamples = 1
		_, err := BuildTrainingExamples(syntheticPrices(30), syntheticVIX(30), q)
		assert.ErrorIs(t, err, series.ErrInsufficientData)
	})

	t.Run("duplicate dates", func(t *testing.T) {
		prices := syntheticPrices(50)
		prices[10].Date = prices[9].Date
		_, err := BuildTrainingExamples(prices, syntheticVIX(50), p)
		assert.ErrorIs(t, err, series.ErrMalformedInput)
	})

	t.Run("negative index value", func(t *testing.T) {
		vix := syntheticVIX(50)
		vix[3].Value = -1
		_, err := BuildTrainingExamples(syntheticPrices(50), vix, p)
		assert.ErrorIs(t, err, series.ErrMalformedInput)
	})
}

func TestDataset_Matrix(t *testing.T) {
	ds, err := BuildWindows(augmented(12), params(3, 2))
	require.NoError(t, err)

	x, y := ds.Matrix()
	require.Len(t, x, ds.Len())
	require.Len(t, y, ds.Len())
	assert.Equal(t, ds.Examples[0].Vector(), x[0])
	assert.Equal(t, ds.Labels[0].Closes, y[0])

	y[0][0] = -1
	assert.NotEqual(t, -1.0, ds.Labels[0].Closes[0], "Matrix must copy labels")
}
