package dataset

import (
	"fmt"
	"time"

	"github.com/your-org/price-horizon-learner/internal/series"
)

const (
	FeatureCurrentPrice       = "current_stock_price"
	FeatureRealizedVolatility = "realized_volatility"
	FeatureVIXValue           = "vix_value"
)

// TrainingExample is the feature record for one buy date.
type TrainingExample struct {
	BuyDate            time.Time `json:"buy_date"`
	CurrentPrice       float64   `json:"current_stock_price"`
	RealizedVolatility float64   `json:"realized_volatility"`
	VIXValue           float64   `json:"vix_value"`
	// LaggedCloses holds lookback-1 closes, most recent first, starting two
	// rows before the buy date. LaggedCloses[k] is the close k+2 rows back.
	LaggedCloses []float64   `json:"lagged_closes"`
	LaggedDates  []time.Time `json:"lagged_dates"`
}

// LabelVector is the chronologically ordered closes following a buy date.
type LabelVector struct {
	Dates  []time.Time `json:"dates"`
	Closes []float64   `json:"closes"`
}

// Lag returns the close k rows before the buy date. Valid k range from 2 to lookback.
func (e TrainingExample) Lag(k int) (float64, bool) {
	idx := k - 2
	if idx < 0 || idx >= len(e.LaggedCloses) {
		return 0, false
	}
	return e.LaggedCloses[idx], true
}

// Vector flattens the example in FeatureNames order.
func (e TrainingExample) Vector() []float64 {
	v := make([]float64, 0, 3+len(e.LaggedCloses))
	v = append(v, e.CurrentPrice, e.RealizedVolatility, e.VIXValue)
	for k := len(e.LaggedCloses) - 1; k >= 0; k-- {
		v = append(v, e.LaggedCloses[k])
	}
	return v
}

// FeatureNames lists the model input columns for a lookback: market state
// followed by the lagged closes from oldest to newest.
func FeatureNames(lookback int) []string {
	names := []string{FeatureCurrentPrice, FeatureRealizedVolatility, FeatureVIXValue}
	for k := lookback; k >= 2; k-- {
		names = append(names, fmt.Sprintf("close_lag_%d", k))
	}
	return names
}

// Dataset is a set of examples with their labels, index aligned.
type Dataset struct {
	Lookback int               `json:"lookback"`
	Horizon  int               `json:"horizon"`
	Examples []TrainingExample `json:"examples"`
	Labels   []LabelVector     `json:"labels"`
}

// Len returns the number of examples.
func (d Dataset) Len() int {
	return len(d.Examples)
}

// Matrix returns the feature rows and label rows as plain slices.
func (d Dataset) Matrix() (x [][]float64, y [][]float64) {
	x = make([][]float64, len(d.Examples))
	y = make([][]float64, len(d.Labels))
	for i, e := range d.Examples {
		x[i] = e.Vector()
	}
	for i, l := range d.Labels {
		y[i] = append([]float64(nil), l.Closes...)
	}
	return x, y
}

// exampleAt builds the feature record for row i. The row immediately before
// i is skipped: lags start at i-2 and end at i-lookback.
func exampleAt(records []series.AugmentedRecord, i, lookback int) TrainingExample {
	cur := records[i]
	lags := make([]float64, 0, lookback-1)
	dates := make([]time.Time, 0, lookback-1)
	for k := 2; k <= lookback; k++ {
		lags = append(lags, records[i-k].Close)
		dates = append(dates, records[i-k].Date)
	}
	return TrainingExample{
		BuyDate:            cur.Date,
		CurrentPrice:       cur.Close,
		RealizedVolatility: cur.RealizedVolatility,
		VIXValue:           cur.VIXClose,
		LaggedCloses:       lags,
		LaggedDates:        dates,
	}
}

func usableState(r series.AugmentedRecord) bool {
	return !series.IsMissing(r.Close) && !series.IsMissing(r.RealizedVolatility) && !series.IsMissing(r.VIXClose)
}
