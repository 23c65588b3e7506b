package dataset

import (
	"fmt"
	"time"

	"github.com/your-org/price-horizon-learner/internal/indicator"
	"github.com/your-org/price-horizon-learner/internal/series"
)

// BuildWindows slides the lookback/horizon window over volatility-augmented
// records and emits one example per usable buy date, in date order.
//
// Buy dates run from index lookback to len-horizon-1. A buy date is skipped
// when its close, volatility or index value, or any of the horizon closes
// after it, is missing. An empty dataset is a valid result.
func BuildWindows(records []series.AugmentedRecord, p Params) (Dataset, error) {
	if err := p.Validate(); err != nil {
		return Dataset{}, err
	}

	ds := Dataset{Lookback: p.Lookback, Horizon: p.Horizon}
	last := len(records) - p.Horizon
	if last > p.Lookback {
		ds.Examples = make([]TrainingExample, 0, last-p.Lookback)
		ds.Labels = make([]LabelVector, 0, last-p.Lookback)
	}

	for i := p.Lookback; i < last; i++ {
		if !usableState(records[i]) {
			continue
		}
		label, ok := labelAt(records, i, p.Horizon)
		if !ok {
			continue
		}
		ds.Examples = append(ds.Examples, exampleAt(records, i, p.Lookback))
		ds.Labels = append(ds.Labels, label)
	}
	return ds, nil
}

func labelAt(records []series.AugmentedRecord, i, horizon int) (LabelVector, bool) {
	label := LabelVector{
		Dates:  make([]time.Time, horizon),
		Closes: make([]float64, horizon),
	}
	for h := 1; h <= horizon; h++ {
		r := records[i+h]
		if series.IsMissing(r.Close) {
			return LabelVector{}, false
		}
		label.Dates[h-1] = r.Date
		label.Closes[h-1] = r.Close
	}
	return label, true
}

// BuildTrainingExamples validates and aligns an instrument's closes with the
// volatility index, derives realized volatility and builds the windows.
//
// It fails with series.ErrEmptyResult when the two series share no usable
// date, and with series.ErrInsufficientData when p.MinExamples is set and
// fewer examples survive.
func BuildTrainingExamples(prices []series.PricePoint, vix []series.VolatilityIndexPoint, p Params) (Dataset, error) {
	records, err := prepare(prices, vix, p)
	if err != nil {
		return Dataset{}, err
	}

	ds, err := BuildWindows(records, p)
	if err != nil {
		return Dataset{}, err
	}
	if p.MinExamples > 0 && ds.Len() < p.MinExamples {
		return Dataset{}, fmt.Errorf("%w: built %d examples from %d rows, need %d",
			series.ErrInsufficientData, ds.Len(), len(records), p.MinExamples)
	}
	return ds, nil
}

// prepare runs validation, alignment and the volatility transform.
func prepare(prices []series.PricePoint, vix []series.VolatilityIndexPoint, p Params) ([]series.AugmentedRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := series.ValidatePrices(prices); err != nil {
		return nil, fmt.Errorf("price series: %w", err)
	}
	if err := series.ValidateVolatilityIndex(vix); err != nil {
		return nil, fmt.Errorf("volatility index series: %w", err)
	}

	aligned := series.Align(prices, vix)
	if len(aligned) == 0 {
		return nil, fmt.Errorf("%w: %d price rows, %d index rows", series.ErrEmptyResult, len(prices), len(vix))
	}

	return indicator.RealizedVolatility(aligned, p.VolatilityWindow, p.Annualization)
}
