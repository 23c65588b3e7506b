package dataset

import (
	"fmt"

	"github.com/your-org/price-horizon-learner/internal/series"
)

// BuildLatestExample builds the inference record for the most recent aligned
// date. It has no label. The lags skip the immediately prior close exactly
// as BuildWindows does, so a model sees the same layout in training and in
// inference.
func BuildLatestExample(prices []series.PricePoint, vix []series.VolatilityIndexPoint, p Params) (TrainingExample, error) {
	records, err := prepare(prices, vix, p)
	if err != nil {
		return TrainingExample{}, err
	}

	need := p.LatestRowsRequired()
	if len(records) < need {
		return TrainingExample{}, fmt.Errorf("%w: need at least %d volatility-defined rows, got %d",
			series.ErrInsufficientData, need, len(records))
	}

	last := len(records) - 1
	if !usableState(records[last]) {
		return TrainingExample{}, fmt.Errorf("%w: latest row %s has missing values",
			series.ErrInsufficientData, records[last].Date.Format("2006-01-02"))
	}
	return exampleAt(records, last, p.Lookback), nil
}
