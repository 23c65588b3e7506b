// Package dataset turns aligned daily closes into supervised-learning windows:
// lagged closes and current market state as features, the next closes as labels.
package dataset

import (
	"fmt"
	"math"

	"github.com/your-org/price-horizon-learner/internal/indicator"
	"github.com/your-org/price-horizon-learner/internal/series"
)

const (
	// DefaultLookback is the number of past trading days a window spans.
	DefaultLookback = 10
	// DefaultHorizon is the number of future closes predicted per window.
	DefaultHorizon = 5

	// tradingDaysPerWeek and holidayMarginDays size calendar pulls for the
	// latest window.
	tradingDaysPerWeek = 5
	holidayMarginDays  = 10
)

// Params configures window construction.
type Params struct {
	Lookback         int     `yaml:"lookback" json:"lookback"`
	Horizon          int     `yaml:"horizon" json:"horizon"`
	VolatilityWindow int     `yaml:"volatility_window" json:"volatility_window"`
	Annualization    float64 `yaml:"annualization" json:"annualization"`
	// MinExamples makes BuildTrainingExamples fail with ErrInsufficientData
	// when fewer examples survive. Zero accepts an empty dataset.
	MinExamples int `yaml:"min_examples" json:"min_examples"`
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Lookback:         DefaultLookback,
		Horizon:          DefaultHorizon,
		VolatilityWindow: indicator.DefaultVolatilityWindow,
		Annualization:    indicator.DefaultAnnualization,
	}
}

// Validate rejects parameters that cannot produce a window.
func (p Params) Validate() error {
	switch {
	case p.Lookback < 2:
		return fmt.Errorf("%w: lookback must be at least 2, got %d", series.ErrInvalidParameters, p.Lookback)
	case p.Horizon < 1:
		return fmt.Errorf("%w: horizon must be at least 1, got %d", series.ErrInvalidParameters, p.Horizon)
	case p.VolatilityWindow < 2:
		return fmt.Errorf("%w: volatility window must be at least 2, got %d", series.ErrInvalidParameters, p.VolatilityWindow)
	case p.Annualization <= 0 || math.IsInf(p.Annualization, 0) || math.IsNaN(p.Annualization):
		return fmt.Errorf("%w: annualization must be positive, got %v", series.ErrInvalidParameters, p.Annualization)
	case p.MinExamples < 0:
		return fmt.Errorf("%w: min examples must not be negative, got %d", series.ErrInvalidParameters, p.MinExamples)
	}
	return nil
}

// LatestRowsRequired is the number of volatility-defined aligned rows
// BuildLatestExample needs.
func (p Params) LatestRowsRequired() int {
	return p.Lookback + 1
}

// LatestHistoryDays is the number of calendar days to request from a price
// provider so that BuildLatestExample has enough rows after the volatility
// warm-up, weekends and a margin for exchange holidays.
func (p Params) LatestHistoryDays() int {
	tradingDays := p.LatestRowsRequired() + p.VolatilityWindow + 1
	weeks := (tradingDays + tradingDaysPerWeek - 1) / tradingDaysPerWeek
	return weeks*7 + holidayMarginDays
}
