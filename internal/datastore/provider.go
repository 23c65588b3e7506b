// Package datastore supplies daily close series to the dataset builder and
// manages the database schema.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/price-horizon-learner/internal/series"
)

// DefaultVolatilitySymbol is the symbol of the volatility index series.
const DefaultVolatilitySymbol = "^VIX"

// DefaultPeriod is the history pulled for training when none is given.
const DefaultPeriod = "6mo"

// ErrUnknownSymbol is returned when a provider has no series for a symbol.
var ErrUnknownSymbol = errors.New("datastore: unknown symbol")

// ErrInvalidPeriod is returned by ParsePeriod for unsupported periods.
var ErrInvalidPeriod = errors.New("datastore: invalid period")

// SeriesProvider returns daily closes of a symbol between from and to, both
// inclusive, in ascending date order. A missing close is NaN.
type SeriesProvider interface {
	FetchCloses(ctx context.Context, symbol string, from, to time.Time) ([]series.PricePoint, error)
}

// ValidPeriods lists the accepted history periods.
var ValidPeriods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y"}

// ParsePeriod returns the start of a period ending at now.
func ParsePeriod(period string, now time.Time) (time.Time, error) {
	end := series.Day(now)
	switch period {
	case "1mo":
		return end.AddDate(0, -1, 0), nil
	case "3mo":
		return end.AddDate(0, -3, 0), nil
	case "6mo":
		return end.AddDate(0, -6, 0), nil
	case "1y":
		return end.AddDate(-1, 0, 0), nil
	case "2y":
		return end.AddDate(-2, 0, 0), nil
	case "5y":
		return end.AddDate(-5, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q, must be one of %v", ErrInvalidPeriod, period, ValidPeriods)
}

// IsValidPeriod reports whether ParsePeriod accepts period.
func IsValidPeriod(period string) bool {
	for _, p := range ValidPeriods {
		if p == period {
			return true
		}
	}
	return false
}

func inRange(d, from, to time.Time) bool {
	d = series.Day(d)
	return !d.Before(series.Day(from)) && !d.After(series.Day(to))
}
