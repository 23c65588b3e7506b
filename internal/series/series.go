// Package series holds the daily price types shared by the dataset pipeline
// and the inner join that lines an instrument up with its volatility index.
package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyResult is returned when two series have no date in common.
	ErrEmptyResult = errors.New("series: no overlapping dates")
	// ErrInsufficientData is returned when fewer rows are available than a window needs.
	ErrInsufficientData = errors.New("series: insufficient data")
	// ErrMalformedInput is returned for unordered, duplicated, negative or infinite input.
	ErrMalformedInput = errors.New("series: malformed input")
	// ErrInvalidParameters is returned for window parameters that cannot produce a window.
	ErrInvalidParameters = errors.New("series: invalid parameters")
)

// PricePoint is one daily close of an instrument. A NaN close means the
// provider had no value for that date.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// VolatilityIndexPoint is one daily close of the volatility index proxy.
type VolatilityIndexPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// AlignedRecord is a date present in both the instrument and the index series.
type AlignedRecord struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	VIXClose float64   `json:"vix_close"`
}

// AugmentedRecord is an aligned record with a defined realized volatility.
type AugmentedRecord struct {
	AlignedRecord
	RealizedVolatility float64 `json:"realized_volatility"`
}

// Day truncates t to its calendar date in UTC so that provider timestamps
// carrying different zones or session times still join on the same day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsMissing reports whether v cannot be used as a price.
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// ValidatePrices checks ordering and value constraints of a price series.
func ValidatePrices(points []PricePoint) error {
	for i, p := range points {
		if math.IsInf(p.Close, 0) || p.Close < 0 {
			return fmt.Errorf("%w: close %v at %s", ErrMalformedInput, p.Close, p.Date.Format(time.DateOnly))
		}
		if i == 0 {
			continue
		}
		if err := checkOrder(points[i-1].Date, p.Date); err != nil {
			return err
		}
	}
	return nil
}

// ValidateVolatilityIndex checks ordering and value constraints of an index series.
func ValidateVolatilityIndex(points []VolatilityIndexPoint) error {
	for i, p := range points {
		if math.IsInf(p.Value, 0) || p.Value < 0 {
			return fmt.Errorf("%w: index value %v at %s", ErrMalformedInput, p.Value, p.Date.Format(time.DateOnly))
		}
		if i == 0 {
			continue
		}
		if err := checkOrder(points[i-1].Date, p.Date); err != nil {
			return err
		}
	}
	return nil
}

func checkOrder(prev, cur time.Time) error {
	p, c := Day(prev), Day(cur)
	switch {
	case c.Equal(p):
		return fmt.Errorf("%w: duplicate date %s", ErrMalformedInput, c.Format(time.DateOnly))
	case c.Before(p):
		return fmt.Errorf("%w: date %s after %s", ErrMalformedInput, c.Format(time.DateOnly), p.Format(time.DateOnly))
	}
	return nil
}

// AsVolatilityIndex reinterprets closes fetched for the index symbol.
func AsVolatilityIndex(points []PricePoint) []VolatilityIndexPoint {
	out := make([]VolatilityIndexPoint, len(points))
	for i, p := range points {
		out[i] = VolatilityIndexPoint{Date: p.Date, Value: p.Close}
	}
	return out
}

// Align inner-joins both series on calendar date. Dates absent from either
// side, or carrying a missing value on either side, are dropped. Both inputs
// must already be ordered; the output keeps that order.
func Align(prices []PricePoint, vix []VolatilityIndexPoint) []AlignedRecord {
	out := make([]AlignedRecord, 0, min(len(prices), len(vix)))
	i, j := 0, 0
	for i < len(prices) && j < len(vix) {
		pd, vd := Day(prices[i].Date), Day(vix[j].Date)
		switch {
		case pd.Before(vd):
			i++
		case vd.Before(pd):
			j++
		default:
			if !IsMissing(prices[i].Close) && !IsMissing(vix[j].Value) {
				out = append(out, AlignedRecord{
					Date:     pd,
					Close:    prices[i].Close,
					VIXClose: vix[j].Value,
				})
			}
			i++
			j++
		}
	}
	return out
}
