// Copyright (c) 2024 OBI-Scalp-Bot
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package indicator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/your-org/price-horizon-learner/internal/series"
)

const (
	// DefaultVolatilityWindow is the number of trailing log returns per estimate.
	DefaultVolatilityWindow = 20
	// DefaultAnnualization is the number of trading days in a year.
	DefaultAnnualization = 252.0
)

// RealizedVolatilityCalculator computes annualized realized volatility from
// a stream of daily closes.
//
// A close without a usable predecessor (the first close, a zero or missing
// close) produces an undefined log return. An undefined return keeps the
// estimate undefined for that close and for the following window closes, so
// a gap-free stream yields its first value on close number window+2.
type RealizedVolatilityCalculator struct {
	window    int
	scale     float64
	returns   *returnWindow
	prevClose float64
	hasPrev   bool
	sinceGap  int // defined returns observed since the last undefined one
}

// NewRealizedVolatilityCalculator creates a calculator over window returns,
// scaled by sqrt(annualization).
func NewRealizedVolatilityCalculator(window int, annualization float64) (*RealizedVolatilityCalculator, error) {
	if window < 2 {
		return nil, fmt.Errorf("%w: volatility window must be at least 2, got %d", series.ErrInvalidParameters, window)
	}
	if annualization <= 0 || math.IsNaN(annualization) || math.IsInf(annualization, 0) {
		return nil, fmt.Errorf("%w: annualization factor must be positive, got %v", series.ErrInvalidParameters, annualization)
	}
	return &RealizedVolatilityCalculator{
		window:  window,
		scale:   math.Sqrt(annualization),
		returns: newReturnWindow(window),
	}, nil
}

// Update feeds the next close and returns the volatility ending at it.
// ok is false while the estimate is undefined.
func (c *RealizedVolatilityCalculator) Update(close float64) (vol float64, ok bool) {
	if !c.hasPrev {
		c.hasPrev = true
		c.prevClose = close
		c.markGap()
		return 0, false
	}

	ret := math.Log(close / c.prevClose)
	c.prevClose = close
	if series.IsMissing(ret) {
		c.markGap()
		return 0, false
	}

	c.returns.add(ret)
	c.sinceGap++
	if c.sinceGap <= c.window || !c.returns.full() {
		return 0, false
	}

	// Sample standard deviation, matching a rolling std with ddof=1.
	return stat.StdDev(c.returns.chronological(), nil) * c.scale, true
}

// Reset clears all state so the calculator can be reused for another series.
func (c *RealizedVolatilityCalculator) Reset() {
	c.hasPrev = false
	c.prevClose = 0
	c.markGap()
}

func (c *RealizedVolatilityCalculator) markGap() {
	c.sinceGap = 0
	c.returns.reset()
}

// RealizedVolatility augments aligned records with their realized volatility.
// Records whose volatility is undefined are dropped rather than zero-filled.
func RealizedVolatility(records []series.AlignedRecord, window int, annualization float64) ([]series.AugmentedRecord, error) {
	calc, err := NewRealizedVolatilityCalculator(window, annualization)
	if err != nil {
		return nil, err
	}

	out := make([]series.AugmentedRecord, 0, max(0, len(records)-window-1))
	for _, r := range records {
		vol, ok := calc.Update(r.Close)
		if !ok {
			continue
		}
		out = append(out, series.AugmentedRecord{AlignedRecord: r, RealizedVolatility: vol})
	}
	return out, nil
}
