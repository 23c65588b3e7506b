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

// Regime labels the persistence of a close series.
type Regime string

const (
	RegimeTrending      Regime = "trending"
	RegimeMeanReverting Regime = "mean_reverting"
	RegimeRandomWalk    Regime = "random_walk"

	// DefaultHurstMinLag and DefaultHurstMaxLag bound the lags regressed by HurstExponent.
	DefaultHurstMinLag = 2
	DefaultHurstMaxLag = 20
)

// HurstExponent estimates the Hurst exponent of closes from the scaling of
// lagged log-price differences: the slope of log std(x[t+lag]-x[t]) against
// log lag. Missing and non-positive closes are dropped first.
func HurstExponent(closes []float64, minLag, maxLag int) (float64, error) {
	if minLag < 1 || maxLag <= minLag {
		return 0, fmt.Errorf("%w: hurst lags must satisfy 1 <= min < max, got %d and %d", series.ErrInvalidParameters, minLag, maxLag)
	}

	logs := make([]float64, 0, len(closes))
	for _, c := range closes {
		if series.IsMissing(c) || c <= 0 {
			continue
		}
		logs = append(logs, math.Log(c))
	}
	if len(logs) <= 2*maxLag {
		return 0, fmt.Errorf("%w: hurst exponent needs more than %d closes, got %d", series.ErrInsufficientData, 2*maxLag, len(logs))
	}

	xs := make([]float64, 0, maxLag-minLag+1)
	ys := make([]float64, 0, maxLag-minLag+1)
	diffs := make([]float64, 0, len(logs))
	for lag := minLag; lag <= maxLag; lag++ {
		diffs = diffs[:0]
		for i := lag; i < len(logs); i++ {
			diffs = append(diffs, logs[i]-logs[i-lag])
		}
		sd := stat.PopStdDev(diffs, nil)
		if sd <= 0 {
			continue
		}
		xs = append(xs, math.Log(float64(lag)))
		ys = append(ys, math.Log(sd))
	}
	if len(xs) < 2 {
		// 価格が一定の場合
		return 0, fmt.Errorf("%w: closes do not vary", series.ErrInsufficientData)
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope, nil
}

// ClassifyRegime maps a Hurst exponent to a Regime. Values within band of
// 0.5 count as a random walk.
func ClassifyRegime(h, band float64) Regime {
	switch {
	case h > 0.5+band:
		return RegimeTrending
	case h < 0.5-band:
		return RegimeMeanReverting
	default:
		return RegimeRandomWalk
	}
}
