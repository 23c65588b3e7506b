package learning

import (
	"gonum.org/v1/gonum/stat"
)

// scalerは列ごとの平均と標準偏差で標準化します。
type scaler struct {
	mean []float64
	std  []float64
}

// fitScaler computes column statistics over rows. A constant column keeps a
// unit scale so it maps to zero instead of NaN.
func fitScaler(rows [][]float64) scaler {
	if len(rows) == 0 {
		return scaler{}
	}
	cols := len(rows[0])
	s := scaler{mean: make([]float64, cols), std: make([]float64, cols)}
	col := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || std != std {
			std = 1
		}
		s.mean[j], s.std[j] = mean, std
	}
	return s
}

func (s scaler) transform(v []float64) []float64 {
	out := make([]float64, len(v))
	for j, x := range v {
		out[j] = (x - s.mean[j]) / s.std[j]
	}
	return out
}

func (s scaler) inverse(v []float64) []float64 {
	out := make([]float64, len(v))
	for j, z := range v {
		out[j] = z*s.std[j] + s.mean[j]
	}
	return out
}
