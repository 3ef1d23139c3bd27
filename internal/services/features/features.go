// Package features derives the training dataset from the processed dataset.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RollingMean returns the trailing mean over window rows. The first window-1
// rows, and any window containing a missing value, are NaN.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
		if window <= 0 || i+1 < window {
			continue
		}
		w := values[i+1-window : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = stat.Mean(w, nil)
	}
	return out
}

// Lag shifts values down by n rows; the first n rows are NaN.
func Lag(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < n || n < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-n]
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
