package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Shared numeric helpers used across the analysis algorithms, built on gonum
// where it has the robust implementation.

// Mean calculates the arithmetic mean of a slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}

// Energy calculates the sum of squares of a slice
func Energy(data []float64) float64 {
	sum := 0.0
	for _, val := range data {
		sum += val * val
	}
	return sum
}

// Max returns the maximum value of a non-empty slice, 0 otherwise
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Max(data)
}

// Percentile calculates the p-th percentile (p between 0 and 1).
// The input is copied and sorted; the caller's slice is untouched.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 || p < 0 || p > 1 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// MedianInPlace sorts scratch and returns its median. The slice is reordered;
// callers that reuse a window buffer across iterations rely on exactly that.
func MedianInPlace(scratch []float64) float64 {
	if len(scratch) == 0 {
		return 0.0
	}

	sort.Float64s(scratch)

	mid := len(scratch) / 2
	if len(scratch)%2 == 0 {
		return (scratch[mid-1] + scratch[mid]) / 2.0
	}
	return scratch[mid]
}

// Clamp limits v to the range [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
