package common

import "sort"

// Resampling helpers for mapping frame-aligned signals onto arbitrary
// monotonic time grids. Both clamp at the edges: queries before the first
// known time return the first value, queries after the last return the last.

// LinearAt linearly interpolates values (sampled at times) at query time t.
// times must be sorted ascending and the two slices equal length.
func LinearAt(times, values []float64, t float64) float64 {
	if len(times) == 0 {
		return 0.0
	}
	if t <= times[0] {
		return values[0]
	}
	if t >= times[len(times)-1] {
		return values[len(values)-1]
	}

	// First index with times[i] > t; the surrounding pair brackets t.
	hi := sort.SearchFloat64s(times, t)
	if hi < len(times) && times[hi] == t {
		return values[hi]
	}
	lo := hi - 1

	span := times[hi] - times[lo]
	if span <= 0 {
		return values[lo]
	}

	frac := (t - times[lo]) / span
	return values[lo] + frac*(values[hi]-values[lo])
}

// NearestIndex returns the index of the sample in times closest to t,
// clamped to [0, len(times)-1]. times must be sorted ascending.
func NearestIndex(times []float64, t float64) int {
	if len(times) == 0 {
		return 0
	}
	if t <= times[0] {
		return 0
	}
	if t >= times[len(times)-1] {
		return len(times) - 1
	}

	hi := sort.SearchFloat64s(times, t)
	lo := hi - 1
	if t-times[lo] <= times[hi]-t {
		return lo
	}
	return hi
}
