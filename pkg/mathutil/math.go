// Package mathutil provides small numeric helper functions.
package mathutil

import "sort"

// Mean calculates the arithmetic mean of values. It returns 0 for an
// empty slice rather than NaN.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// Median calculates the median of values without mutating the input.
// For an even number of values it returns the mean of the two middle
// elements. It returns 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

// Round2 rounds a value to two decimal places.
func Round2(v float64) float64 {
	const scale = 100

	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}

	return float64(int64(v*scale-0.5)) / scale
}
