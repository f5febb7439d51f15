// Package aggregate holds the pure aggregation functions. Nothing here performs I/O
// or mutates its inputs; callers supply a snapshot of raw records.
package aggregate

import (
	"sort"
	"strconv"

	"survey-analytics-service/internal/domain"
)

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, domain.ErrEmptyInputSet
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// LowerMedian returns the lower median: for even-length input the smaller of the
// two middle elements, so [10 20 30 40] yields 20 and [50 70 90] yields 70.
func LowerMedian(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, domain.ErrEmptyInputSet
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[(len(sorted)-1)/2], nil
}

// meanOrZero treats an empty input as 0.
func meanOrZero(values []float64) float64 {
	m, err := Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// formatNumber renders v in its shortest decimal form ("4", "4.5").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
