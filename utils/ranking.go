package utils

import (
	"math"
	"sort"
)

// Percentile returns the share (0-100, rounded) of the distribution that value
// beats: values strictly below it when higherIsBetter, strictly above otherwise.
// An empty distribution yields 50.
func Percentile(value float64, distribution []float64, higherIsBetter bool) int {
	n := len(distribution)
	if n == 0 {
		return 50
	}

	sorted := sortedCopy(distribution)
	var beaten int
	if higherIsBetter {
		beaten = sort.SearchFloat64s(sorted, value)
	} else {
		beaten = n - sort.Search(n, func(i int) bool { return sorted[i] > value })
	}

	return int(math.Round(float64(beaten) / float64(n) * 100))
}

// Rank returns 1 + the number of values strictly better than value.
// Equal values share a rank.
func Rank(value float64, all []float64, higherIsBetter bool) int {
	better := 0
	for _, v := range all {
		if higherIsBetter && v > value {
			better++
		} else if !higherIsBetter && v < value {
			better++
		}
	}
	return better + 1
}

// ValueAtPercentile returns the element at index floor(n*p) of the ascending
// distribution, clamped to the last element. Empty input yields 0.
func ValueAtPercentile(distribution []float64, p float64) float64 {
	n := len(distribution)
	if n == 0 {
		return 0
	}
	sorted := sortedCopy(distribution)
	idx := int(math.Floor(float64(n) * p))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Mean of values, 0 for empty input.
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

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
