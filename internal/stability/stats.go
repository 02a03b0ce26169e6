// Package stability decides whether a window of (x, y) readings has settled,
// either on its own or around a known reference, and scans a series for
// windows that have.
package stability

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics the stability tests look at.
// Std and Sem are population statistics.
type Summary struct {
	N      int
	Mean   float64
	Median float64
	Mode   float64
	Std    float64
	Sem    float64
	Min    float64
	Max    float64
	Slope  float64
	R      float64
}

// Range returns Max - Min.
func (s Summary) Range() float64 {
	return s.Max - s.Min
}

// Describe summarises a window. x and y must be the same non-zero length.
func Describe(x, y []float64) Summary {
	n := len(y)
	mean, std := stat.PopMeanStdDev(y, nil)
	lo, hi := y[0], y[0]
	for _, v := range y[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	_, slope := stat.LinearRegression(x, y, nil, false)

	return Summary{
		N:      n,
		Mean:   mean,
		Median: Median(y),
		Mode:   Mode(y),
		Std:    std,
		Sem:    std / math.Sqrt(float64(n)),
		Min:    lo,
		Max:    hi,
		Slope:  slope,
		R:      stat.Correlation(x, y, nil),
	}
}

// Median returns the middle value of y, averaging the two middle values when
// len(y) is even.
func Median(y []float64) float64 {
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Mode returns the most frequent exact value in y. Ties go to the value that
// occurs first.
func Mode(y []float64) float64 {
	counts := make(map[float64]int, len(y))
	best, bestCount := y[0], 0
	for _, v := range y {
		counts[v]++
	}
	for _, v := range y {
		if c := counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}
