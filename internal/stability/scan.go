package stability

import (
	"fmt"

	"turbidity-monitor/internal/reference"
)

// Plateau is the x extent of a window found stable.
type Plateau struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (p Plateau) String() string {
	return fmt.Sprintf("(%g, %g)", p.Start, p.End)
}

// Predicate tests one window.
type Predicate func(x, y []float64) bool

// Comparator tests two adjacent windows of y jointly.
type Comparator func(first, second []float64) bool

// ScanOneWindow slides a window of size w over the series and returns a
// plateau for every position where pred holds, in order. Overlapping windows
// are all reported.
func ScanOneWindow(x, y []float64, w int, pred Predicate) []Plateau {
	if w < 1 || len(x) != len(y) {
		return nil
	}
	var out []Plateau
	for i := 0; i+w <= len(y); i++ {
		if pred(x[i:i+w], y[i:i+w]) {
			out = append(out, Plateau{Start: x[i], End: x[i+w-1]})
		}
	}
	return out
}

// ScanTwoWindows slides two adjacent windows of size w over the series and
// returns the combined extent wherever cmp accepts the pair.
func ScanTwoWindows(x, y []float64, w int, cmp Comparator) []Plateau {
	if w < 1 || len(x) != len(y) {
		return nil
	}
	var out []Plateau
	for i := 0; i+2*w <= len(y); i++ {
		if cmp(y[i:i+w], y[i+w:i+2*w]) {
			out = append(out, Plateau{Start: x[i], End: x[i+2*w-1]})
		}
	}
	return out
}

// ScanUnknown finds every window that is stable on its own.
func ScanUnknown(x, y []float64, w int, rangeLimit float64, o Options) []Plateau {
	return ScanOneWindow(x, y, w, func(wx, wy []float64) bool {
		return Unknown(wx, wy, rangeLimit, o)
	})
}

// ScanKnown finds every window that has settled at ref.
func ScanKnown(x, y []float64, w int, ref reference.Reference, o Options) []Plateau {
	return ScanOneWindow(x, y, w, func(wx, wy []float64) bool {
		return Known(wx, wy, ref, o)
	})
}
