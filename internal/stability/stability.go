package stability

import "turbidity-monitor/internal/reference"

// DefaultSlopeLimit leaves the regression slope effectively unconstrained.
const DefaultSlopeLimit = 999.0

// KnownRangeSlack widens the allowed spread of a window tested against a known
// reference: range must not exceed (upper + lower) * KnownRangeSlack.
const KnownRangeSlack = 1.5

// Options are the variability limits shared by both stability tests.
type Options struct {
	StdMax float64
	SemMax float64

	// RMin, when set, requires the regression correlation to exceed it.
	RMin *float64

	// SlopeUpper and SlopeLower bound the regression slope to
	// [-SlopeLower, SlopeUpper]. Nil means DefaultSlopeLimit.
	SlopeUpper *float64
	SlopeLower *float64
}

func (o Options) slopeBounds() (lower, upper float64) {
	lower, upper = DefaultSlopeLimit, DefaultSlopeLimit
	if o.SlopeLower != nil {
		lower = *o.SlopeLower
	}
	if o.SlopeUpper != nil {
		upper = *o.SlopeUpper
	}
	return -lower, upper
}

func (o Options) regressionOK(s Summary) bool {
	if o.RMin != nil && !(*o.RMin < s.R) {
		return false
	}
	lo, hi := o.slopeBounds()
	return lo <= s.Slope && s.Slope <= hi
}

// Unknown reports whether a window has settled without reference to any known
// value: mean and median within rangeLimit of each other, spread within
// rangeLimit, and std and sem within their limits.
func Unknown(x, y []float64, rangeLimit float64, o Options) bool {
	s := Describe(x, y)
	diff := s.Mean - s.Median
	if diff < 0 {
		diff = -diff
	}
	return diff <= rangeLimit &&
		s.Std <= o.StdMax &&
		s.Sem <= o.SemMax &&
		s.Range() <= rangeLimit &&
		o.regressionOK(s)
}

// Known reports whether a window has settled inside the reference's good
// interval: both mean and median must lie in it.
func Known(x, y []float64, ref reference.Reference, o Options) bool {
	s := Describe(x, y)
	return ref.AllGood(s.Mean, s.Median) &&
		s.Std <= o.StdMax &&
		s.Sem <= o.SemMax &&
		s.Range() <= (ref.RelativeUpper()+ref.RelativeLower())*KnownRangeSlack &&
		o.regressionOK(s)
}
