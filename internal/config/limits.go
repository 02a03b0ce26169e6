package config

import (
	"fmt"

	"turbidity-monitor/internal/errs"
)

// Limits are the parameters one state evaluation runs with.
type Limits struct {
	N              int     `json:"n"`
	StdMax         float64 `json:"std_max"`
	SemMax         float64 `json:"sem_max"`
	UpperLimit     float64 `json:"upper_limit"`
	LowerLimit     float64 `json:"lower_limit"`
	RangeLimit     float64 `json:"range_limit"`
	RelativeLimits bool    `json:"relative_limits"`

	RMin       *float64 `json:"r_min,omitempty"`
	SlopeUpper *float64 `json:"slope_upper_limit,omitempty"`
	SlopeLower *float64 `json:"slope_lower_limit,omitempty"`
}

// DefaultLimits returns the limits of an empty configuration.
func DefaultLimits() Limits {
	return Empty().Limits()
}

// Validate checks that the limits can drive an evaluation.
func (l Limits) Validate() error {
	if l.N < 2 {
		return fmt.Errorf("%w: window size must be at least 2, got %d", errs.ErrValidation, l.N)
	}
	if l.StdMax < 0 || l.SemMax < 0 || l.UpperLimit < 0 || l.LowerLimit < 0 || l.RangeLimit < 0 {
		return fmt.Errorf("%w: limits must be non-negative", errs.ErrValidation)
	}
	return nil
}

// Overrides replace individual defaults for a single evaluation.
type Overrides struct {
	N          *int
	StdMax     *float64
	SemMax     *float64
	UpperLimit *float64
	LowerLimit *float64
	RangeLimit *float64
}

// Resolve applies overrides on top of defaults.
func Resolve(o Overrides, defaults Limits) Limits {
	l := defaults
	if o.N != nil {
		l.N = *o.N
	}
	if o.StdMax != nil {
		l.StdMax = *o.StdMax
	}
	if o.SemMax != nil {
		l.SemMax = *o.SemMax
	}
	if o.UpperLimit != nil {
		l.UpperLimit = *o.UpperLimit
	}
	if o.LowerLimit != nil {
		l.LowerLimit = *o.LowerLimit
	}
	if o.RangeLimit != nil {
		l.RangeLimit = *o.RangeLimit
	}
	return l
}

// Absolute converts upper, lower and range limits in (0, 1) into fractions of
// dataRange when relative limits are enabled. Other values pass through.
func (l Limits) Absolute(dataRange float64) Limits {
	if !l.RelativeLimits {
		return l
	}
	l.UpperLimit = scaleRelative(l.UpperLimit, dataRange)
	l.LowerLimit = scaleRelative(l.LowerLimit, dataRange)
	l.RangeLimit = scaleRelative(l.RangeLimit, dataRange)
	return l
}

func scaleRelative(v, dataRange float64) float64 {
	if v > 0 && v < 1 {
		return v * dataRange
	}
	return v
}
