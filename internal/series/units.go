package series

import (
	"fmt"
	"strings"
	"time"

	"turbidity-monitor/internal/errs"
)

// Units selects the time unit of relative offsets and projections.
type Units string

const (
	Seconds Units = "seconds"
	Minutes Units = "minutes"
	Hours   Units = "hours"
)

// ParseUnits accepts the unit names and their common abbreviations.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return Seconds, nil
	case "m", "min", "minute", "minutes":
		return Minutes, nil
	case "h", "hr", "hour", "hours":
		return Hours, nil
	}
	return "", fmt.Errorf("%w: unknown time units %q", errs.ErrValidation, s)
}

// Duration returns the length of one unit.
func (u Units) Duration() (time.Duration, error) {
	switch u {
	case Seconds:
		return time.Second, nil
	case Minutes:
		return time.Minute, nil
	case Hours:
		return time.Hour, nil
	}
	return 0, fmt.Errorf("%w: unknown time units %q", errs.ErrValidation, string(u))
}

// Scale converts d into a count of units.
func (u Units) Scale(d time.Duration) float64 {
	unit, err := u.Duration()
	if err != nil {
		return 0
	}
	return float64(d) / float64(unit)
}
