package monitor

import (
	"fmt"

	"turbidity-monitor/internal/errs"
)

// State is the classified condition of the sample.
type State string

const (
	Unstable  State = "unstable"
	Stable    State = "stable"
	Dissolved State = "dissolved"
	Saturated State = "saturated"
)

// States lists every valid state.
var States = []State{Unstable, Stable, Dissolved, Saturated}

// ParseState validates a state name.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown state %q", errs.ErrValidation, s)
}

// Event names a state transition worth reacting to.
type Event string

const (
	EventNone               Event = ""
	EventChanged            Event = "changed"
	EventChangedToStable    Event = "changed_to_stable"
	EventChangedToUnstable  Event = "changed_to_unstable"
	EventChangedToDissolved Event = "changed_to_dissolved"
	EventChangedToSaturated Event = "changed_to_saturated"
)
