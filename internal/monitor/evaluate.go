package monitor

import (
	"turbidity-monitor/internal/config"
	"turbidity-monitor/internal/reference"
	"turbidity-monitor/internal/stability"
)

// UpdateState re-evaluates the series with the given overrides applied to the
// default limits, remembering the previous state for transition checks.
func (m *Monitor) UpdateState(o config.Overrides) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStateLocked(o)
}

func (m *Monitor) updateStateLocked(o config.Overrides) State {
	state, plateaus := m.evaluateLocked(o)
	m.lastState = m.state
	m.state = state
	if state == Stable {
		m.plateaus = plateaus
	}
	return state
}

// CheckState evaluates the series without changing the monitor.
func (m *Monitor) CheckState(o config.Overrides) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, _ := m.evaluateLocked(o)
	return state
}

// evaluateLocked classifies the last n samples. Dissolved and saturated take
// priority over plain stability. When stable, the plateaus of the whole
// series are returned as well.
func (m *Monitor) evaluateLocked(o config.Overrides) (State, []stability.Plateau) {
	x, y, err := m.series.Points(m.units)
	if err != nil || len(y) == 0 {
		return Unstable, nil
	}
	l := config.Resolve(o, m.limits).Absolute(dataRange(y))
	if l.N < 1 || len(y) < l.N {
		return Unstable, nil
	}

	opts := optionsFor(l)
	lx, ly := x[len(x)-l.N:], y[len(y)-l.N:]

	if ref, ok := m.refLocked(DissolvedReference, l); ok && settledAt(lx, ly, ref, opts, below) {
		return Dissolved, nil
	}
	if ref, ok := m.refLocked(SaturatedReference, l); ok && settledAt(lx, ly, ref, opts, above) {
		return Saturated, nil
	}
	if stability.Unknown(lx, ly, l.RangeLimit, opts) {
		return Stable, stability.ScanUnknown(x, y, l.N, l.RangeLimit, opts)
	}
	return Unstable, nil
}

type side func(v, ref float64) bool

func below(v, ref float64) bool { return v < ref }
func above(v, ref float64) bool { return v > ref }

// settledAt reports whether a window has settled at the reference, or has
// settled past it on the given side with both mean and mode beyond it.
func settledAt(x, y []float64, ref reference.Reference, opts stability.Options, past side) bool {
	if stability.Known(x, y, ref, opts) {
		return true
	}
	if !stability.Unknown(x, y, ref.RelativeLower()+ref.RelativeUpper(), opts) {
		return false
	}
	s := stability.Describe(x, y)
	return past(s.Mean, ref.Value()) && past(s.Mode, ref.Value())
}

func optionsFor(l config.Limits) stability.Options {
	return stability.Options{
		StdMax:     l.StdMax,
		SemMax:     l.SemMax,
		RMin:       l.RMin,
		SlopeUpper: l.SlopeUpper,
		SlopeLower: l.SlopeLower,
	}
}

func dataRange(y []float64) float64 {
	lo, hi := y[0], y[0]
	for _, v := range y[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastState returns the state before the latest evaluation.
func (m *Monitor) LastState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastState
}

// Plateaus returns the stable plateaus found at the latest stable
// evaluation, in scan order. Overlapping windows are all present.
func (m *Monitor) Plateaus() []stability.Plateau {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]stability.Plateau(nil), m.plateaus...)
}

// KnownPlateaus scans the whole series for windows settled at the given
// reference. It returns nil when the reference is unset.
func (m *Monitor) KnownPlateaus(kind ReferenceKind) []stability.Plateau {
	m.mu.RLock()
	defer m.mu.RUnlock()
	x, y, err := m.series.Points(m.units)
	if err != nil || len(y) == 0 {
		return nil
	}
	l := m.limits.Absolute(dataRange(y))
	ref, ok := m.refLocked(kind, l)
	if !ok {
		return nil
	}
	return stability.ScanKnown(x, y, l.N, ref, optionsFor(l))
}

// Changed reports whether the latest evaluation changed the state.
func (m *Monitor) Changed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state != m.lastState
}

// ChangedToStable reports a change into a new stable plateau. Becoming
// stable again inside the previous plateau's window does not count.
func (m *Monitor) ChangedToStable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changedToStableLocked()
}

func (m *Monitor) changedToStableLocked() bool {
	if m.state == m.lastState || m.state != Stable {
		return false
	}
	switch n := len(m.plateaus); {
	case n == 1:
		return true
	case n >= 2:
		return m.plateaus[n-1].Start > m.plateaus[n-2].End
	}
	return false
}

// ChangedToUnstable reports a change to unstable once the series has moved
// past the end of the last stable plateau.
func (m *Monitor) ChangedToUnstable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changedToUnstableLocked()
}

func (m *Monitor) changedToUnstableLocked() bool {
	if m.state == m.lastState || m.state != Unstable || len(m.plateaus) == 0 {
		return false
	}
	x, err := m.series.Projection(m.units)
	if err != nil || len(x) == 0 {
		return false
	}
	return m.plateaus[len(m.plateaus)-1].End < x[len(x)-1]
}

// ChangedToDissolved reports a change into the dissolved state.
func (m *Monitor) ChangedToDissolved() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state != m.lastState && m.state == Dissolved
}

// ChangedToSaturated reports a change into the saturated state.
func (m *Monitor) ChangedToSaturated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state != m.lastState && m.state == Saturated
}

func (m *Monitor) eventLocked() Event {
	if m.state == m.lastState {
		return EventNone
	}
	switch {
	case m.state == Dissolved:
		return EventChangedToDissolved
	case m.state == Saturated:
		return EventChangedToSaturated
	case m.changedToStableLocked():
		return EventChangedToStable
	case m.changedToUnstableLocked():
		return EventChangedToUnstable
	}
	return EventChanged
}
