package monitor

import (
	"fmt"

	"gocv.io/x/gocv"

	"turbidity-monitor/internal/config"
	"turbidity-monitor/internal/errs"
	"turbidity-monitor/internal/reference"
	"turbidity-monitor/internal/region"
)

// ReferenceKind names one of the calibration references.
type ReferenceKind string

const (
	DissolvedReference ReferenceKind = "dissolved"
	SaturatedReference ReferenceKind = "saturated"
	ArbitraryReference ReferenceKind = "arbitrary"
)

// ParseReferenceKind validates a reference kind.
func ParseReferenceKind(s string) (ReferenceKind, error) {
	switch k := ReferenceKind(s); k {
	case DissolvedReference, SaturatedReference, ArbitraryReference:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown reference %q", errs.ErrValidation, s)
}

// RegionName returns the calibration region used for this kind.
func (k ReferenceKind) RegionName() string {
	switch k {
	case DissolvedReference:
		return region.Dissolved
	case SaturatedReference:
		return region.Saturated
	default:
		return region.Arbitrary
	}
}

// SetReference measures a reference from a batch of calibration frames. When
// sel is non-nil a dedicated calibration region is selected on the first
// frame first. Without a calibration region the monitor region is measured.
// A dissolved reference is multiplied by the configured scale.
func (m *Monitor) SetReference(kind ReferenceKind, frames []gocv.Mat, sel region.Selector) (float64, error) {
	if _, err := ParseReferenceKind(string(kind)); err != nil {
		return 0, err
	}
	if len(frames) == 0 {
		return 0, fmt.Errorf("%w: no calibration frames", errs.ErrValidation)
	}
	if sel != nil {
		if err := m.SelectRegion(sel, kind.RegionName(), frames[0]); err != nil {
			return 0, err
		}
	}

	name := kind.RegionName()
	m.mu.RLock()
	if !m.regions.Has(name) {
		name = region.Monitor
	}
	m.mu.RUnlock()

	meas, err := m.measure(frames, name)
	if err != nil {
		return 0, fmt.Errorf("measure %s reference: %w", kind, err)
	}
	v := meas.Normalized
	if kind == DissolvedReference {
		v *= m.dissolvedScale
	}
	m.SetReferenceValue(kind, v)
	m.log.Info("turbidity reference set", "kind", kind, "value", v, "region", name, "frames", len(frames))
	return v, nil
}

// SetReferenceValue stores a reference directly.
func (m *Monitor) SetReferenceValue(kind ReferenceKind, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[kind] = v
}

// ClearReference removes a reference.
func (m *Monitor) ClearReference(kind ReferenceKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refs, kind)
}

// ReferenceValue returns a stored reference.
func (m *Monitor) ReferenceValue(kind ReferenceKind) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.refs[kind]
	return v, ok
}

// Reference returns a stored reference with the monitor's upper and lower
// limits as its tolerance. Relative limits are resolved against the current
// data range.
func (m *Monitor) Reference(kind ReferenceKind) (reference.Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.refs[kind]
	if !ok {
		return reference.Reference{}, fmt.Errorf("%w: %s reference has not been set", errs.ErrConfiguration, kind)
	}
	return newReference(kind, v, m.resolvedLimitsLocked())
}

func newReference(kind ReferenceKind, v float64, l config.Limits) (reference.Reference, error) {
	return reference.New(string(kind), v, reference.Relative(l.LowerLimit), reference.Relative(l.UpperLimit))
}

func (m *Monitor) resolvedLimitsLocked() config.Limits {
	l := m.limits
	if _, y, err := m.series.Points(m.units); err == nil && len(y) > 0 {
		l = l.Absolute(dataRange(y))
	}
	return l
}

// refLocked builds the reference of the given kind under l. A reference
// whose limits are negative is treated as unset.
func (m *Monitor) refLocked(kind ReferenceKind, l config.Limits) (reference.Reference, bool) {
	v, ok := m.refs[kind]
	if !ok {
		return reference.Reference{}, false
	}
	ref, err := newReference(kind, v, l)
	return ref, err == nil
}

// referencesLocked returns every set reference in a fixed order.
func (m *Monitor) referencesLocked() []reference.Reference {
	l := m.resolvedLimitsLocked()
	var out []reference.Reference
	for _, kind := range []ReferenceKind{DissolvedReference, SaturatedReference, ArbitraryReference} {
		if ref, ok := m.refLocked(kind, l); ok {
			out = append(out, ref)
		}
	}
	return out
}

func (m *Monitor) referencePtr(kind ReferenceKind) *float64 {
	v, ok := m.refs[kind]
	if !ok {
		return nil
	}
	return &v
}
