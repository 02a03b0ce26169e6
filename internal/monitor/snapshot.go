package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"turbidity-monitor/internal/errs"
	"turbidity-monitor/internal/reference"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/internal/series"
	"turbidity-monitor/internal/stability"
)

// Snapshot is the persisted state of a monitor: enough to rebuild its series,
// regions and references.
type Snapshot struct {
	RawSeries          map[string]float64 `json:"raw_series"`
	NormalizedSeries   map[string]float64 `json:"normalized_series"`
	Regions            *region.Store      `json:"regions"`
	DissolvedReference *float64           `json:"dissolved_reference"`
	ArbitraryReference *float64           `json:"arbitrary_reference"`
	SaturatedReference *float64           `json:"saturated_reference"`
}

// Snapshot captures the current data.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, norm := m.series.Maps()
	return Snapshot{
		RawSeries:          raw,
		NormalizedSeries:   norm,
		Regions:            m.regions.Clone(),
		DissolvedReference: m.referencePtr(DissolvedReference),
		ArbitraryReference: m.referencePtr(ArbitraryReference),
		SaturatedReference: m.referencePtr(SaturatedReference),
	}
}

// Restore replaces the monitor's data with a snapshot. The state is not
// persisted; it is re-derived by the next evaluation.
func (m *Monitor) Restore(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.series.Restore(s.RawSeries, s.NormalizedSeries); err != nil {
		return err
	}
	m.regions = region.NewStore()
	if s.Regions != nil {
		m.regions = s.Regions.Clone()
	}
	m.refs = make(map[ReferenceKind]float64)
	for kind, v := range map[ReferenceKind]*float64{
		DissolvedReference: s.DissolvedReference,
		ArbitraryReference: s.ArbitraryReference,
		SaturatedReference: s.SaturatedReference,
	} {
		if v != nil {
			m.refs[kind] = *v
		}
	}
	m.plateaus = nil
	m.state = Unstable
	m.lastState = Unstable
	return nil
}

// SaveJSON writes a snapshot to path.
func (m *Monitor) SaveJSON(path string) error {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrResource, err)
	}
	return nil
}

// LoadJSON restores the monitor from a snapshot file.
func (m *Monitor) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return m.Restore(s)
}

// WriteCSV writes the series as CSV.
func (m *Monitor) WriteCSV(w io.Writer) error {
	return m.series.WriteCSV(w)
}

// SaveCSV writes the series as CSV to path.
func (m *Monitor) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrResource, err)
	}
	if err := m.series.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", errs.ErrResource, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrResource, err)
	}
	return nil
}

// Status is a point-in-time report of the monitor for external consumers.
type Status struct {
	State              State                 `json:"state"`
	LastState          State                 `json:"last_state"`
	Changed            bool                  `json:"changed"`
	Samples            int                   `json:"samples"`
	LastSample         *series.Sample        `json:"last_sample,omitempty"`
	DissolvedReference *float64              `json:"dissolved_reference"`
	SaturatedReference *float64              `json:"saturated_reference"`
	ArbitraryReference *float64              `json:"arbitrary_reference"`
	References         []reference.Reference `json:"references"`
	Plateaus           []stability.Plateau   `json:"plateaus"`
	Units              series.Units          `json:"units"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// Status reports the current state.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{
		State:              m.state,
		LastState:          m.lastState,
		Changed:            m.state != m.lastState,
		Samples:            m.series.Len(),
		DissolvedReference: m.referencePtr(DissolvedReference),
		SaturatedReference: m.referencePtr(SaturatedReference),
		ArbitraryReference: m.referencePtr(ArbitraryReference),
		References:         m.referencesLocked(),
		Plateaus:           append([]stability.Plateau{}, m.plateaus...),
		Units:              m.units,
		UpdatedAt:          time.Now(),
	}
	if last, ok := m.series.Last(); ok {
		st.LastSample = &last
	}
	return st
}

// SaveStatus writes Status to path as JSON.
func (m *Monitor) SaveStatus(path string) error {
	data, err := json.MarshalIndent(m.Status(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrResource, err)
	}
	return nil
}
