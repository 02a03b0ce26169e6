// Package series keeps the time-ordered turbidity readings of a monitoring
// run and derives relative-time views and exports from them.
package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"turbidity-monitor/internal/errs"
)

// Sample is one recorded reading. Stamp is Time rendered with the series
// layout and is the sample's identity.
type Sample struct {
	Stamp      string    `json:"timestamp"`
	Time       time.Time `json:"time"`
	Raw        float64   `json:"raw"`
	Normalized float64   `json:"normalized"`
}

// Series is an append-only, time-ordered store of samples. It is safe for
// concurrent use; readers always observe whole samples.
type Series struct {
	mu      sync.RWMutex
	layout  Layout
	samples []Sample
	now     func() time.Time
}

// New creates an empty series using the given timestamp layout.
func New(layout Layout) *Series {
	return &Series{layout: layout, now: time.Now}
}

// Layout returns the timestamp layout of the series.
func (s *Series) Layout() Layout {
	return s.layout
}

// Append records a sample at t. A sample whose formatted timestamp equals the
// last sample's is dropped and Append returns false.
func (s *Series) Append(t time.Time, raw, normalized float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(t, raw, normalized)
}

// AppendNow records a sample stamped with the current time.
func (s *Series) AppendNow(raw, normalized float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(s.now(), raw, normalized)
}

// AppendRelative records a sample offset units after the last sample. On an
// empty series the offset is ignored and the current time is used.
func (s *Series) AppendRelative(offset float64, units Units, raw, normalized float64) (bool, error) {
	unit, err := units.Duration()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return s.appendLocked(s.now(), raw, normalized), nil
	}
	last := s.samples[len(s.samples)-1].Time
	t := last.Add(time.Duration(offset * float64(unit)))
	return s.appendLocked(t, raw, normalized), nil
}

func (s *Series) appendLocked(t time.Time, raw, normalized float64) bool {
	stamp := s.layout.Format(t)
	if n := len(s.samples); n > 0 && s.samples[n-1].Stamp == stamp {
		return false
	}
	// Round-trip through the layout so that a reloaded series compares equal.
	if parsed, err := s.layout.Parse(stamp); err == nil {
		t = parsed
	}
	s.samples = append(s.samples, Sample{Stamp: stamp, Time: t, Raw: raw, Normalized: normalized})
	return true
}

// Len returns the number of samples.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Samples returns a copy of every sample in append order.
func (s *Series) Samples() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Sample(nil), s.samples...)
}

// Last returns the most recent sample.
func (s *Series) Last() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Head returns up to the first n samples.
func (s *Series) Head(n int) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n = clamp(n, len(s.samples))
	return append([]Sample(nil), s.samples[:n]...)
}

// Tail returns up to the last n samples.
func (s *Series) Tail(n int) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n = clamp(n, len(s.samples))
	return append([]Sample(nil), s.samples[len(s.samples)-n:]...)
}

// DropTail removes up to n samples from the end and returns how many were
// removed.
func (s *Series) DropTail(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = clamp(n, len(s.samples))
	s.samples = s.samples[:len(s.samples)-n]
	return n
}

// Reset removes every sample.
func (s *Series) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = nil
}

// Projection returns the time of each sample relative to the first sample,
// expressed in units.
func (s *Series) Projection(units Units) ([]float64, error) {
	if _, err := units.Duration(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return project(s.samples, units), nil
}

// Normalized returns the normalized values in append order.
func (s *Series) Normalized() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		out[i] = smp.Normalized
	}
	return out
}

// Raw returns the raw values in append order.
func (s *Series) Raw() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		out[i] = smp.Raw
	}
	return out
}

// Points returns the relative times in units and the normalized values.
func (s *Series) Points(units Units) (x, y []float64, err error) {
	if _, err := units.Duration(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	x = project(s.samples, units)
	y = make([]float64, len(s.samples))
	for i, smp := range s.samples {
		y[i] = smp.Normalized
	}
	return x, y, nil
}

func project(samples []Sample, units Units) []float64 {
	out := make([]float64, len(samples))
	if len(samples) == 0 {
		return out
	}
	start := samples[0].Time
	for i, smp := range samples {
		out[i] = units.Scale(smp.Time.Sub(start))
	}
	return out
}

// CSVHeader is the column order of WriteCSV.
var CSVHeader = []string{"Timestamp", "Time (s)", "Time (min)", "Time (hour)", "Turbidity"}

// WriteCSV writes one row per sample in append order. The turbidity column
// holds the normalized value.
func (s *Series) WriteCSV(w io.Writer) error {
	samples := s.Samples()
	secs := project(samples, Seconds)
	mins := project(samples, Minutes)
	hours := project(samples, Hours)

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i, smp := range samples {
		row := []string{
			smp.Stamp,
			formatFloat(secs[i]),
			formatFloat(mins[i]),
			formatFloat(hours[i]),
			formatFloat(smp.Normalized),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Maps returns the raw and normalized values keyed by timestamp.
func (s *Series) Maps() (raw, normalized map[string]float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw = make(map[string]float64, len(s.samples))
	normalized = make(map[string]float64, len(s.samples))
	for _, smp := range s.samples {
		raw[smp.Stamp] = smp.Raw
		normalized[smp.Stamp] = smp.Normalized
	}
	return raw, normalized
}

// Restore replaces the contents of the series with samples rebuilt from
// timestamp-keyed maps, ordered by parsed time. Both maps must carry the same
// timestamps.
func (s *Series) Restore(raw, normalized map[string]float64) error {
	for stamp := range raw {
		if _, ok := normalized[stamp]; !ok {
			return fmt.Errorf("%w: timestamp %q has no normalized value", errs.ErrValidation, stamp)
		}
	}
	samples := make([]Sample, 0, len(normalized))
	for stamp, v := range normalized {
		t, err := s.layout.Parse(stamp)
		if err != nil {
			return fmt.Errorf("%w: timestamp %q: %v", errs.ErrValidation, stamp, err)
		}
		r, ok := raw[stamp]
		if !ok {
			return fmt.Errorf("%w: timestamp %q has no raw value", errs.ErrValidation, stamp)
		}
		samples = append(samples, Sample{Stamp: stamp, Time: t, Raw: r, Normalized: v})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = samples
	return nil
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
