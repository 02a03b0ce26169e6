// Package monitor classifies a running turbidity series into process states
// and reports state transitions.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"turbidity-monitor/internal/config"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/internal/series"
	"turbidity-monitor/internal/signal"
	"turbidity-monitor/internal/stability"
)

// Options configure a Monitor.
type Options struct {
	Limits config.Limits
	Units  series.Units
	Layout series.Layout

	// DissolvedScale multiplies a calibrated dissolved reference. Zero means 1.
	DissolvedScale float64

	Extractor *signal.Extractor
	Logger    *slog.Logger
}

// OptionsFromConfig builds monitor options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	units, err := series.ParseUnits(cfg.Monitor.GetXAxisUnits())
	if err != nil {
		return Options{}, err
	}
	return Options{
		Limits:         cfg.Limits(),
		Units:          units,
		Layout:         series.NewLayout(cfg.Monitor.GetDatetimeFormat()),
		DissolvedScale: cfg.Acquisition.GetDissolvedReferenceScale(),
	}, nil
}

// Update describes the effect of one new sample.
type Update struct {
	Appended    bool
	Sample      series.Sample
	Measurement signal.Measurement
	State       State
	LastState   State
	Event       Event
}

// Monitor owns the series, regions and references of one run and classifies
// the series after every new sample. Writes are expected from a single
// goroutine; reads are safe from any goroutine.
type Monitor struct {
	mu sync.RWMutex

	limits         config.Limits
	units          series.Units
	dissolvedScale float64
	extractor      *signal.Extractor
	log            *slog.Logger

	series    *series.Series
	regions   *region.Store
	refs      map[ReferenceKind]float64
	state     State
	lastState State
	plateaus  []stability.Plateau
}

// New creates a monitor in the unstable state.
func New(opts Options) (*Monitor, error) {
	if err := opts.Limits.Validate(); err != nil {
		return nil, err
	}
	if opts.Units == "" {
		opts.Units = series.Minutes
	}
	if _, err := opts.Units.Duration(); err != nil {
		return nil, err
	}
	if opts.DissolvedScale == 0 {
		opts.DissolvedScale = 1
	}
	if opts.Extractor == nil {
		opts.Extractor = signal.NewExtractor()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Layout == (series.Layout{}) {
		opts.Layout = series.NewLayout("")
	}

	return &Monitor{
		limits:         opts.Limits,
		units:          opts.Units,
		dissolvedScale: opts.DissolvedScale,
		extractor:      opts.Extractor,
		log:            opts.Logger,
		series:         series.New(opts.Layout),
		regions:        region.NewStore(),
		refs:           make(map[ReferenceKind]float64),
		state:          Unstable,
		lastState:      Unstable,
	}, nil
}

// Limits returns the default evaluation limits.
func (m *Monitor) Limits() config.Limits {
	return m.limits
}

// Units returns the x-axis units used for plateaus.
func (m *Monitor) Units() series.Units {
	return m.units
}

// SetRegion stores a region.
func (m *Monitor) SetRegion(r region.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions.Add(r)
}

// SelectRegion asks sel for a polygon region on frame and stores it.
func (m *Monitor) SelectRegion(sel region.Selector, name string, frame gocv.Mat) error {
	r, err := sel.SelectPolygon(name, frame.Cols(), frame.Rows())
	if err != nil {
		return fmt.Errorf("select %s: %w", name, err)
	}
	return m.SetRegion(r)
}

// Region returns a stored region.
func (m *Monitor) Region(name string) (region.Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regions.Get(name)
}

// ClearRegion removes a stored region.
func (m *Monitor) ClearRegion(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions.Clear(name)
}

// Regions returns a copy of the region store.
func (m *Monitor) Regions() *region.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regions.Clone()
}

// AddMeasurement measures the monitor region of frames, records it at the
// current time and re-evaluates the state.
func (m *Monitor) AddMeasurement(frames []gocv.Mat) (Update, error) {
	meas, err := m.measure(frames, region.Monitor)
	if err != nil {
		return Update{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	appended := m.series.AppendNow(meas.Raw, meas.Normalized)
	return m.afterAppend(appended, meas), nil
}

// AddMeasurementAt records a measurement taken at t, for retroactive analysis.
func (m *Monitor) AddMeasurementAt(t time.Time, frames []gocv.Mat) (Update, error) {
	meas, err := m.measure(frames, region.Monitor)
	if err != nil {
		return Update{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	appended := m.series.Append(t, meas.Raw, meas.Normalized)
	return m.afterAppend(appended, meas), nil
}

// AddMeasurementAfter records a measurement offset units after the previous
// sample.
func (m *Monitor) AddMeasurementAfter(offset float64, units series.Units, frames []gocv.Mat) (Update, error) {
	meas, err := m.measure(frames, region.Monitor)
	if err != nil {
		return Update{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	appended, err := m.series.AppendRelative(offset, units, meas.Raw, meas.Normalized)
	if err != nil {
		return Update{}, err
	}
	return m.afterAppend(appended, meas), nil
}

// AddValue records an already computed reading at t.
func (m *Monitor) AddValue(t time.Time, raw, normalized float64) Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	appended := m.series.Append(t, raw, normalized)
	return m.afterAppend(appended, signal.Measurement{Raw: raw, Normalized: normalized})
}

func (m *Monitor) measure(frames []gocv.Mat, name string) (signal.Measurement, error) {
	m.mu.RLock()
	regions := m.regions.Clone()
	m.mu.RUnlock()
	return m.extractor.Measure(frames, regions, name)
}

func (m *Monitor) afterAppend(appended bool, meas signal.Measurement) Update {
	u := Update{Appended: appended, Measurement: meas}
	if appended {
		m.updateStateLocked(config.Overrides{})
		u.Sample, _ = m.series.Last()
	}
	u.State = m.state
	u.LastState = m.lastState
	if appended {
		u.Event = m.eventLocked()
	}
	if u.Event != EventNone {
		m.log.Info("turbidity state changed",
			"from", m.lastState,
			"to", m.state,
			"event", u.Event,
			"samples", m.series.Len())
	} else {
		m.log.Debug("turbidity measured",
			"raw", meas.Raw,
			"normalized", meas.Normalized,
			"state", m.state,
			"appended", appended)
	}
	return u
}

// Series returns the underlying time series. It is safe for concurrent reads.
func (m *Monitor) Series() *series.Series {
	return m.series
}

// Samples returns a copy of every recorded sample.
func (m *Monitor) Samples() []series.Sample {
	return m.series.Samples()
}

// Reset clears collected data and returns to the unstable state. Regions and
// references are kept.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series.Reset()
	m.plateaus = nil
	m.state = Unstable
	m.lastState = Unstable
}
