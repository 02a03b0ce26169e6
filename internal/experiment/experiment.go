// Package experiment lays out the on-disk folder of one monitoring run.
package experiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"turbidity-monitor/internal/config"
	"turbidity-monitor/internal/errs"
)

// NamePrefix is the folder name prefix of every run.
const NamePrefix = "solubility_study_"

// Experiment is a numbered run folder.
type Experiment struct {
	Parent string
	Number int
	RunID  string
}

// Create makes the first unused solubility_study_<N> folder under parent,
// starting at N=1.
func Create(parent string) (*Experiment, error) {
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrResource, err)
	}
	for n := 1; ; n++ {
		e := &Experiment{Parent: parent, Number: n}
		err := os.Mkdir(e.Dir(), 0755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrResource, err)
		}
		e.RunID = uuid.NewString()
		return e, nil
	}
}

// Name returns the folder name, e.g. solubility_study_3.
func (e *Experiment) Name() string {
	return fmt.Sprintf("%s%d", NamePrefix, e.Number)
}

// Dir returns the run folder.
func (e *Experiment) Dir() string {
	return filepath.Join(e.Parent, e.Name())
}

func (e *Experiment) path(name string) string {
	return filepath.Join(e.Dir(), name)
}

// SnapshotPath is the persisted monitor snapshot.
func (e *Experiment) SnapshotPath() string { return e.path("turbidity_data.json") }

// CSVPath is the CSV export of the series.
func (e *Experiment) CSVPath() string { return e.path("turbidity_data.csv") }

// StatusPath is the status artifact rewritten after every tick.
func (e *Experiment) StatusPath() string { return e.path("status.json") }

// DBPath is the sample database.
func (e *Experiment) DBPath() string { return e.path("samples.db") }

// SelectionsPath holds the regions and references chosen before the run.
func (e *Experiment) SelectionsPath() string { return e.path("vision_selections.json") }

// SelectionImagePath is a frame annotated with the selected regions.
func (e *Experiment) SelectionImagePath() string { return e.path("vision_selection.png") }

// PreviewPath is the most recent background preview frame.
func (e *Experiment) PreviewPath() string { return e.path("preview.png") }

// InfoPath is the run info file.
func (e *Experiment) InfoPath() string { return e.path(e.Name() + ".json") }

// Info records the parameters and outcome of a run.
type Info struct {
	RunID                 string        `json:"run_id"`
	Name                  string        `json:"name"`
	Started               time.Time     `json:"started"`
	Finished              *time.Time    `json:"finished,omitempty"`
	Parameters            config.Limits `json:"parameters"`
	Units                 string        `json:"x_axis_units"`
	MeasurementsPerMinute float64       `json:"measurements_per_min"`
	ImagesPerMeasurement  int           `json:"images_per_measurement"`
	FinalState            string        `json:"final_state"`
}

// NewInfo fills run info from the effective configuration.
func (e *Experiment) NewInfo(cfg *config.Config) *Info {
	return &Info{
		RunID:                 e.RunID,
		Name:                  e.Name(),
		Started:               time.Now(),
		Parameters:            cfg.Limits(),
		Units:                 cfg.Monitor.GetXAxisUnits(),
		MeasurementsPerMinute: cfg.Acquisition.GetMeasurementsPerMinute(),
		ImagesPerMeasurement:  cfg.Acquisition.GetImagesPerMeasurement(),
	}
}

// Finish records the final state and end time.
func (i *Info) Finish(state string) {
	now := time.Now()
	i.Finished = &now
	i.FinalState = state
}

// Save writes the info file.
func (i *Info) Save(path string) error {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrResource, err)
	}
	return nil
}

// LoadInfo reads an info file.
func LoadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}

	return &info, nil
}
