// Package config loads the monitor's JSON configuration. Every field is
// optional; Get* accessors supply defaults for anything the file omits.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"turbidity-monitor/internal/errs"
)

// DefaultConfigPath is the example configuration shipped with the repo.
const DefaultConfigPath = "config/monitor.defaults.json"

// Config is the root configuration.
type Config struct {
	Monitor     MonitorConfig     `json:"monitor"`
	Acquisition AcquisitionConfig `json:"acquisition"`
	Service     ServiceConfig     `json:"service"`
}

// MonitorConfig holds the state evaluation parameters.
type MonitorConfig struct {
	WindowSize      *int     `json:"window_size,omitempty"`
	StdMax          *float64 `json:"std_max,omitempty"`
	SemMax          *float64 `json:"sem_max,omitempty"`
	RangeLimit      *float64 `json:"range_limit,omitempty"`
	UpperLimit      *float64 `json:"upper_limit,omitempty"`
	LowerLimit      *float64 `json:"lower_limit,omitempty"`
	RelativeLimits  *bool    `json:"relative_limits,omitempty"`
	RMin            *float64 `json:"r_min,omitempty"`
	SlopeUpperLimit *float64 `json:"slope_upper_limit,omitempty"`
	SlopeLowerLimit *float64 `json:"slope_lower_limit,omitempty"`
	XAxisUnits      *string  `json:"x_axis_units,omitempty"` // seconds, minutes or hours
	DatetimeFormat  *string  `json:"datetime_format,omitempty"`
}

// AcquisitionConfig controls how often and how many frames are captured.
type AcquisitionConfig struct {
	MeasurementsPerMinute   *float64 `json:"measurements_per_minute,omitempty"`
	ImagesPerMeasurement    *int     `json:"images_per_measurement,omitempty"`
	CameraDevice            *int     `json:"camera_device,omitempty"`
	WindowMinutes           *float64 `json:"window_minutes,omitempty"`
	DissolvedReferenceScale *float64 `json:"dissolved_reference_scale,omitempty"`
}

// ServiceConfig controls the daemon's outer surfaces.
type ServiceConfig struct {
	Listen    *string `json:"listen,omitempty"`
	RedisAddr *string `json:"redis_addr,omitempty"` // empty disables publishing
	DataDir   *string `json:"data_dir,omitempty"`
	SQLite    *bool   `json:"sqlite,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1 MiB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("%w: config file must have .json extension, got %q", errs.ErrConfiguration, ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", errs.ErrConfiguration, fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config JSON: %v", errs.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every set value.
func (c *Config) Validate() error {
	m := c.Monitor
	if m.WindowSize != nil && *m.WindowSize < 2 {
		return fmt.Errorf("%w: window_size must be at least 2, got %d", errs.ErrValidation, *m.WindowSize)
	}
	for name, v := range map[string]*float64{
		"std_max":           m.StdMax,
		"sem_max":           m.SemMax,
		"range_limit":       m.RangeLimit,
		"upper_limit":       m.UpperLimit,
		"lower_limit":       m.LowerLimit,
		"slope_upper_limit": m.SlopeUpperLimit,
		"slope_lower_limit": m.SlopeLowerLimit,
	} {
		if v != nil && (*v < 0 || math.IsNaN(*v)) {
			return fmt.Errorf("%w: %s must be non-negative, got %g", errs.ErrValidation, name, *v)
		}
	}
	if m.XAxisUnits != nil {
		switch *m.XAxisUnits {
		case "seconds", "minutes", "hours":
		default:
			return fmt.Errorf("%w: x_axis_units must be seconds, minutes or hours, got %q", errs.ErrValidation, *m.XAxisUnits)
		}
	}

	a := c.Acquisition
	if a.MeasurementsPerMinute != nil && *a.MeasurementsPerMinute <= 0 {
		return fmt.Errorf("%w: measurements_per_minute must be positive, got %g", errs.ErrValidation, *a.MeasurementsPerMinute)
	}
	if a.ImagesPerMeasurement != nil && *a.ImagesPerMeasurement < 1 {
		return fmt.Errorf("%w: images_per_measurement must be at least 1, got %d", errs.ErrValidation, *a.ImagesPerMeasurement)
	}
	if a.WindowMinutes != nil && *a.WindowMinutes <= 0 {
		return fmt.Errorf("%w: window_minutes must be positive, got %g", errs.ErrValidation, *a.WindowMinutes)
	}
	if a.DissolvedReferenceScale != nil && *a.DissolvedReferenceScale <= 0 {
		return fmt.Errorf("%w: dissolved_reference_scale must be positive, got %g", errs.ErrValidation, *a.DissolvedReferenceScale)
	}
	if a.WindowMinutes != nil && c.WindowSize() < 2 {
		return fmt.Errorf("%w: window_minutes %g gives a window of %d measurements", errs.ErrValidation, *a.WindowMinutes, c.WindowSize())
	}
	return nil
}

// GetWindowSize returns window_size or the default.
func (m MonitorConfig) GetWindowSize() int {
	if m.WindowSize == nil {
		return 40
	}
	return *m.WindowSize
}

// GetStdMax returns std_max or the default.
func (m MonitorConfig) GetStdMax() float64 {
	if m.StdMax == nil {
		return 0.05
	}
	return *m.StdMax
}

// GetSemMax returns sem_max or the default.
func (m MonitorConfig) GetSemMax() float64 {
	if m.SemMax == nil {
		return 0.05
	}
	return *m.SemMax
}

// GetRangeLimit returns range_limit or the default.
func (m MonitorConfig) GetRangeLimit() float64 {
	if m.RangeLimit == nil {
		return 0.1
	}
	return *m.RangeLimit
}

// GetUpperLimit returns upper_limit or the default.
func (m MonitorConfig) GetUpperLimit() float64 {
	if m.UpperLimit == nil {
		return 5
	}
	return *m.UpperLimit
}

// GetLowerLimit returns lower_limit or the default.
func (m MonitorConfig) GetLowerLimit() float64 {
	if m.LowerLimit == nil {
		return 5
	}
	return *m.LowerLimit
}

// GetRelativeLimits returns relative_limits or the default.
func (m MonitorConfig) GetRelativeLimits() bool {
	if m.RelativeLimits == nil {
		return false
	}
	return *m.RelativeLimits
}

// GetXAxisUnits returns x_axis_units or the default.
func (m MonitorConfig) GetXAxisUnits() string {
	if m.XAxisUnits == nil {
		return "minutes"
	}
	return *m.XAxisUnits
}

// GetDatetimeFormat returns datetime_format or the default.
func (m MonitorConfig) GetDatetimeFormat() string {
	if m.DatetimeFormat == nil || *m.DatetimeFormat == "" {
		return "2006_01_02_15_04_05_000000"
	}
	return *m.DatetimeFormat
}

// GetMeasurementsPerMinute returns measurements_per_minute or the default.
func (a AcquisitionConfig) GetMeasurementsPerMinute() float64 {
	if a.MeasurementsPerMinute == nil {
		return 12
	}
	return *a.MeasurementsPerMinute
}

// Interval returns the time between measurements.
func (a AcquisitionConfig) Interval() time.Duration {
	return time.Duration(float64(time.Minute) / a.GetMeasurementsPerMinute())
}

// GetImagesPerMeasurement returns images_per_measurement or the default.
func (a AcquisitionConfig) GetImagesPerMeasurement() int {
	if a.ImagesPerMeasurement == nil {
		return 25
	}
	return *a.ImagesPerMeasurement
}

// GetCameraDevice returns camera_device or the default.
func (a AcquisitionConfig) GetCameraDevice() int {
	if a.CameraDevice == nil {
		return 0
	}
	return *a.CameraDevice
}

// GetDissolvedReferenceScale returns dissolved_reference_scale or the default.
func (a AcquisitionConfig) GetDissolvedReferenceScale() float64 {
	if a.DissolvedReferenceScale == nil {
		return 1
	}
	return *a.DissolvedReferenceScale
}

// GetListen returns listen or the default.
func (s ServiceConfig) GetListen() string {
	if s.Listen == nil || *s.Listen == "" {
		return ":8080"
	}
	return *s.Listen
}

// GetRedisAddr returns redis_addr; empty means publishing is disabled.
func (s ServiceConfig) GetRedisAddr() string {
	if s.RedisAddr == nil {
		return ""
	}
	return *s.RedisAddr
}

// GetDataDir returns data_dir or the default.
func (s ServiceConfig) GetDataDir() string {
	if s.DataDir == nil || *s.DataDir == "" {
		return "."
	}
	return *s.DataDir
}

// GetSQLite returns sqlite or the default.
func (s ServiceConfig) GetSQLite() bool {
	if s.SQLite == nil {
		return true
	}
	return *s.SQLite
}

// WindowSize returns the number of samples per evaluation window. When
// window_minutes is set it wins over window_size.
func (c *Config) WindowSize() int {
	if c.Acquisition.WindowMinutes != nil {
		return int(math.Round(c.Acquisition.GetMeasurementsPerMinute() * *c.Acquisition.WindowMinutes))
	}
	return c.Monitor.GetWindowSize()
}

// Limits returns the evaluation defaults described by the configuration.
func (c *Config) Limits() Limits {
	m := c.Monitor
	return Limits{
		N:              c.WindowSize(),
		StdMax:         m.GetStdMax(),
		SemMax:         m.GetSemMax(),
		UpperLimit:     m.GetUpperLimit(),
		LowerLimit:     m.GetLowerLimit(),
		RangeLimit:     m.GetRangeLimit(),
		RelativeLimits: m.GetRelativeLimits(),
		RMin:           m.RMin,
		SlopeUpper:     m.SlopeUpperLimit,
		SlopeLower:     m.SlopeLowerLimit,
	}
}
