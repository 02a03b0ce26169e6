// Command replay runs a folder of previously captured images through the
// turbidity monitor and prints the state after every measurement.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lmittmann/tint"
	"gocv.io/x/gocv"

	"turbidity-monitor/internal/camera"
	"turbidity-monitor/internal/config"
	frame "turbidity-monitor/internal/image"
	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/internal/series"
	"turbidity-monitor/internal/store"
)

type options struct {
	imagesDir    string
	regionsPath  string
	outDir       string
	batch        int
	offset       float64
	dissolvedRef float64
	saturatedRef float64
	record       bool
}

func main() {
	configPath := flag.String("config", "", "Path to JSON configuration (defaults apply when empty)")
	o := options{dissolvedRef: math.NaN(), saturatedRef: math.NaN()}
	flag.StringVar(&o.imagesDir, "images", "", "Folder of images, replayed in name order")
	flag.StringVar(&o.regionsPath, "regions", "", "Path to a regions JSON file")
	flag.StringVar(&o.outDir, "out", "", "Folder for the snapshot, CSV, status and sample database (optional)")
	flag.IntVar(&o.batch, "batch", 0, "Images per measurement (defaults to acquisition.images_per_measurement)")
	flag.Float64Var(&o.offset, "offset", 0, "Seconds between measurements (defaults to the acquisition interval)")
	flag.BoolVar(&o.record, "db", false, "Also write samples.db into -out")
	flag.Func("dissolved-ref", "Dissolved reference value", floatFlag(&o.dissolvedRef))
	flag.Func("saturated-ref", "Saturated reference value", floatFlag(&o.saturatedRef))
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, nil)))

	if o.imagesDir == "" || o.regionsPath == "" {
		fmt.Println("Usage: replay -images <dir> -regions <regions.json> [-out <dir>] [-batch N] [-offset seconds]")
		os.Exit(1)
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if o.batch == 0 {
		o.batch = cfg.Acquisition.GetImagesPerMeasurement()
	}
	if o.offset == 0 {
		o.offset = cfg.Acquisition.Interval().Seconds()
	}

	mon, err := replay(cfg, o, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nFinal state: %s after %d samples\n", mon.State(), mon.Series().Len())
}

func floatFlag(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// replay feeds the images through a new monitor, writing one line per
// measurement and a plateau summary to w.
func replay(cfg *config.Config, o options, w io.Writer) (*monitor.Monitor, error) {
	if o.batch < 1 {
		return nil, fmt.Errorf("batch must be positive, got %d", o.batch)
	}
	opts, err := monitor.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	mon, err := monitor.New(opts)
	if err != nil {
		return nil, err
	}
	if !math.IsNaN(o.dissolvedRef) {
		mon.SetReferenceValue(monitor.DissolvedReference, o.dissolvedRef)
	}
	if !math.IsNaN(o.saturatedRef) {
		mon.SetReferenceValue(monitor.SaturatedReference, o.saturatedRef)
	}

	src, err := camera.OpenDirectory(o.imagesDir)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	fmt.Fprintf(w, "Replaying %d images from %s, %d per measurement, %gs apart\n",
		src.Len(), o.imagesDir, o.batch, o.offset)

	sel, err := region.LoadFileSelector(o.regionsPath)
	if err != nil {
		return nil, err
	}

	var db *store.DB
	if o.record && o.outDir != "" {
		if err := os.MkdirAll(o.outDir, 0755); err != nil {
			return nil, err
		}
		if db, err = store.Open(filepath.Join(o.outDir, "samples.db")); err != nil {
			return nil, err
		}
		defer db.Close()
	}

	first := true
	for src.Remaining() >= o.batch {
		frames, err := src.CaptureN(o.batch)
		if errors.Is(err, camera.ErrExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			if err := selectRegions(mon, sel, frames[0]); err != nil {
				frame.CloseAll(frames)
				return nil, err
			}
			first = false
		}
		u, err := mon.AddMeasurementAfter(o.offset, series.Seconds, frames)
		frame.CloseAll(frames)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(w, "%s  %8.3f  %-10s %s\n", u.Sample.Stamp, u.Sample.Normalized, u.State, u.Event)
		if db != nil {
			if err := db.RecordSample("replay", u.Sample); err != nil {
				return nil, err
			}
		}
	}

	fmt.Fprintf(w, "\nStable plateaus (%s):\n", mon.Units())
	for _, p := range mon.Plateaus() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	for _, kind := range []monitor.ReferenceKind{monitor.DissolvedReference, monitor.SaturatedReference} {
		if _, ok := mon.ReferenceValue(kind); !ok {
			continue
		}
		fmt.Fprintf(w, "Plateaus at the %s reference:\n", kind)
		for _, p := range mon.KnownPlateaus(kind) {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}

	if o.outDir != "" {
		if err := writeOutputs(mon, o.outDir); err != nil {
			return nil, err
		}
	}
	return mon, nil
}

func selectRegions(mon *monitor.Monitor, sel region.Selector, first gocv.Mat) error {
	for _, name := range []string{region.Normalization, region.Monitor} {
		if err := mon.SelectRegion(sel, name, first); err != nil {
			return err
		}
	}
	return nil
}

func writeOutputs(mon *monitor.Monitor, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := mon.SaveJSON(filepath.Join(dir, "turbidity_data.json")); err != nil {
		return err
	}
	if err := mon.SaveCSV(filepath.Join(dir, "turbidity_data.csv")); err != nil {
		return err
	}
	return mon.SaveStatus(filepath.Join(dir, "status.json"))
}
