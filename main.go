// Command turbidity-monitor watches a vial through a camera and reports when
// its contents have settled, dissolved or saturated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"gocv.io/x/gocv"

	"turbidity-monitor/internal/acquisition"
	"turbidity-monitor/internal/api"
	"turbidity-monitor/internal/camera"
	"turbidity-monitor/internal/config"
	"turbidity-monitor/internal/experiment"
	frame "turbidity-monitor/internal/image"
	"turbidity-monitor/internal/metrics"
	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/publish"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/internal/store"
	"turbidity-monitor/internal/version"
)

// calibrationFrames is how many frames a reference is averaged over.
const calibrationFrames = 30

type flags struct {
	configPath   string
	regionsPath  string
	dataDir      string
	listen       string
	calibrate    bool
	autostart    bool
	debug        bool
	preview      time.Duration
	dissolvedRef float64
	saturatedRef float64
}

func parseFlags() flags {
	f := flags{dissolvedRef: math.NaN(), saturatedRef: math.NaN()}
	flag.StringVar(&f.configPath, "config", config.DefaultConfigPath, "Path to JSON configuration")
	flag.StringVar(&f.regionsPath, "regions", "", "Path to a regions JSON file ({\"rois\": {...}})")
	flag.StringVar(&f.dataDir, "data", "", "Parent folder for experiment folders (overrides service.data_dir)")
	flag.StringVar(&f.listen, "listen", "", "HTTP listen address (overrides service.listen)")
	flag.BoolVar(&f.calibrate, "calibrate-dissolved", false, "Measure the dissolved reference from the camera before starting")
	flag.BoolVar(&f.autostart, "autostart", true, "Start acquisition immediately")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.DurationVar(&f.preview, "preview", 0, "Write a preview frame at this interval (0 disables)")
	flag.Func("dissolved-ref", "Dissolved reference value", floatFlag(&f.dissolvedRef))
	flag.Func("saturated-ref", "Saturated reference value", floatFlag(&f.saturatedRef))
	flag.Parse()
	return f
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

func main() {
	f := parseFlags()

	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level})))
	slog.Info("starting turbidity monitor", "version", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		slog.Error("turbidity monitor failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.regionsPath == "" {
		return errors.New("-regions is required")
	}
	dataDir := cfg.Service.GetDataDir()
	if f.dataDir != "" {
		dataDir = f.dataDir
	}
	listen := cfg.Service.GetListen()
	if f.listen != "" {
		listen = f.listen
	}

	exp, err := experiment.Create(dataDir)
	if err != nil {
		return err
	}
	log := slog.Default().With("experiment", exp.Name())
	log.Info("experiment folder created", "dir", exp.Dir(), "run", exp.RunID)

	opts, err := monitor.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	mon, err := monitor.New(opts)
	if err != nil {
		return err
	}

	device, err := camera.OpenDevice(cfg.Acquisition.GetCameraDevice())
	if err != nil {
		return err
	}
	// The loop owns the device once created; until then close it here.
	owned := false
	defer func() {
		if !owned {
			device.Close()
		}
	}()

	if err := setup(mon, device, f, exp.SelectionImagePath()); err != nil {
		return err
	}
	if err := mon.SaveJSON(exp.SelectionsPath()); err != nil {
		log.Warn("could not save selections", "error", err)
	}

	var db *store.DB
	var runLog api.RunLog
	if cfg.Service.GetSQLite() {
		db, err = store.Open(exp.DBPath())
		if err != nil {
			return err
		}
		defer db.Close()
		runLog = db
	}

	pub, err := publish.Open(ctx, cfg.Service.GetRedisAddr())
	if err != nil {
		return err
	}
	defer pub.Close()

	info := exp.NewInfo(cfg)
	if err := info.Save(exp.InfoPath()); err != nil {
		log.Warn("could not save run info", "error", err)
	}

	loopOpts := acquisition.Options{
		Monitor:  mon,
		Source:   device,
		Images:   cfg.Acquisition.GetImagesPerMeasurement(),
		Interval: cfg.Acquisition.Interval(),
		RunID:    exp.RunID,
		Outputs: acquisition.Outputs{
			Snapshot: exp.SnapshotPath(),
			CSV:      exp.CSVPath(),
			Status:   exp.StatusPath(),
		},
		Publisher: pub,
		Logger:    log,
	}
	if db != nil {
		loopOpts.Recorder = db
	}
	loop, err := acquisition.New(loopOpts)
	if err != nil {
		return err
	}
	owned = true
	defer loop.Close()
	metrics.SetState(mon.State())

	bg := camera.NewBackground(device)
	if f.preview > 0 {
		bg.Start(f.preview, previewSink(exp.PreviewPath()))
	}
	defer bg.Stop()

	srv := &http.Server{
		Addr:           listen,
		Handler:        api.NewServer(mon, loop, runLog, exp.RunID).Router(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		log.Info("control surface listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()

	if f.autostart {
		if err := loop.Start(); err != nil {
			return err
		}
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	bg.Stop()
	if err := loop.Close(); err != nil {
		log.Warn("camera release", "error", err)
	}
	if err := loop.Err(); err != nil {
		log.Error("acquisition ended early", "error", err)
	}

	info.Finish(string(mon.State()))
	if err := info.Save(exp.InfoPath()); err != nil {
		log.Warn("could not save run info", "error", err)
	}
	log.Info("run finished", "state", mon.State(), "samples", mon.Series().Len())
	return nil
}

// setup installs regions from the regions file against a live frame, saves
// the frame annotated with them, and sets references from flags or
// calibration.
func setup(mon *monitor.Monitor, device camera.Source, f flags, annotatedPath string) error {
	saved, err := region.Load(f.regionsPath)
	if err != nil {
		return err
	}
	sel := region.NewFileSelector(saved)

	first, err := device.CaptureOne()
	if err != nil {
		return err
	}
	defer first.Close()
	for _, name := range []string{region.Normalization, region.Monitor} {
		if err := mon.SelectRegion(sel, name, first); err != nil {
			return err
		}
	}
	annotated := mon.DrawRegions(first)
	if !gocv.IMWrite(annotatedPath, annotated) {
		slog.Warn("could not write selection image", "path", annotatedPath)
	}
	annotated.Close()

	if !math.IsNaN(f.dissolvedRef) {
		mon.SetReferenceValue(monitor.DissolvedReference, f.dissolvedRef)
	}
	if !math.IsNaN(f.saturatedRef) {
		mon.SetReferenceValue(monitor.SaturatedReference, f.saturatedRef)
	}

	if f.calibrate {
		slog.Info("measuring dissolved reference", "frames", calibrationFrames)
		frames, err := device.CaptureN(calibrationFrames)
		if err != nil {
			return err
		}
		defer frame.CloseAll(frames)
		var calib region.Selector
		if saved.Has(region.Dissolved) {
			calib = sel
		}
		if _, err := mon.SetReference(monitor.DissolvedReference, frames, calib); err != nil {
			return fmt.Errorf("calibrate: %w", err)
		}
	}
	return nil
}

func previewSink(path string) camera.Sink {
	return func(m gocv.Mat) {
		defer m.Close()
		if !gocv.IMWrite(path, m) {
			slog.Warn("could not write preview", "path", path)
		}
	}
}
