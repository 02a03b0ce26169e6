// Package acquisition drives periodic measurement of a running sample:
// capture a batch of frames, append a measurement, persist, publish.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"turbidity-monitor/internal/camera"
	"turbidity-monitor/internal/errs"
	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/publish"
	"turbidity-monitor/internal/series"
	"turbidity-monitor/internal/store"
)

// ErrInvalidTransition is returned by a control call that does not apply to
// the loop's current phase.
var ErrInvalidTransition = errors.New("invalid acquisition transition")

// Phase is the lifecycle position of a Loop.
type Phase string

const (
	Idle    Phase = "idle"
	Running Phase = "running"
	Paused  Phase = "paused"
	Stopped Phase = "stopped"
)

// Recorder durably logs samples and transitions. *store.DB implements it.
type Recorder interface {
	RecordSample(runID string, s series.Sample) error
	RecordTransition(t store.Transition) error
}

// Outputs are the files rewritten after every tick. Empty paths are skipped.
type Outputs struct {
	Snapshot string
	CSV      string
	Status   string
}

// Options configure a Loop.
type Options struct {
	Monitor  *monitor.Monitor
	Source   camera.Source
	Images   int
	Interval time.Duration
	RunID    string
	Outputs  Outputs

	// Recorder and Publisher are optional.
	Recorder  Recorder
	Publisher publish.Publisher
	Logger    *slog.Logger
}

// Loop runs one measurement per interval on a background goroutine. A Loop
// is single use: once stopped its source is closed. A capture that fails
// with a resource error stops the loop; Err reports it.
type Loop struct {
	mon      *monitor.Monitor
	src      camera.Source
	images   int
	interval time.Duration
	runID    string
	out      Outputs
	rec      Recorder
	pub      publish.Publisher
	log      *slog.Logger

	mu     sync.Mutex
	phase  Phase
	paused atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	closeOnce sync.Once
	closeErr  error
}

// New validates options and returns an idle loop.
func New(opts Options) (*Loop, error) {
	if opts.Monitor == nil || opts.Source == nil {
		return nil, fmt.Errorf("acquisition needs a monitor and a source")
	}
	if opts.Images < 1 {
		return nil, fmt.Errorf("images per measurement must be positive, got %d", opts.Images)
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}
	if opts.Publisher == nil {
		opts.Publisher = publish.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		mon:      opts.Monitor,
		src:      opts.Source,
		images:   opts.Images,
		interval: opts.Interval,
		runID:    opts.RunID,
		out:      opts.Outputs,
		rec:      opts.Recorder,
		pub:      opts.Publisher,
		log:      opts.Logger.With("run", opts.RunID),
		phase:    Idle,
	}, nil
}

// Phase reports where the loop is in its lifecycle.
func (l *Loop) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Err returns the error that stopped the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Monitor returns the monitor the loop feeds.
func (l *Loop) Monitor() *monitor.Monitor {
	return l.mon
}

// Start launches the background goroutine.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != Idle {
		return fmt.Errorf("%w: start while %s", ErrInvalidTransition, l.phase)
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.phase = Running
	go l.run(ctx, l.done)
	l.log.Info("acquisition started", "interval", l.interval, "images", l.images)
	return nil
}

// Pause makes the loop skip ticks until Resume.
func (l *Loop) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != Running {
		return fmt.Errorf("%w: pause while %s", ErrInvalidTransition, l.phase)
	}
	l.paused.Store(true)
	l.phase = Paused
	l.log.Info("acquisition paused")
	return nil
}

// Resume continues a paused loop.
func (l *Loop) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != Paused {
		return fmt.Errorf("%w: resume while %s", ErrInvalidTransition, l.phase)
	}
	l.paused.Store(false)
	l.phase = Running
	l.log.Info("acquisition resumed")
	return nil
}

// Stop signals the loop and blocks until the in-flight tick has finished
// and the source is closed. Stopping a loop that already failed only waits
// for it to exit.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.phase == Stopped && l.err != nil {
		done := l.done
		l.mu.Unlock()
		<-done
		return l.closeErr
	}
	if l.phase != Running && l.phase != Paused {
		phase := l.phase
		l.mu.Unlock()
		return fmt.Errorf("%w: stop while %s", ErrInvalidTransition, phase)
	}
	l.phase = Stopped
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
	l.log.Info("acquisition stopped", "samples", l.mon.Series().Len(), "state", l.mon.State())
	return l.closeErr
}

// Close releases the source without starting. It is safe after Stop.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.phase == Running || l.phase == Paused {
		l.mu.Unlock()
		return l.Stop()
	}
	l.phase = Stopped
	l.mu.Unlock()
	return l.closeSource()
}

func (l *Loop) closeSource() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.src.Close()
	})
	return l.closeErr
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.closeSource()

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !l.paused.Load() {
			err := l.Tick(ctx)
			if errors.Is(err, ErrCapture) && errors.Is(err, errs.ErrResource) {
				l.fail(err)
				return
			}
			if err != nil {
				l.log.Warn("tick failed", "error", err)
			}
		}
		timer.Reset(l.interval)
	}
}

func (l *Loop) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	l.phase = Stopped
	l.log.Error("acquisition stopped on camera failure", "error", err, "samples", l.mon.Series().Len())
}
