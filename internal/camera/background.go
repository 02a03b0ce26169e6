package camera

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Sink receives frames captured in the background. It owns each frame.
type Sink func(m gocv.Mat)

// Background captures one frame per interval and hands it to a sink until
// stopped, or until the source is closed or exhausted.
type Background struct {
	src Source
	log *slog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// NewBackground wraps a source for periodic capture.
func NewBackground(src Source) *Background {
	return &Background{src: src, log: slog.Default()}
}

// Start begins capturing in a background goroutine. Starting a running
// capture is a no-op.
func (b *Background) Start(interval time.Duration, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopCh != nil {
		return
	}
	b.stopCh = make(chan struct{})
	b.done = make(chan struct{})
	go b.captureLoop(interval, sink, b.stopCh, b.done)
}

// Stop ends the capture and waits for the goroutine to exit.
func (b *Background) Stop() {
	b.mu.Lock()
	stopCh, done := b.stopCh, b.done
	b.stopCh, b.done = nil, nil
	b.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
}

func (b *Background) captureLoop(interval time.Duration, sink Sink, stopCh, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m, err := b.src.CaptureOne()
			if errors.Is(err, ErrClosed) || errors.Is(err, ErrExhausted) {
				b.log.Info("background capture ended", "reason", err)
				return
			}
			if err != nil {
				b.log.Warn("background capture failed", "error", err)
				continue
			}
			sink(m)
		}
	}
}
