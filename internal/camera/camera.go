// Package camera supplies BGR frames to the monitor, from a live capture
// device or from images on disk.
package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"turbidity-monitor/internal/errs"
	frame "turbidity-monitor/internal/image"
)

// ErrClosed is returned by a capture on a source that has been closed.
var ErrClosed = fmt.Errorf("%w: source closed", errs.ErrResource)

// Source supplies frames. Every returned Mat is owned by the caller.
type Source interface {
	CaptureOne() (gocv.Mat, error)
	CaptureN(n int) ([]gocv.Mat, error)
	Close() error
}

// captureN collects n frames from capture, releasing any already taken if a
// later capture fails.
func captureN(n int, capture func() (gocv.Mat, error)) ([]gocv.Mat, error) {
	if n < 1 {
		return nil, fmt.Errorf("capture count must be positive, got %d", n)
	}
	frames := make([]gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		m, err := capture()
		if err != nil {
			frame.CloseAll(frames)
			return nil, fmt.Errorf("frame %d of %d: %w", i+1, n, err)
		}
		frames = append(frames, m)
	}
	return frames, nil
}

// Still is a source that returns copies of one frame. It stands in for a
// camera in tools and tests.
type Still struct {
	frame gocv.Mat
}

// NewStill creates a source from a copy of m.
func NewStill(m gocv.Mat) *Still {
	return &Still{frame: m.Clone()}
}

// CaptureOne returns a copy of the frame.
func (s *Still) CaptureOne() (gocv.Mat, error) {
	return s.frame.Clone(), nil
}

// CaptureN returns n copies of the frame.
func (s *Still) CaptureN(n int) ([]gocv.Mat, error) {
	return captureN(n, s.CaptureOne)
}

// Close releases the frame.
func (s *Still) Close() error {
	return s.frame.Close()
}
