package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	frame "turbidity-monitor/internal/image"
)

// ErrExhausted is returned once a directory source has no more images.
var ErrExhausted = errors.New("no more images")

// Directory replays the images of a folder in name order.
type Directory struct {
	mu    sync.Mutex
	paths []string
	next  int
}

// OpenDirectory lists the supported images in dir.
func OpenDirectory(dir string) (*Directory, error) {
	paths, err := frame.ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	return &Directory{paths: paths}, nil
}

// Len returns the number of images in the folder.
func (d *Directory) Len() int {
	return len(d.paths)
}

// Remaining returns the number of images not yet returned.
func (d *Directory) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.paths) - d.next
}

// NextPath returns the path CaptureOne will load next.
func (d *Directory) NextPath() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.paths) {
		return "", false
	}
	return d.paths[d.next], true
}

// CaptureOne loads the next image.
func (d *Directory) CaptureOne() (gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captureLocked()
}

func (d *Directory) captureLocked() (gocv.Mat, error) {
	if d.next >= len(d.paths) {
		return gocv.Mat{}, ErrExhausted
	}
	path := d.paths[d.next]
	d.next++
	return frame.Load(path)
}

// CaptureN loads the next n images.
func (d *Directory) CaptureN(n int) ([]gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return captureN(n, d.captureLocked)
}

// Close is a no-op; images are loaded on demand.
func (d *Directory) Close() error {
	return nil
}
