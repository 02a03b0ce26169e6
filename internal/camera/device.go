package camera

import (
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"turbidity-monitor/internal/errs"
)

// videoCapture is the part of gocv.VideoCapture the device uses.
type videoCapture interface {
	Read(m *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, param float64)
	Close() error
}

type opener func(id int) (videoCapture, error)

func openGoCV(id int) (videoCapture, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// Device reads frames from a video capture device. A failed read triggers one
// reconnect before the error is returned. The capture handle is released
// exactly once by Close.
type Device struct {
	mu     sync.Mutex
	id     int
	open   opener
	vc     videoCapture
	closed bool
	log    *slog.Logger
}

// OpenDevice opens the capture device with the given index.
func OpenDevice(id int) (*Device, error) {
	return openDevice(id, openGoCV, slog.Default())
}

func openDevice(id int, open opener, log *slog.Logger) (*Device, error) {
	d := &Device{id: id, open: open, log: log}
	if err := d.connect(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) connect() error {
	vc, err := d.open(d.id)
	if err != nil {
		return fmt.Errorf("%w: open camera %d: %w", errs.ErrResource, d.id, err)
	}
	// Manual exposure keeps brightness comparable between frames.
	vc.Set(gocv.VideoCaptureAutoExposure, 0.25)
	d.vc = vc
	return nil
}

func (d *Device) disconnect() {
	if d.vc != nil {
		d.vc.Close()
		d.vc = nil
	}
}

func (d *Device) read() (gocv.Mat, bool) {
	m := gocv.NewMat()
	if d.vc == nil || !d.vc.Read(&m) || m.Empty() {
		m.Close()
		return gocv.Mat{}, false
	}
	return m, true
}

// CaptureOne reads a single frame.
func (d *Device) CaptureOne() (gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captureLocked()
}

func (d *Device) captureLocked() (gocv.Mat, error) {
	if d.closed {
		return gocv.Mat{}, fmt.Errorf("camera %d: %w", d.id, ErrClosed)
	}
	if m, ok := d.read(); ok {
		return m, nil
	}

	d.log.Warn("camera read failed, reconnecting", "device", d.id)
	d.disconnect()
	if err := d.connect(); err != nil {
		return gocv.Mat{}, err
	}
	if m, ok := d.read(); ok {
		return m, nil
	}
	return gocv.Mat{}, fmt.Errorf("%w: camera %d returned no frame after reconnect", errs.ErrResource, d.id)
}

// CaptureN reads n frames back to back.
func (d *Device) CaptureN(n int) ([]gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return captureN(n, d.captureLocked)
}

// Close releases the capture device. Further calls are no-ops.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var err error
	if d.vc != nil {
		err = d.vc.Close()
		d.vc = nil
	}
	return err
}
