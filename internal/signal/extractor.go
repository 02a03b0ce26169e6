// Package signal turns camera frames into turbidity readings: the mean HSV
// value channel of a cropped region, normalised against a reference region of
// the same frames.
package signal

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"turbidity-monitor/internal/errs"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/pkg/geometry"
)

// DefaultBlurKernel is the Gaussian kernel applied to a crop before colour
// conversion.
const DefaultBlurKernel = 3

// Measurement is a single reading derived from a batch of frames.
type Measurement struct {
	Raw           float64 // mean value channel of the measured region
	Normalization float64 // mean value channel of the normalization region
	Normalized    float64 // Raw / Normalization * 100
}

// Extractor computes brightness readings from BGR frames.
type Extractor struct {
	// BlurKernel is the odd Gaussian kernel size; 0 or 1 disables blurring.
	BlurKernel int
}

// NewExtractor creates an extractor with the default blur.
func NewExtractor() *Extractor {
	return &Extractor{BlurKernel: DefaultBlurKernel}
}

// Brightness returns the mean HSV value of rect cropped from a single frame.
func (e *Extractor) Brightness(frame gocv.Mat, rect geometry.RectInt) (float64, error) {
	if frame.Empty() {
		return 0, fmt.Errorf("%w: empty frame", errs.ErrValidation)
	}
	if frame.Channels() != 3 {
		return 0, fmt.Errorf("%w: expected a 3-channel frame, got %d channels", errs.ErrValidation, frame.Channels())
	}
	if rect.Empty() || !rect.FitsWithin(frame.Cols(), frame.Rows()) {
		return 0, fmt.Errorf("%w: rectangle %v outside %dx%d frame",
			errs.ErrValidation, rect.Tuple(), frame.Cols(), frame.Rows())
	}

	roi := frame.Region(rect.ImageRect())
	defer roi.Close()
	crop := roi.Clone()
	defer crop.Close()

	if e.BlurKernel > 1 {
		gocv.GaussianBlur(crop, &crop, image.Pt(e.BlurKernel, e.BlurKernel), 0, 0, gocv.BorderDefault)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(crop, &hsv, gocv.ColorBGRToHSV)

	return hsv.Mean().Val3, nil
}

// MeanBrightness averages Brightness over every frame in the batch.
func (e *Extractor) MeanBrightness(frames []gocv.Mat, rect geometry.RectInt) (float64, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("%w: no frames to measure", errs.ErrValidation)
	}
	var sum float64
	for i, f := range frames {
		v, err := e.Brightness(f, rect)
		if err != nil {
			return 0, fmt.Errorf("frame %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(frames)), nil
}

// Measure reads the named region from frames and normalises it against the
// normalization region. Both regions must already be in the store.
func (e *Extractor) Measure(frames []gocv.Mat, regions *region.Store, name string) (Measurement, error) {
	norm, err := regions.Get(region.Normalization)
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: normalization region has not been set", errs.ErrConfiguration)
	}
	target, err := regions.Get(name)
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: %s has not been set", errs.ErrConfiguration, name)
	}
	return e.MeasureRects(frames, target.Rect, norm.Rect)
}

// MeasureRects is Measure with explicit rectangles.
func (e *Extractor) MeasureRects(frames []gocv.Mat, target, norm geometry.RectInt) (Measurement, error) {
	raw, err := e.MeanBrightness(frames, target)
	if err != nil {
		return Measurement{}, err
	}
	base, err := e.MeanBrightness(frames, norm)
	if err != nil {
		return Measurement{}, fmt.Errorf("normalization region: %w", err)
	}
	if base == 0 {
		return Measurement{}, fmt.Errorf("%w: normalization region is black", errs.ErrValidation)
	}
	return Measurement{
		Raw:           raw,
		Normalization: base,
		Normalized:    raw / base * 100,
	}, nil
}
