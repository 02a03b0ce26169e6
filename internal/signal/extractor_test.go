package signal

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"turbidity-monitor/internal/errs"
	frame "turbidity-monitor/internal/image"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/pkg/geometry"
)

// twoPatchFrame returns a 40x20 frame whose left half is grey at left and
// whose right half is grey at right.
func twoPatchFrame(t *testing.T, left, right uint8) gocv.Mat {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			v := left
			if x >= 20 {
				v = right
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	mat, err := frame.ToMat(img)
	require.NoError(t, err)
	return mat
}

func regions(t *testing.T) *region.Store {
	t.Helper()
	s := region.NewStore()
	mon, err := region.NewRectangle(region.Monitor, geometry.NewRectInt(2, 2, 16, 16), 40, 20)
	require.NoError(t, err)
	norm, err := region.NewRectangle(region.Normalization, geometry.NewRectInt(22, 2, 16, 16), 40, 20)
	require.NoError(t, err)
	require.NoError(t, s.Add(mon))
	require.NoError(t, s.Add(norm))
	return s
}

func TestMeasure_NormalizedRatio(t *testing.T) {
	f := twoPatchFrame(t, 120, 80)
	defer f.Close()

	m, err := NewExtractor().Measure([]gocv.Mat{f}, regions(t), region.Monitor)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, m.Raw, 1e-9)
	assert.InDelta(t, 80.0, m.Normalization, 1e-9)
	assert.InDelta(t, 150.0, m.Normalized, 1e-9)
}

func TestMeasure_AveragesFrames(t *testing.T) {
	a := twoPatchFrame(t, 100, 50)
	defer a.Close()
	b := twoPatchFrame(t, 140, 50)
	defer b.Close()

	m, err := NewExtractor().Measure([]gocv.Mat{a, b}, regions(t), region.Monitor)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, m.Raw, 1e-9)
	assert.InDelta(t, 240.0, m.Normalized, 1e-9)
}

func TestMeasure_MissingNormalization(t *testing.T) {
	f := twoPatchFrame(t, 120, 80)
	defer f.Close()

	s := regions(t)
	require.NoError(t, s.Clear(region.Normalization))

	_, err := NewExtractor().Measure([]gocv.Mat{f}, s, region.Monitor)
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = NewExtractor().Measure([]gocv.Mat{f}, regions(t), region.Dissolved)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestBrightness_RejectsOutOfFrame(t *testing.T) {
	f := twoPatchFrame(t, 10, 10)
	defer f.Close()

	_, err := NewExtractor().Brightness(f, geometry.NewRectInt(30, 0, 20, 5))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = NewExtractor().MeanBrightness(nil, geometry.NewRectInt(0, 0, 5, 5))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestBrightness_IsHSVValue(t *testing.T) {
	px := color.RGBA{R: 200, G: 40, B: 90, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, px)
		}
	}
	f, err := frame.ToMat(img)
	require.NoError(t, err)
	defer f.Close()

	got, err := NewExtractor().Brightness(f, geometry.NewRectInt(0, 0, 10, 10))
	require.NoError(t, err)
	assert.InDelta(t, 200.0, got, 1e-9, "value channel is the largest of R, G and B")
}
