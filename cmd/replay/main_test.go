package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbidity-monitor/internal/config"
	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/pkg/geometry"
)

func writeImages(t *testing.T, dir string, n int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(120)
			if x >= 20 {
				v = 80
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	for i := 0; i < n; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
}

func writeRegions(t *testing.T, path string) {
	t.Helper()
	s := region.NewStore()
	mon, err := region.NewRectangle(region.Monitor, geometry.NewRectInt(2, 2, 16, 16), 40, 20)
	require.NoError(t, err)
	norm, err := region.NewRectangle(region.Normalization, geometry.NewRectInt(22, 2, 16, 16), 40, 20)
	require.NoError(t, err)
	require.NoError(t, s.Add(mon))
	require.NoError(t, s.Add(norm))
	require.NoError(t, s.Save(path))
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	images := filepath.Join(dir, "images")
	require.NoError(t, os.Mkdir(images, 0755))
	writeImages(t, images, 7)
	regionsPath := filepath.Join(dir, "regions.json")
	writeRegions(t, regionsPath)

	window := 3
	cfg := &config.Config{Monitor: config.MonitorConfig{WindowSize: &window}}
	out := filepath.Join(dir, "out")

	var buf bytes.Buffer
	mon, err := replay(cfg, options{
		imagesDir:    images,
		regionsPath:  regionsPath,
		outDir:       out,
		batch:        2,
		offset:       5,
		dissolvedRef: math.NaN(),
		saturatedRef: math.NaN(),
		record:       true,
	}, &buf)
	require.NoError(t, err)

	assert.Equal(t, 3, mon.Series().Len(), "the odd image left over is not measured")
	assert.Equal(t, monitor.Stable, mon.State())
	assert.Contains(t, buf.String(), "Replaying 7 images")
	assert.Contains(t, buf.String(), "changed_to_stable")

	samples := mon.Samples()
	assert.InDelta(t, 10.0, samples[2].Time.Sub(samples[0].Time).Seconds(), 1e-6)
	assert.InDelta(t, 150.0, samples[0].Normalized, 1e-9)

	for _, name := range []string{"turbidity_data.json", "turbidity_data.csv", "status.json", "samples.db"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
}

func TestReplay_MissingRegions(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, 2)
	_, err := replay(config.Empty(), options{
		imagesDir:    dir,
		regionsPath:  filepath.Join(dir, "missing.json"),
		batch:        1,
		offset:       5,
		dissolvedRef: math.NaN(),
		saturatedRef: math.NaN(),
	}, &bytes.Buffer{})
	assert.Error(t, err)
}
