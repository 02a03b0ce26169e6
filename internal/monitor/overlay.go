package monitor

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"turbidity-monitor/internal/region"
	"turbidity-monitor/pkg/colorutil"
)

var regionColors = map[string]color.RGBA{
	region.Monitor:       colorutil.Green,
	region.Normalization: colorutil.Cyan,
	region.Dissolved:     colorutil.Blue,
	region.Saturated:     colorutil.Magenta,
	region.Arbitrary:     colorutil.Yellow,
}

// DrawRegions returns a copy of frame with every stored region outlined and
// labelled. The caller owns the result.
func (m *Monitor) DrawRegions(frame gocv.Mat) gocv.Mat {
	out := frame.Clone()
	regions := m.Regions()
	for _, name := range regions.Names() {
		r, _ := regions.Get(name)
		col, ok := regionColors[name]
		if !ok {
			col = colorutil.White
		}
		for i, p := range r.Points {
			next := r.Points[(i+1)%len(r.Points)]
			gocv.Line(&out, p.ImagePoint(), next.ImagePoint(), col, 2)
		}

		label := image.Pt(r.Rect.X, r.Rect.Y-5)
		if label.Y < 15 {
			label.Y = r.Rect.Y + r.Rect.Height + 15
		}
		gocv.PutText(&out, name, label, gocv.FontHersheyPlain, 1.0, col, 1)
	}
	return out
}
