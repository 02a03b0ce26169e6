// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
)

// PointInt represents a 2D point with integer pixel coordinates.
// The origin is the top-left corner of a frame.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ImagePoint converts to an image.Point.
func (p PointInt) ImagePoint() image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

// RectInt represents an axis-aligned rectangle with integer coordinates.
// X and Y are the top-left corner.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRectInt creates a new RectInt.
func NewRectInt(x, y, width, height int) RectInt {
	return RectInt{X: x, Y: y, Width: width, Height: height}
}

// Empty returns true if the rectangle covers no pixels.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the number of pixels covered by the rectangle.
func (r RectInt) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// FitsWithin returns true if the rectangle lies entirely inside a frame of
// the given dimensions.
func (r RectInt) FitsWithin(frameWidth, frameHeight int) bool {
	return r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= frameWidth &&
		r.Y+r.Height <= frameHeight
}

// ImageRect converts to an image.Rectangle (Min inclusive, Max exclusive).
func (r RectInt) ImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Tuple returns the rectangle as (x, y, width, height).
func (r RectInt) Tuple() [4]int {
	return [4]int{r.X, r.Y, r.Width, r.Height}
}

// RectFromTuple builds a RectInt from (x, y, width, height).
func RectFromTuple(t [4]int) RectInt {
	return RectInt{X: t[0], Y: t[1], Width: t[2], Height: t[3]}
}

// RectCorners returns the four corners of a rectangle, starting at the
// top-left, as polygon vertices.
func RectCorners(r RectInt) []PointInt {
	return []PointInt{
		{X: r.X, Y: r.Y},
		{X: r.X, Y: r.Y + r.Height},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X + r.Width, Y: r.Y},
	}
}

// BoundingBox computes the upright bounding rectangle of a set of pixel
// vertices. Like OpenCV's boundingRect the extent is inclusive, so a single
// point yields a 1x1 rectangle.
func BoundingBox(points []PointInt) RectInt {
	if len(points) == 0 {
		return RectInt{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return RectInt{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}
