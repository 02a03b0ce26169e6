// Package region defines regions of interest on a camera frame and the named
// store that holds them.
package region

import (
	"fmt"

	"turbidity-monitor/internal/errs"
	"turbidity-monitor/pkg/geometry"
)

// Well-known region names.
const (
	Monitor       = "monitor region"
	Normalization = "normalization region"
	Dissolved     = "dissolved region"
	Saturated     = "saturated region"
	Arbitrary     = "arbitrary region"
)

// Kind is the shape a region was selected as.
type Kind string

const (
	KindPolygon   Kind = "polygon"
	KindRectangle Kind = "rectangle"
)

// Region is an area selected on a reference frame. Rect is the upright
// bounding box of Points, computed once at selection time and reused to crop
// every later frame.
type Region struct {
	Name        string              `json:"name"`
	Kind        Kind                `json:"roi_type"`
	Points      []geometry.PointInt `json:"points"`
	Rect        geometry.RectInt    `json:"rectangle"`
	FrameWidth  int                 `json:"select_width"`
	FrameHeight int                 `json:"select_height"`
}

// NewPolygon creates a polygon region from its vertices on a frame of the
// given size.
func NewPolygon(name string, points []geometry.PointInt, frameWidth, frameHeight int) (Region, error) {
	pts := make([]geometry.PointInt, len(points))
	copy(pts, points)
	r := Region{
		Name:        name,
		Kind:        KindPolygon,
		Points:      pts,
		Rect:        geometry.BoundingBox(pts),
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// NewRectangle creates a rectangular region. Its polygon is the four corners.
func NewRectangle(name string, rect geometry.RectInt, frameWidth, frameHeight int) (Region, error) {
	r := Region{
		Name:        name,
		Kind:        KindRectangle,
		Points:      geometry.RectCorners(rect),
		Rect:        rect,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks the region's shape and that its bounding rectangle fits in
// the frame it was selected on.
func (r Region) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: region has no name", errs.ErrValidation)
	}
	switch r.Kind {
	case KindPolygon:
		if len(r.Points) < 3 {
			return fmt.Errorf("%w: polygon %q needs at least 3 vertices, got %d", errs.ErrValidation, r.Name, len(r.Points))
		}
		if geometry.PolygonArea(r.Points) == 0 {
			return fmt.Errorf("%w: polygon %q encloses no area", errs.ErrValidation, r.Name)
		}
	case KindRectangle:
	default:
		return fmt.Errorf("%w: region %q has unknown type %q", errs.ErrValidation, r.Name, r.Kind)
	}
	if r.Rect.Empty() {
		return fmt.Errorf("%w: region %q has an empty bounding rectangle", errs.ErrValidation, r.Name)
	}
	if r.FrameWidth <= 0 || r.FrameHeight <= 0 {
		return fmt.Errorf("%w: region %q has no selection frame size", errs.ErrValidation, r.Name)
	}
	if !r.Rect.FitsWithin(r.FrameWidth, r.FrameHeight) {
		return fmt.Errorf("%w: region %q rectangle %v exceeds %dx%d frame",
			errs.ErrValidation, r.Name, r.Rect.Tuple(), r.FrameWidth, r.FrameHeight)
	}
	return nil
}

// FitsFrame reports whether the region can crop a frame of the given size.
func (r Region) FitsFrame(width, height int) bool {
	return r.Rect.FitsWithin(width, height)
}
