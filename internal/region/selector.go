package region

import (
	"fmt"

	"turbidity-monitor/internal/errs"
	"turbidity-monitor/pkg/geometry"
)

// Selector chooses a region on a frame of the given size. Implementations may
// be interactive or file-driven; selection only happens at setup and
// calibration time.
type Selector interface {
	SelectPolygon(name string, frameWidth, frameHeight int) (Region, error)
	SelectRectangle(name string, frameWidth, frameHeight int) (Region, error)
}

// FileSelector answers selections from a previously saved region store.
type FileSelector struct {
	store *Store
}

// NewFileSelector creates a selector backed by the regions in store.
func NewFileSelector(store *Store) *FileSelector {
	return &FileSelector{store: store}
}

// LoadFileSelector creates a selector from a regions JSON file.
func LoadFileSelector(path string) (*FileSelector, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewFileSelector(s), nil
}

// SelectPolygon returns the saved region with the given name, as a polygon.
func (f *FileSelector) SelectPolygon(name string, frameWidth, frameHeight int) (Region, error) {
	r, err := f.lookup(name, frameWidth, frameHeight)
	if err != nil {
		return Region{}, err
	}
	return NewPolygon(name, r.Points, frameWidth, frameHeight)
}

// SelectRectangle returns the bounding rectangle of the saved region.
func (f *FileSelector) SelectRectangle(name string, frameWidth, frameHeight int) (Region, error) {
	r, err := f.lookup(name, frameWidth, frameHeight)
	if err != nil {
		return Region{}, err
	}
	return NewRectangle(name, r.Rect, frameWidth, frameHeight)
}

func (f *FileSelector) lookup(name string, frameWidth, frameHeight int) (Region, error) {
	r, err := f.store.Get(name)
	if err != nil {
		return Region{}, err
	}
	if !r.FitsFrame(frameWidth, frameHeight) {
		return Region{}, fmt.Errorf("%w: saved region %q %v does not fit a %dx%d frame",
			errs.ErrValidation, name, r.Rect.Tuple(), frameWidth, frameHeight)
	}
	return r, nil
}

// StaticSelector selects fixed shapes; it is used by tools and tests that
// already know the coordinates.
type StaticSelector struct {
	Polygons   map[string][]geometry.PointInt
	Rectangles map[string]geometry.RectInt
}

// SelectPolygon returns the configured polygon for name.
func (s StaticSelector) SelectPolygon(name string, frameWidth, frameHeight int) (Region, error) {
	pts, ok := s.Polygons[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: no polygon configured for %q", errs.ErrConfiguration, name)
	}
	return NewPolygon(name, pts, frameWidth, frameHeight)
}

// SelectRectangle returns the configured rectangle for name.
func (s StaticSelector) SelectRectangle(name string, frameWidth, frameHeight int) (Region, error) {
	rect, ok := s.Rectangles[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: no rectangle configured for %q", errs.ErrConfiguration, name)
	}
	return NewRectangle(name, rect, frameWidth, frameHeight)
}
