package region

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"turbidity-monitor/internal/errs"
)

// Store holds regions by name. It is not safe for concurrent use; the owner
// serialises access.
type Store struct {
	regions map[string]Region
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{regions: make(map[string]Region)}
}

// Add validates and stores a region, replacing any region with the same name.
func (s *Store) Add(r Region) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.regions[r.Name] = r
	return nil
}

// Get returns the named region.
func (s *Store) Get(name string) (Region, error) {
	r, ok := s.regions[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: no region named %q", errs.ErrValidation, name)
	}
	return r, nil
}

// Has reports whether a region with the given name is set.
func (s *Store) Has(name string) bool {
	_, ok := s.regions[name]
	return ok
}

// Clear removes the named region so it must be selected again.
func (s *Store) Clear(name string) error {
	if !s.Has(name) {
		return fmt.Errorf("%w: no region named %q", errs.ErrValidation, name)
	}
	delete(s.regions, name)
	return nil
}

// Names returns the names of all stored regions in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.regions))
	for name := range s.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored regions.
func (s *Store) Len() int {
	return len(s.regions)
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := NewStore()
	for name, r := range s.regions {
		pts := append(r.Points[:0:0], r.Points...)
		r.Points = pts
		c.regions[name] = r
	}
	return c
}

// storeFile is the persisted shape of a Store.
type storeFile struct {
	Regions map[string]Region `json:"rois"`
}

// MarshalJSON encodes the store as {"rois": {name: region}}.
func (s *Store) MarshalJSON() ([]byte, error) {
	f := storeFile{Regions: s.regions}
	if f.Regions == nil {
		f.Regions = map[string]Region{}
	}
	return json.Marshal(f)
}

// UnmarshalJSON decodes and validates every region.
func (s *Store) UnmarshalJSON(data []byte) error {
	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	regions := make(map[string]Region, len(f.Regions))
	for key, r := range f.Regions {
		if r.Name == "" {
			r.Name = key
		}
		if err := r.Validate(); err != nil {
			return err
		}
		regions[r.Name] = r
	}
	s.regions = regions
	return nil
}

// Load reads a region store from a JSON file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := NewStore()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse regions %s: %w", path, err)
	}
	return s, nil
}

// Save writes the store to a JSON file.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
