// Package reference models a scalar reference value with independent lower
// and upper tolerances.
package reference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"turbidity-monitor/internal/errs"
)

// Limit is one side of a tolerance, given either as an absolute bound or as
// an offset from the reference value.
type Limit struct {
	v        float64
	relative bool
	set      bool
}

// Absolute is a limit given as the bound itself.
func Absolute(bound float64) Limit {
	return Limit{v: bound, set: true}
}

// Relative is a limit given as a distance from the reference value.
func Relative(offset float64) Limit {
	return Limit{v: offset, relative: true, set: true}
}

// Reference is a named value and the interval around it considered good.
// Tolerances are held as offsets from Value.
type Reference struct {
	name          string
	value         float64
	relativeLower float64
	relativeUpper float64
}

// New creates a reference. An empty name is replaced with a random one.
func New(name string, value float64, lower, upper Limit) (Reference, error) {
	if !lower.set || !upper.set {
		return Reference{}, fmt.Errorf("%w: reference needs both a lower and an upper limit", errs.ErrValidation)
	}
	if name == "" {
		name = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	r := Reference{name: name, value: value}
	r.relativeLower = lower.v
	if !lower.relative {
		r.relativeLower = value - lower.v
	}
	r.relativeUpper = upper.v
	if !upper.relative {
		r.relativeUpper = upper.v - value
	}
	if r.relativeLower < 0 || r.relativeUpper < 0 {
		return Reference{}, fmt.Errorf("%w: reference %q limits [%g, %g] do not contain %g",
			errs.ErrValidation, name, r.Lower(), r.Upper(), value)
	}
	return r, nil
}

// Symmetric creates a reference with the same offset on both sides.
func Symmetric(name string, value, offset float64) (Reference, error) {
	return New(name, value, Relative(offset), Relative(offset))
}

func (r Reference) Name() string           { return r.name }
func (r Reference) Value() float64         { return r.value }
func (r Reference) RelativeLower() float64 { return r.relativeLower }
func (r Reference) RelativeUpper() float64 { return r.relativeUpper }

// Lower returns the absolute lower bound.
func (r Reference) Lower() float64 { return r.value - r.relativeLower }

// Upper returns the absolute upper bound.
func (r Reference) Upper() float64 { return r.value + r.relativeUpper }

// Good reports whether v lies within [Lower, Upper].
func (r Reference) Good(v float64) bool {
	return r.Lower() <= v && v <= r.Upper()
}

// AllGood reports whether every value is good.
func (r Reference) AllGood(values ...float64) bool {
	for _, v := range values {
		if !r.Good(v) {
			return false
		}
	}
	return true
}

func (r Reference) String() string {
	return fmt.Sprintf("%s: %g [-%g, +%g]", r.name, r.value, r.relativeLower, r.relativeUpper)
}

type referenceJSON struct {
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	RelativeLower float64 `json:"relative_lower"`
	RelativeUpper float64 `json:"relative_upper"`
}

// MarshalJSON encodes the reference with relative limits.
func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(referenceJSON{
		Name:          r.name,
		Value:         r.value,
		RelativeLower: r.relativeLower,
		RelativeUpper: r.relativeUpper,
	})
}

// UnmarshalJSON decodes and validates a reference.
func (r *Reference) UnmarshalJSON(data []byte) error {
	var j referenceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	ref, err := New(j.Name, j.Value, Relative(j.RelativeLower), Relative(j.RelativeUpper))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
