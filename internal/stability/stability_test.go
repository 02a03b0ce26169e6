package stability

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbidity-monitor/internal/reference"
)

func xs(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func flat(n int, v float64) []float64 {
	y := make([]float64, n)
	for i := range y {
		y[i] = v
	}
	return y
}

func defaults() Options {
	return Options{StdMax: 0.05, SemMax: 0.05}
}

func ptr(v float64) *float64 { return &v }

func known(t *testing.T, v, upper, lower float64) reference.Reference {
	t.Helper()
	ref, err := reference.New("known", v, reference.Relative(lower), reference.Relative(upper))
	require.NoError(t, err)
	return ref
}

func TestMedianAndMode(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	assert.Equal(t, 7.0, Mode([]float64{7, 3, 3, 7, 1}), "tie goes to the first value seen")
	assert.Equal(t, 3.0, Mode([]float64{7, 3, 3, 1}))
	assert.Equal(t, 5.5, Mode([]float64{5.5, 1.2, 9.9}))
}

func TestDescribe(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7}
	s := Describe(x, y)
	assert.InDelta(t, 4.0, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5), s.Std, 1e-12)
	assert.InDelta(t, math.Sqrt(5)/2, s.Sem, 1e-12)
	assert.InDelta(t, 2.0, s.Slope, 1e-12)
	assert.InDelta(t, 1.0, s.R, 1e-12)
	assert.Equal(t, 6.0, s.Range())
}

func TestUnknown(t *testing.T) {
	x := xs(40)
	assert.True(t, Unknown(x, flat(40, 50), 0.1, defaults()))

	noisy := flat(40, 50)
	noisy[10] = 51
	assert.False(t, Unknown(x, noisy, 0.1, defaults()))
	assert.True(t, Unknown(x, noisy, 1, Options{StdMax: 1, SemMax: 1}))

	ramp := make([]float64, 40)
	for i := range ramp {
		ramp[i] = 50 + float64(i)*0.001
	}
	assert.True(t, Unknown(x, ramp, 0.1, defaults()))
	assert.False(t, Unknown(x, ramp, 0.1, Options{StdMax: 0.05, SemMax: 0.05, SlopeUpper: ptr(0.0005)}))
	assert.True(t, Unknown(x, ramp, 0.1, Options{StdMax: 0.05, SemMax: 0.05, RMin: ptr(0.9)}))
}

func TestUnknown_RMinOnFlatDataFails(t *testing.T) {
	// A flat window has no defined correlation, so an explicit r threshold
	// rejects it.
	assert.False(t, Unknown(xs(10), flat(10, 3), 0.1, Options{StdMax: 1, SemMax: 1, RMin: ptr(0)}))
}

func TestKnown(t *testing.T) {
	x := xs(40)
	y := flat(40, 5)
	assert.True(t, Known(x, y, known(t, 5, 2, 2), defaults()))
	assert.True(t, Known(x, y, known(t, 6.5, 2, 2), defaults()))
	assert.False(t, Known(x, y, known(t, 8, 2, 2), defaults()))
	assert.False(t, Known(x, y, known(t, 2, 2, 2), defaults()))
	assert.True(t, Known(x, y, known(t, 4, 1, 0), defaults()), "upper tolerance alone reaches the data")
	assert.False(t, Known(x, y, known(t, 4, 0, 1), defaults()), "lower tolerance does not extend upward")

	spread := flat(40, 5)
	spread[0], spread[1] = 3, 7
	assert.True(t, Known(x, spread, known(t, 5, 2, 2), Options{StdMax: 1, SemMax: 1}))
	assert.False(t, Known(x, spread, known(t, 5, 1, 0.3), Options{StdMax: 1, SemMax: 1}), "range exceeds (upper+lower)*1.5")
}

// randomWindow returns a near-flat window around base with occasional
// outliers.
func randomWindow(r *rand.Rand, n int, base float64) []float64 {
	y := make([]float64, n)
	scale := []float64{0.001, 0.01, 0.05, 0.2}[r.Intn(4)]
	for i := range y {
		y[i] = base + r.NormFloat64()*scale
		if r.Intn(20) == 0 {
			y[i] += r.Float64() * 0.1
		}
	}
	return y
}

func TestUnknown_AcceptedWindowsAreBounded(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	o := defaults()
	const rangeLimit = 0.1
	accepted := 0
	for trial := 0; trial < 2000; trial++ {
		n := 5 + r.Intn(40)
		y := randomWindow(r, n, 50)
		if !Unknown(xs(n), y, rangeLimit, o) {
			continue
		}
		accepted++
		s := Describe(xs(n), y)
		assert.LessOrEqual(t, s.Std, o.StdMax)
		assert.LessOrEqual(t, s.Range(), rangeLimit)
		for _, v := range y {
			assert.LessOrEqual(t, math.Abs(v-s.Mean), rangeLimit)
		}
	}
	assert.Positive(t, accepted, "generator should produce some stable windows")
}

func TestKnown_ShrinkingLimitsNeverHelps(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	o := Options{StdMax: 0.5, SemMax: 0.5}
	for trial := 0; trial < 500; trial++ {
		n := 5 + r.Intn(30)
		y := randomWindow(r, n, 5)
		v := 5 + (r.Float64()-0.5)*2
		upper, lower := r.Float64()*3, r.Float64()*3
		wide := Known(xs(n), y, known(t, v, upper, lower), o)
		for _, f := range []float64{0.75, 0.5, 0.1, 0} {
			narrow := Known(xs(n), y, known(t, v, upper*f, lower*f), o)
			if narrow {
				assert.True(t, wide, "narrower limits accepted a window wider limits rejected")
			}
		}
	}
}

func TestScanOneWindow(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	y := []float64{9, 1, 1, 1, 1, 9}
	got := ScanUnknown(x, y, 3, 0.1, defaults())
	assert.Equal(t, []Plateau{{Start: 1, End: 3}, {Start: 2, End: 4}}, got)

	assert.Nil(t, ScanUnknown(x, y, 7, 0.1, defaults()))
	assert.Nil(t, ScanOneWindow(x, y, 0, func(_, _ []float64) bool { return true }))
	assert.Len(t, ScanOneWindow(x, y, 6, func(_, _ []float64) bool { return true }), 1)
}

func TestScanKnown(t *testing.T) {
	x := xs(8)
	y := []float64{50, 50, 50, 50, 5, 5, 5, 5}
	got := ScanKnown(x, y, 4, known(t, 5, 2, 2), defaults())
	assert.Equal(t, []Plateau{{Start: 4, End: 7}}, got)
}

func TestScanTwoWindows(t *testing.T) {
	x := xs(6)
	y := []float64{1, 1, 2, 2, 3, 3}
	sameMean := func(a, b []float64) bool {
		return Describe(xs(len(a)), a).Mean == Describe(xs(len(b)), b).Mean
	}
	assert.Nil(t, ScanTwoWindows(x, y, 2, sameMean))

	var calls [][2][]float64
	got := ScanTwoWindows(x, y, 2, func(a, b []float64) bool {
		calls = append(calls, [2][]float64{a, b})
		return a[1] == 1
	})
	assert.Equal(t, []Plateau{{Start: 0, End: 3}}, got)
	assert.Len(t, calls, 3)
	assert.Equal(t, []float64{2, 2}, calls[0][1])
}
