package series

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbidity-monitor/internal/errs"
)

var t0 = time.Date(2024, 3, 1, 14, 5, 9, 123456000, time.Local)

func TestLayout_DefaultRoundTrip(t *testing.T) {
	l := NewLayout("")
	stamp := l.Format(t0)
	assert.Equal(t, "2024_03_01_14_05_09_123456", stamp)
	assert.Equal(t, DefaultLayout, l.String())

	parsed, err := l.Parse(stamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(t0))

	plain := NewLayout(time.RFC3339)
	assert.Equal(t, time.RFC3339, plain.String())
}

func TestAppend_DuplicateStampIsNoop(t *testing.T) {
	s := New(NewLayout(""))
	assert.True(t, s.Append(t0, 1, 10))
	assert.False(t, s.Append(t0.Add(100*time.Nanosecond), 2, 20), "same microsecond renders the same stamp")
	assert.Equal(t, 1, s.Len())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 10.0, last.Normalized)
}

func TestAppendRelative(t *testing.T) {
	s := New(NewLayout(""))
	s.now = func() time.Time { return t0 }

	added, err := s.AppendRelative(30, Seconds, 1, 1)
	require.NoError(t, err)
	require.True(t, added)
	first, _ := s.Last()
	assert.True(t, first.Time.Equal(t0), "offset is ignored on an empty series")

	for i, units := range []Units{Seconds, Minutes, Hours} {
		before, _ := s.Last()
		_, err := s.AppendRelative(1.5, units, float64(i), float64(i))
		require.NoError(t, err)
		after, _ := s.Last()
		unit, _ := units.Duration()
		assert.Equal(t, time.Duration(1.5*float64(unit)), after.Time.Sub(before.Time))
	}

	_, err = s.AppendRelative(1, Units("fortnights"), 0, 0)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestHeadTailDropTail(t *testing.T) {
	s := New(NewLayout(""))
	for i := 0; i < 5; i++ {
		s.Append(t0.Add(time.Duration(i)*time.Second), float64(i), float64(i*10))
	}

	assert.Len(t, s.Head(2), 2)
	assert.Equal(t, 0.0, s.Head(2)[0].Raw)
	assert.Equal(t, []float64{30, 40}, values(s.Tail(2)))
	assert.Len(t, s.Tail(99), 5)
	assert.Empty(t, s.Head(-1))

	assert.Equal(t, 2, s.DropTail(2))
	assert.Equal(t, []float64{0, 10, 20}, s.Normalized())
	assert.Equal(t, 3, s.DropTail(10))
	assert.Zero(t, s.Len())
}

func TestProjection(t *testing.T) {
	s := New(NewLayout(""))
	s.Append(t0, 0, 0)
	s.Append(t0.Add(90*time.Second), 0, 0)
	s.Append(t0.Add(3*time.Hour), 0, 0)

	secs, err := s.Projection(Seconds)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 90, 10800}, secs)

	mins, err := s.Projection(Minutes)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1.5, 180}, mins)

	hours, err := s.Projection(Hours)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.025, 3}, hours)
}

func TestWriteCSV(t *testing.T) {
	s := New(NewLayout(""))
	s.Append(t0, 120, 150)
	s.Append(t0.Add(time.Minute), 60, 75.5)

	var buf bytes.Buffer
	require.NoError(t, s.WriteCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"2024_03_01_14_05_09_123456", "0", "0", "0", "150"}, rows[1])
	assert.Equal(t, []string{"2024_03_01_14_06_09_123456", "60", "1", "0.016666666666666666", "75.5"}, rows[2])
}

func TestMapsRestore(t *testing.T) {
	s := New(NewLayout(""))
	for i := 0; i < 4; i++ {
		s.Append(t0.Add(time.Duration(i)*5*time.Second), float64(100+i), float64(50+i))
	}
	raw, norm := s.Maps()

	restored := New(NewLayout(""))
	require.NoError(t, restored.Restore(raw, norm))
	if diff := cmp.Diff(s.Samples(), restored.Samples()); diff != "" {
		t.Errorf("restored samples mismatch (-want +got):\n%s", diff)
	}

	delete(raw, s.Samples()[0].Stamp)
	assert.ErrorIs(t, restored.Restore(raw, norm), errs.ErrValidation)
	assert.ErrorIs(t, restored.Restore(nil, map[string]float64{"yesterday": 1}), errs.ErrValidation)
}

func TestRestore_RejectsOrphanRawValue(t *testing.T) {
	s := New(NewLayout(""))
	s.Append(t0, 100, 50)
	s.Append(t0.Add(5*time.Second), 101, 51)
	raw, norm := s.Maps()
	delete(norm, s.Samples()[1].Stamp)

	restored := New(NewLayout(""))
	restored.Append(t0, 7, 7)
	err := restored.Restore(raw, norm)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "no normalized value")
	assert.Equal(t, 1, restored.Len(), "a rejected restore leaves the series untouched")
	assert.Equal(t, 7.0, restored.Samples()[0].Raw)
}

func TestRestore_OrdersByTime(t *testing.T) {
	layout := NewLayout("")
	late, early := t0.Add(time.Minute), t0
	raw := map[string]float64{layout.Format(late): 2, layout.Format(early): 1}
	norm := map[string]float64{layout.Format(late): 20, layout.Format(early): 10}

	s := New(layout)
	require.NoError(t, s.Restore(raw, norm))
	got := s.Samples()
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].Normalized)
	assert.Equal(t, 20.0, got[1].Normalized)
}

func TestParseUnits(t *testing.T) {
	u, err := ParseUnits("min")
	require.NoError(t, err)
	assert.Equal(t, Minutes, u)

	_, err = ParseUnits("days")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func values(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Normalized
	}
	return out
}
