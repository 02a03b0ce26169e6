package reference

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbidity-monitor/internal/errs"
)

func TestNew_AbsoluteAndRelative(t *testing.T) {
	r, err := New("dissolved", 5, Absolute(3), Relative(2))
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Lower())
	assert.Equal(t, 7.0, r.Upper())
	assert.Equal(t, 2.0, r.RelativeLower())

	assert.True(t, r.Good(3))
	assert.True(t, r.Good(7))
	assert.False(t, r.Good(7.01))
	assert.False(t, r.Good(2.99))
	assert.True(t, r.AllGood(4, 5, 6))
	assert.False(t, r.AllGood(4, 8))
}

func TestNew_Validation(t *testing.T) {
	_, err := New("x", 5, Limit{}, Relative(1))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = New("x", 5, Absolute(6), Relative(1))
	assert.ErrorIs(t, err, errs.ErrValidation, "lower bound above the value")

	_, err = New("x", 5, Relative(1), Absolute(4))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestNew_DefaultName(t *testing.T) {
	r, err := Symmetric("", 10, 1)
	require.NoError(t, err)
	assert.Len(t, r.Name(), 32)
	_, err = uuid.Parse(r.Name())
	assert.NoError(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	r, err := New("saturated", 80, Absolute(75), Absolute(90))
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"saturated","value":80,"relative_lower":5,"relative_upper":10}`, string(data))

	var back Reference
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
}
