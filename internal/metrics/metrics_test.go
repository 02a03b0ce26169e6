package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/series"
)

func TestObserveUpdate(t *testing.T) {
	before := testutil.ToFloat64(samplesTotal)

	ObserveUpdate(monitor.Update{
		Appended: true,
		Sample:   series.Sample{Raw: 12, Normalized: 150},
		State:    monitor.Stable,
		Event:    monitor.EventChangedToStable,
	})
	ObserveUpdate(monitor.Update{Appended: false})

	assert.Equal(t, before+1, testutil.ToFloat64(samplesTotal))
	assert.Equal(t, 150.0, testutil.ToFloat64(turbidityValue.WithLabelValues("normalized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(stateGauge.WithLabelValues("stable")))
	assert.Equal(t, 0.0, testutil.ToFloat64(stateGauge.WithLabelValues("unstable")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(eventsTotal.WithLabelValues("changed_to_stable")), 1.0)
}

func TestFailure(t *testing.T) {
	before := testutil.ToFloat64(failuresTotal.WithLabelValues(StagePersist))
	Failure(StagePersist)
	assert.Equal(t, before+1, testutil.ToFloat64(failuresTotal.WithLabelValues(StagePersist)))
}
