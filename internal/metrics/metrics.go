// Package metrics exposes prometheus instrumentation for the acquisition
// loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"turbidity-monitor/internal/monitor"
)

var (
	samplesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turbidity_samples_total",
			Help: "Total number of measurements appended to the series",
		},
	)

	turbidityValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbidity_value",
			Help: "Most recent turbidity measurement",
		},
		[]string{"kind"},
	)

	stateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbidity_state",
			Help: "1 for the current monitor state, 0 otherwise",
		},
		[]string{"state"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbidity_events_total",
			Help: "Total number of state events",
		},
		[]string{"event"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbidity_failures_total",
			Help: "Total number of failed tick stages",
		},
		[]string{"stage"},
	)

	tickDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turbidity_tick_duration_seconds",
			Help:    "Duration of one acquisition tick",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Failure stages.
const (
	StageCapture = "capture"
	StageMeasure = "measure"
	StagePersist = "persist"
	StageStore   = "store"
	StagePublish = "publish"
)

// ObserveUpdate records the outcome of one measurement.
func ObserveUpdate(u monitor.Update) {
	if !u.Appended {
		return
	}
	samplesTotal.Inc()
	turbidityValue.WithLabelValues("raw").Set(u.Sample.Raw)
	turbidityValue.WithLabelValues("normalized").Set(u.Sample.Normalized)
	SetState(u.State)
	if u.Event != monitor.EventNone {
		eventsTotal.WithLabelValues(string(u.Event)).Inc()
	}
}

// SetState marks st as the current state.
func SetState(st monitor.State) {
	for _, s := range monitor.States {
		v := 0.0
		if s == st {
			v = 1
		}
		stateGauge.WithLabelValues(string(s)).Set(v)
	}
}

// Failure counts a failed stage.
func Failure(stage string) {
	failuresTotal.WithLabelValues(stage).Inc()
}

// ObserveTick records how long a tick took.
func ObserveTick(seconds float64) {
	tickDurationSeconds.Observe(seconds)
}
