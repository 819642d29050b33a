// Package metrics exposes Prometheus collectors for page object steps.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/pagekit/api"
)

const namespace = "pagekit"

// Step outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Metrics are the collectors recorded by a run. A nil *Metrics records
// nothing.
type Metrics struct {
	StepDuration     *prometheus.HistogramVec
	Steps            *prometheus.CounterVec
	Navigations      prometheus.Histogram
	Screenshots      *prometheus.CounterVec
	TeardownWarnings prometheus.Counter
}

// New creates the collectors and registers them with reg, if reg is not
// nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of page object steps.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"step", "outcome"},
		),
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Page object steps by outcome.",
			},
			[]string{"step", "outcome"},
		),
		Navigations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "navigation_duration_seconds",
				Help:      "Time until the load event of a navigation.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Screenshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failure_screenshots_total",
				Help:      "Failure screenshots by result.",
			},
			[]string{"result"},
		),
		TeardownWarnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "teardown_warnings_total",
				Help:      "Session teardown steps that did not finish in time.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StepDuration, m.Steps, m.Navigations, m.Screenshots, m.TeardownWarnings)
	}
	return m
}

// Outcome classifies err as a step outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, api.ErrTimeout):
		return OutcomeTimeout
	}
	return OutcomeError
}

// ObserveStep records one step.
func (m *Metrics) ObserveStep(step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := Outcome(err)
	m.StepDuration.WithLabelValues(step, outcome).Observe(d.Seconds())
	m.Steps.WithLabelValues(step, outcome).Inc()
}

// ObserveNavigation records the load time of a navigation.
func (m *Metrics) ObserveNavigation(d time.Duration) {
	if m == nil {
		return
	}
	m.Navigations.Observe(d.Seconds())
}

// ScreenshotTaken counts a failure screenshot attempt.
func (m *Metrics) ScreenshotTaken(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Screenshots.WithLabelValues(result).Inc()
}

// TeardownWarning counts a teardown step that timed out.
func (m *Metrics) TeardownWarning() {
	if m == nil {
		return
	}
	m.TeardownWarnings.Inc()
}
