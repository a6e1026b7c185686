package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alarm_console"

// Label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"

	PushInserted  = "inserted"
	PushDuplicate = "duplicate"

	PhaseNotify = "notify"
	PhaseCommit = "commit"
)

// Metrics holds the console collectors.
type Metrics struct {
	transitions     *prometheus.CounterVec
	sagaFailures    *prometheus.CounterVec
	stopAlertErrors prometheus.Counter
	pushEvents      *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	evictions       prometheus.Counter
	activeAlarms    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Alarm transitions by action and result",
			},
			[]string{"action", "result"},
		),
		sagaFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_saga_failures_total",
				Help:      "Guard notification failures by phase",
			},
			[]string{"phase"},
		),
		stopAlertErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stop_alert_errors_total",
				Help:      "Failed best-effort speaker stop calls",
			},
		),
		pushEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_events_total",
				Help:      "Pushed alarms by merge outcome",
			},
			[]string{"outcome"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Paginated alarm fetches by result",
			},
			[]string{"result"},
		),
		evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "active_evictions_total",
				Help:      "Active alarms dropped by a first page refresh",
			},
		),
		activeAlarms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_alarms",
				Help:      "Alarms currently in the active partition",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.transitions,
		m.sagaFailures,
		m.stopAlertErrors,
		m.pushEvents,
		m.fetches,
		m.evictions,
		m.activeAlarms,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// Transition counts a finished transition attempt.
func (m *Metrics) Transition(action, result string) {
	if m == nil {
		return
	}

	m.transitions.WithLabelValues(action, result).Inc()
}

// SagaFailure counts a failed notify saga phase.
func (m *Metrics) SagaFailure(phase string) {
	if m == nil {
		return
	}

	m.sagaFailures.WithLabelValues(phase).Inc()
}

// StopAlertError counts a failed speaker stop.
func (m *Metrics) StopAlertError() {
	if m == nil {
		return
	}

	m.stopAlertErrors.Inc()
}

// Push counts a pushed alarm by whether the registry inserted it.
func (m *Metrics) Push(inserted bool) {
	if m == nil {
		return
	}

	outcome := PushDuplicate
	if inserted {
		outcome = PushInserted
	}

	m.pushEvents.WithLabelValues(outcome).Inc()
}

// Fetch counts a page fetch by result.
func (m *Metrics) Fetch(err error) {
	if m == nil {
		return
	}

	result := ResultSuccess
	if err != nil {
		result = ResultError
	}

	m.fetches.WithLabelValues(result).Inc()
}

// Evicted counts active alarms dropped by a page-1 refresh.
func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.evictions.Add(float64(n))
}

// ActiveAlarms sets the active partition size.
func (m *Metrics) ActiveAlarms(n int) {
	if m == nil {
		return
	}

	m.activeAlarms.Set(float64(n))
}
