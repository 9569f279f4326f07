package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report engine activity.
type Metrics struct {
	tasksActive   prometheus.Gauge
	taskOutcomes  *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	toolDuration  *prometheus.HistogramVec
	eventsEmitted *prometheus.CounterVec
	hitlRequests  *prometheus.CounterVec
}

var (
	defaultOnce   sync.Once
	sharedMetrics *Metrics
)

// Default returns the package-level metrics instance registered with the
// global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when the engine is instantiated
// multiple times.
func Default() *Metrics {
	defaultOnce.Do(func() {
		sharedMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNew constructs a Metrics instance using the provided registerer.
// Supply a fresh registry in tests that need unique metric names; any
// registration error panics, mirroring promauto semantics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	tasksActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aster",
		Subsystem: "engine",
		Name:      "tasks_active",
		Help:      "Number of tasks currently executing a step loop.",
	})
	taskOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aster",
		Subsystem: "engine",
		Name:      "task_outcomes_total",
		Help:      "Terminal task statuses.",
	}, []string{"status", "stop_reason"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aster",
		Subsystem: "engine",
		Name:      "step_duration_seconds",
		Help:      "Duration of each reasoning step by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	toolDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aster",
		Subsystem: "engine",
		Name:      "tool_invocation_duration_seconds",
		Help:      "Duration of tool invocations by result kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool", "result"})
	eventsEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aster",
		Subsystem: "engine",
		Name:      "events_emitted_total",
		Help:      "Execution events appended to the event log.",
	}, []string{"category"})
	hitlRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aster",
		Subsystem: "engine",
		Name:      "hitl_requests_total",
		Help:      "Human-in-the-loop requests by terminal status.",
	}, []string{"status"})

	m := &Metrics{
		tasksActive:   tasksActive,
		taskOutcomes:  taskOutcomes,
		stepDuration:  stepDuration,
		toolDuration:  toolDuration,
		eventsEmitted: eventsEmitted,
		hitlRequests:  hitlRequests,
	}

	for _, collector := range []prometheus.Collector{
		tasksActive, taskOutcomes, stepDuration, toolDuration, eventsEmitted, hitlRequests,
	} {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(err)
		}
	}

	return m
}

// TaskStarted marks a task loop entering execution.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksActive.Inc()
}

// TaskStopped marks a task loop leaving execution (terminal or suspended).
func (m *Metrics) TaskStopped() {
	if m == nil {
		return
	}
	m.tasksActive.Dec()
}

// TaskFinished records a terminal task outcome.
func (m *Metrics) TaskFinished(status, stopReason string) {
	if m == nil {
		return
	}
	m.taskOutcomes.WithLabelValues(status, stopReason).Inc()
}

// StepCompleted records a finished step.
func (m *Metrics) StepCompleted(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ToolInvoked records a tool call attempt.
func (m *Metrics) ToolInvoked(tool, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolDuration.WithLabelValues(tool, result).Observe(d.Seconds())
}

// EventEmitted counts an appended execution event.
func (m *Metrics) EventEmitted(category string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(category).Inc()
}

// HITLResolved records the terminal status of a human request.
func (m *Metrics) HITLResolved(status string) {
	if m == nil {
		return
	}
	m.hitlRequests.WithLabelValues(status).Inc()
}
