package monitoring

import (
	"math"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarchlab/tempora/sim/de"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/manager"
	"github.com/sarchlab/tempora/sim/modal"
	"github.com/sarchlab/tempora/sim/process"
)

// Metrics is a hook that exports execution counters to Prometheus. Attach
// it to directors and to the manager.
type Metrics struct {
	registry *prometheus.Registry

	firings     *prometheus.CounterVec
	misses      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	iterations  prometheus.Counter
	changes     *prometheus.CounterVec
	modelTime   prometheus.Gauge
	queueLength *prometheus.GaugeVec

	lastTime atomic.Uint64
}

// NewMetrics creates the collectors in a registry of their own.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tempora"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.firings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "firings_total",
			Help:      "Number of actor firings.",
		},
		[]string{"actor"},
	)

	m.misses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadline_misses_total",
			Help:      "Number of events dispatched after their deadline.",
		},
		[]string{"actor"},
	)

	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "modal",
			Name:      "transitions_total",
			Help:      "Number of committed mode transitions.",
		},
		[]string{"model", "to"},
	)

	m.dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "modal",
			Name:      "transitions_dropped_total",
			Help:      "Number of transitions dropped while another was pending.",
		},
		[]string{"model"},
	)

	m.iterations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "iterations_total",
			Help:      "Number of completed iterations of the top level.",
		},
	)

	m.changes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "change_requests_total",
			Help:      "Number of change requests by outcome.",
		},
		[]string{"outcome"},
	)

	m.modelTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_time_seconds",
			Help:      "Model time of the latest firing.",
		},
	)

	m.queueLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_length",
			Help:      "Events waiting in the queue of a DE director.",
		},
		[]string{"director"},
	)

	m.registry.MustRegister(
		m.firings,
		m.misses,
		m.transitions,
		m.dropped,
		m.iterations,
		m.changes,
		m.modelTime,
		m.queueLength,
		prometheus.NewGoCollector(),
	)

	return m
}

// Attach registers the metrics hook with every domain.
func (m *Metrics) Attach(domains ...hooking.Hookable) {
	for _, d := range domains {
		d.AcceptHook(m)
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ModelTime returns the time of the latest firing seen, in seconds.
func (m *Metrics) ModelTime() float64 {
	return math.Float64frombits(m.lastTime.Load())
}

// Func updates the collectors.
func (m *Metrics) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case de.HookPosAfterFire, process.HookPosBeforeFire:
		m.firings.WithLabelValues(nameOf(ctx.Item)).Inc()

		if ctx.Pos == de.HookPosAfterFire {
			t := ctx.Tag.Time.Seconds()
			m.lastTime.Store(math.Float64bits(t))
			m.modelTime.Set(t)
		}

		if d, ok := ctx.Domain.(*de.Director); ok {
			m.queueLength.WithLabelValues(d.Name()).Set(float64(d.Queue().Len()))
		}
	case de.HookPosDeadlineMissed:
		m.misses.WithLabelValues(nameOf(ctx.Item)).Inc()
	case modal.HookPosModeTransition:
		t, _ := ctx.Detail.(modal.Transition)
		m.transitions.WithLabelValues(nameOf(ctx.Item), t.To).Inc()
	case modal.HookPosTransitionDropped:
		m.dropped.WithLabelValues(nameOf(ctx.Item)).Inc()
	case manager.HookPosAfterIteration:
		m.iterations.Inc()
	case manager.HookPosChangeExecuted:
		outcome := "executed"
		if err, _ := ctx.Detail.(error); err != nil {
			outcome = "failed"
		}

		m.changes.WithLabelValues(outcome).Inc()
	case manager.HookPosChangeDiscarded:
		m.changes.WithLabelValues("discarded").Inc()
	}
}

type fullNamer interface {
	FullName() string
}

type namer interface {
	Name() string
}

func nameOf(v any) string {
	switch n := v.(type) {
	case fullNamer:
		return n.FullName()
	case namer:
		return n.Name()
	default:
		return "unknown"
	}
}
