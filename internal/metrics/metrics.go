// Package metrics exposes planner cycle counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dynstack.ai/internal/planner"
)

const namespace = "dynstack"

type Metrics struct {
	reg *prometheus.Registry

	cycles      *prometheus.CounterVec
	expanded    prometheus.Histogram
	elapsed     prometheus.Histogram
	schedules   prometheus.Counter
	moves       prometheus.Counter
	defaulted   prometheus.Counter
	errors      prometheus.Counter
	indexDrops  prometheus.Gauge
	indexQueued prometheus.Gauge
}

// New registers the planner collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "cycles_total",
			Help:      "Planning cycles by outcome",
		}, []string{"outcome"}),
		expanded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "expanded_states",
			Help:      "Search states expanded per cycle",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
		}),
		elapsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one planning cycle",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		schedules: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "schedules_sent_total",
			Help:      "Crane schedules sent to the simulator",
		}),
		moves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "moves_sent_total",
			Help:      "Crane moves sent to the simulator",
		}),
		defaulted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "defaulted_priorities_total",
			Help:      "Blocks that fell back to the default priority",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "cycle_errors_total",
			Help:      "Planning cycles aborted with an error",
		}),
		indexDrops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "dropped_rows",
			Help:      "Index rows dropped because the writer queue was full",
		}),
		indexQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "queue_depth",
			Help:      "Index rows waiting for the writer",
		}),
	}
	reg.MustRegister(m.cycles, m.expanded, m.elapsed, m.schedules, m.moves, m.defaulted, m.errors, m.indexDrops, m.indexQueued)
	return m
}

// Observe records one finished cycle. sched is what was sent, if anything.
func (m *Metrics) Observe(rep planner.Report, sched int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.errors.Inc()
		return
	}
	m.cycles.WithLabelValues(string(rep.Outcome)).Inc()
	if rep.Outcome != planner.PhaseSkipped {
		m.expanded.Observe(float64(rep.Expanded))
	}
	m.elapsed.Observe(float64(rep.ElapsedUs) / 1e6)
	m.defaulted.Add(float64(rep.DefaultedPriorities))
	if sched > 0 {
		m.schedules.Inc()
		m.moves.Add(float64(sched))
	}
}

// SetIndex publishes the index writer backlog.
func (m *Metrics) SetIndex(dropped uint64, depth int) {
	if m == nil {
		return
	}
	m.indexDrops.Set(float64(dropped))
	m.indexQueued.Set(float64(depth))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
