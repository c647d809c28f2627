// Package metrics exports event loop statistics to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

const namespace = "dirmon"

type PrometheusRecorder struct {
	registry *prometheus.Registry

	eventsDelivered *prometheus.CounterVec
	eventsDiscarded *prometheus.CounterVec
	loopsStarted    prometheus.Counter
	loopsFailed     prometheus.Counter
	activeWatches   prometheus.Gauge
}

var _ outbound.MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the monitor metrics, plus the Go runtime and
// process collectors, on a dedicated registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	r := &PrometheusRecorder{
		registry: reg,
		eventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "events_delivered_total",
			Help:      "Events handed to a watch callback, by action.",
		}, []string{"action"}),
		eventsDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "events_discarded_total",
			Help:      "Backend events dropped before dispatch, by reason.",
		}, []string{"reason"}),
		loopsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "event_loops_started_total",
			Help:      "Event loop goroutines started.",
		}),
		loopsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "event_loops_failed_total",
			Help:      "Event loops stopped by a backend failure.",
		}),
		activeWatches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "active_watches",
			Help:      "Directories currently watched.",
		}),
	}

	// zero series for every label value so dashboards see them from the start
	for _, name := range model.ActionAll.Names() {
		r.eventsDelivered.WithLabelValues(name)
	}
	for _, reason := range []string{
		outbound.DiscardUnknownWatch,
		outbound.DiscardUnsupported,
		outbound.DiscardFiltered,
		outbound.DiscardOverflow,
	} {
		r.eventsDiscarded.WithLabelValues(reason)
	}

	return r
}

func (r *PrometheusRecorder) EventDelivered(action model.Action) {
	r.eventsDelivered.WithLabelValues(model.ActionName(action)).Inc()
}

func (r *PrometheusRecorder) EventDiscarded(reason string) {
	r.eventsDiscarded.WithLabelValues(reason).Inc()
}

func (r *PrometheusRecorder) LoopStarted() {
	r.loopsStarted.Inc()
}

func (r *PrometheusRecorder) LoopFailed() {
	r.loopsFailed.Inc()
}

func (r *PrometheusRecorder) SetActiveWatches(n int) {
	r.activeWatches.Set(float64(n))
}

// Registry exposes the registry for additional collectors
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
