package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the tracker's Prometheus registry and instruments.
type Collector struct {
	reg *prometheus.Registry

	ActiveJourneys prometheus.Gauge

	UpdatesProcessed *prometheus.CounterVec // status label
	UpdateErrors     prometheus.Counter

	InteractionsSent      prometheus.Counter
	InteractionsCancelled prometheus.Counter
	InteractionsFailed    prometheus.Counter

	UpdateDuration prometheus.Histogram
}

// NewCollector builds and registers the tracking instruments.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveJourneys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triptracker_active_journeys",
			Help: "Number of journeys currently being tracked.",
		}),
		UpdatesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triptracker_updates_total",
			Help: "Position updates processed, by computed trip status.",
		}, []string{"status"}),
		UpdateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triptracker_update_errors_total",
			Help: "Position updates rejected with an error.",
		}),
		InteractionsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triptracker_interactions_sent_total",
			Help: "External interactions dispatched.",
		}),
		InteractionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triptracker_interactions_cancelled_total",
			Help: "External interactions superseded by a cancel.",
		}),
		InteractionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triptracker_interactions_failed_total",
			Help: "External interaction calls that failed or timed out.",
		}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triptracker_update_duration_seconds",
			Help:    "Duration of one position update computation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	reg.MustRegister(
		c.ActiveJourneys,
		c.UpdatesProcessed, c.UpdateErrors,
		c.InteractionsSent, c.InteractionsCancelled, c.InteractionsFailed,
		c.UpdateDuration,
	)
	return c
}

// Handler exposes the registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
