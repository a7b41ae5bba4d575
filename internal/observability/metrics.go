// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Monitor metrics
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	OpenPositions     prometheus.Gauge
	MintsPerCycle     prometheus.Gauge
	PriceFetchErrors  prometheus.Counter
	PricesFetched     prometheus.Counter

	// Decision metrics
	DecisionsTotal   *prometheus.CounterVec
	ExitsExecuted    *prometheus.CounterVec
	EvaluationErrors prometheus.Counter

	// Execution metrics
	VenueAttempts *prometheus.CounterVec
	VenueErrors   *prometheus.CounterVec
	QuoteLatency  *prometheus.HistogramVec
	SubmitLatency *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	LastExitExecuted    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "exit_engine"
	}

	return &Metrics{
		// Monitor metrics
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full evaluation pass in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "open_positions",
			Help:      "Number of open positions seen in the last cycle",
		}),
		MintsPerCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "distinct_mints",
			Help:      "Number of distinct token mints seen in the last cycle",
		}),
		PriceFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed price fetches",
		}),
		PricesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetches_total",
			Help:      "Total number of successful price fetches",
		}),

		// Decision metrics
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exits",
			Name:      "decisions_total",
			Help:      "Total number of exit decisions by action",
		}, []string{"action"}),
		ExitsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exits",
			Name:      "executed_total",
			Help:      "Total number of executed exits by reason",
		}, []string{"reason"}),
		EvaluationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exits",
			Name:      "evaluation_errors_total",
			Help:      "Total number of position evaluations that returned an error",
		}),

		// Execution metrics
		VenueAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "venue_attempts_total",
			Help:      "Total number of trade attempts by venue",
		}, []string{"venue"}),
		VenueErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "venue_errors_total",
			Help:      "Total number of venue failures by venue and error class",
		}, []string{"venue", "class"}),
		QuoteLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "quote_latency_seconds",
			Help:      "Quote round-trip latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue"}),
		SubmitLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "submit_latency_seconds",
			Help:      "Submit-to-confirmation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue"}),
		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last completed monitoring cycle",
		}),
		LastExitExecuted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_exit_executed_timestamp",
			Help:      "Unix timestamp of the last executed exit",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records a completed monitoring cycle.
func RecordCycle(status string, durationSeconds float64, openPositions, distinctMints int) {
	DefaultMetrics.CyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
	DefaultMetrics.OpenPositions.Set(float64(openPositions))
	DefaultMetrics.MintsPerCycle.Set(float64(distinctMints))
}

// RecordCycleSuccess marks the health timestamp for a clean cycle.
func RecordCycleSuccess(unixSeconds float64) {
	DefaultMetrics.LastSuccessfulCycle.Set(unixSeconds)
}

// RecordPriceFetch records the outcome of a price fetch.
func RecordPriceFetch(err error) {
	if err != nil {
		DefaultMetrics.PriceFetchErrors.Inc()
		return
	}
	DefaultMetrics.PricesFetched.Inc()
}

// RecordDecision increments the decision counter for an action.
func RecordDecision(action string) {
	DefaultMetrics.DecisionsTotal.WithLabelValues(action).Inc()
}

// RecordExit records an executed exit.
func RecordExit(reason string, unixSeconds float64) {
	DefaultMetrics.ExitsExecuted.WithLabelValues(reason).Inc()
	DefaultMetrics.LastExitExecuted.Set(unixSeconds)
}

// RecordEvaluationError increments the evaluation error counter.
func RecordEvaluationError() {
	DefaultMetrics.EvaluationErrors.Inc()
}

// RecordVenueAttempt increments the attempt counter for a venue.
func RecordVenueAttempt(venue string) {
	DefaultMetrics.VenueAttempts.WithLabelValues(venue).Inc()
}

// RecordVenueError records a venue failure by error class.
func RecordVenueError(venue, class string) {
	DefaultMetrics.VenueErrors.WithLabelValues(venue, class).Inc()
}

// RecordQuoteLatency records quote round-trip latency for a venue.
func RecordQuoteLatency(venue string, seconds float64) {
	DefaultMetrics.QuoteLatency.WithLabelValues(venue).Observe(seconds)
}

// RecordSubmitLatency records submit latency for a venue.
func RecordSubmitLatency(venue string, seconds float64) {
	DefaultMetrics.SubmitLatency.WithLabelValues(venue).Observe(seconds)
}
