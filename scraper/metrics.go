package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper and dispatcher.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	EntriesListed   prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	ParseEmptyTotal prometheus.Counter
	DispatchTotal   *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kym_requests_total",
			Help: "Total HTTP requests issued, by operation phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kym_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	entries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kym_entries_listed_total",
			Help: "Total number of listing entries returned to callers.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kym_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kym_errors_total",
			Help: "Total number of failed operations by error type.",
		},
		[]string{"error_type"},
	)
	parseEmpty := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kym_parse_empty_total",
			Help: "Listing pages that yielded no entries.",
		},
	)
	dispatch := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kym_dispatch_total",
			Help: "Dispatched operations by name and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	registry.MustRegister(requests, requestDuration, entries, retries, errorsTotal, parseEmpty, dispatch)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		EntriesListed:   entries,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		ParseEmptyTotal: parseEmpty,
		DispatchTotal:   dispatch,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddEntries adds n to the listed entries counter.
func (m *Metrics) AddEntries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EntriesListed.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncParseEmpty counts a listing page that produced no entries.
func (m *Metrics) IncParseEmpty() {
	if m == nil {
		return
	}
	m.ParseEmptyTotal.Inc()
}

// IncDispatch counts one dispatched call.
func (m *Metrics) IncDispatch(operation, outcome string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(operation, outcome).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format, for the node exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
