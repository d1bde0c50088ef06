// Package metrics provides Prometheus metrics for the CFCC leaderboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Upstream request outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "status_error"
	OutcomeMalformed = "malformed"
)

// Board refresh outcomes.
const (
	RefreshSuccess   = "success"
	RefreshFailure   = "failure"
	RefreshDiscarded = "discarded"
)

// Manager owns every metric exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Upstream (scoring service and registry)
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamRecords  *prometheus.GaugeVec

	// Aggregation
	aggregationDuration *prometheus.HistogramVec
	registryParticipants prometheus.Gauge

	// Boards
	boardRefreshes       *prometheus.CounterVec
	boardRefreshDuration *prometheus.HistogramVec
	boardEntries         *prometheus.GaugeVec
	boardLastSuccessUnix *prometheus.GaugeVec
	boardStale           *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager from opts on a fresh registry and
// returns it. Call it once at startup, before anything records or serves
// GetRegistry. A WithPrometheusRegistry option is overridden.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(registry))
	customRegistry = registry
	globalManager = NewManager(opts...)
	return globalManager
}

// RefreshInterval is the global manager's gauge refresh period.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// metrics land on the default registerer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cfcc",
		subsystem:        "leaderboard",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.upstreamRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_requests_total"),
		Help:        "Requests issued to the scoring service and registry by source and outcome",
		ConstLabels: constLabels,
	}, []string{"source", "outcome"})

	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_request_duration_milliseconds"),
		Help:        "Upstream request latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"source"})

	m.upstreamRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_records"),
		Help:        "Records returned by the last successful upstream read",
		ConstLabels: constLabels,
	}, []string{"source"})

	m.aggregationDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("aggregation_duration_milliseconds"),
		Help:        "Time spent fetching and joining data for an aggregated view",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"view"})

	m.registryParticipants = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("registry_participants"),
		Help:        "Participants listed by the registry on the last overall aggregation",
		ConstLabels: constLabels,
	})

	m.boardRefreshes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("board_refreshes_total"),
		Help:        "Board refresh cycles by board and outcome",
		ConstLabels: constLabels,
	}, []string{"board", "outcome"})

	m.boardRefreshDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("board_refresh_duration_milliseconds"),
		Help:        "Board refresh duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"board"})

	m.boardEntries = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("board_entries"),
		Help:        "Entries held in the current board snapshot",
		ConstLabels: constLabels,
	}, []string{"board"})

	m.boardLastSuccessUnix = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("board_last_success_unix"),
		Help:        "Unix time of the last applied board snapshot",
		ConstLabels: constLabels,
	}, []string{"board"})

	m.boardStale = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("board_stale"),
		Help:        "1 when the board serves data older than its last failed refresh",
		ConstLabels: constLabels,
	}, []string{"board"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_errors_total"),
		Help:        "HTTP error responses by endpoint, method and error type",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("memory_usage_bytes"),
		Help:        "Heap bytes allocated",
		ConstLabels: constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("gc_pause_milliseconds"),
		Help:        "Average GC pause in milliseconds",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
		ConstLabels: constLabels,
	})
}

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauges are refreshed by background updaters.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Upstream

// RecordUpstreamRequest counts one upstream call and observes its latency.
func RecordUpstreamRequest(source, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.upstreamRequests.WithLabelValues(source, outcome).Inc()
	globalManager.upstreamLatency.WithLabelValues(source).Observe(latencyMs)
}

// UpdateUpstreamRecords sets the record count returned by a source.
func UpdateUpstreamRecords(source string, count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.upstreamRecords.WithLabelValues(source).Set(float64(count))
}

// Aggregation

// RecordAggregationDuration observes how long an aggregated view took to build.
func RecordAggregationDuration(view string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.aggregationDuration.WithLabelValues(view).Observe(durationMs)
}

// UpdateRegistryParticipants sets the registry participant gauge.
func UpdateRegistryParticipants(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.registryParticipants.Set(float64(count))
}

// Boards

// RecordBoardRefresh counts a refresh outcome and observes its duration.
func RecordBoardRefresh(board, outcome string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.boardRefreshes.WithLabelValues(board, outcome).Inc()
	if outcome != RefreshDiscarded {
		globalManager.boardRefreshDuration.WithLabelValues(board).Observe(durationMs)
	}
}

// UpdateBoardSnapshot records the size and time of an applied snapshot.
func UpdateBoardSnapshot(board string, entries int, at time.Time) {
	if !globalManager.enabled {
		return
	}
	globalManager.boardEntries.WithLabelValues(board).Set(float64(entries))
	globalManager.boardLastSuccessUnix.WithLabelValues(board).Set(float64(at.Unix()))
	globalManager.boardStale.WithLabelValues(board).Set(0)
}

// UpdateBoardStale flags a board as serving stale data.
func UpdateBoardStale(board string, stale bool) {
	if !globalManager.enabled {
		return
	}
	v := 0.0
	if stale {
		v = 1
	}
	globalManager.boardStale.WithLabelValues(board).Set(v)
}

// HTTP

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
