// Package metrics provides Prometheus metrics for the review ranking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets covers sub-millisecond folds up to multi-second syncs.
var latencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager owns every metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Aggregation
	rowsIngested        prometheus.Counter
	aggregations        *prometheus.CounterVec
	aggregationDuration prometheus.Histogram
	aggregatedApps      prometheus.Gauge
	aggregatedReviewers prometheus.Gauge
	duplicatesFlagged   prometheus.Gauge

	// Sync pipeline
	syncRequests  *prometheus.CounterVec
	syncRuns      *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	platformPages prometheus.Counter
	platformRetry prometheus.Counter

	// Leaderboard storage
	leaderboardEntries prometheus.Gauge
	leaderboardWrites  *prometheus.CounterVec
	repositoryLatency  *prometheus.HistogramVec

	// Queue and workers
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueRejections *prometheus.CounterVec
	workerCount     prometheus.Gauge
	workerLatency   prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// Process
	memoryBytes prometheus.Gauge
	goroutines  prometheus.Gauge
	gcPause     prometheus.Histogram
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served on /healthz

var globalManager = NewManager(WithPrometheusRegistry(customRegistry)) //nolint:gochecknoglobals // package-level recorders

// NewManager creates and registers a metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "reviewrank",
		subsystem:        "engine",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) register() {
	m.rowsIngested = m.counter("rows_ingested_total", "Scoring rows accepted through intake")
	m.aggregations = m.counterVec("aggregations_total", "Aggregation runs by mode", "mode")
	m.aggregationDuration = m.histogram("aggregation_duration_milliseconds", "Aggregation run duration")
	m.aggregatedApps = m.gauge("aggregated_apps", "Applications in the last aggregation")
	m.aggregatedReviewers = m.gauge("aggregated_reviewers", "Reviewers in the last aggregation")
	m.duplicatesFlagged = m.gauge("duplicates_flagged", "Suspected duplicate pairs in the last aggregation")

	m.syncRequests = m.counterVec("sync_requests_total", "Sync requests by admission result", "result")
	m.syncRuns = m.counterVec("sync_runs_total", "Completed sync runs by outcome", "outcome")
	m.syncDuration = m.histogram("sync_duration_milliseconds", "Sync run duration")
	m.platformPages = m.counter("platform_pages_fetched_total", "Pages fetched from the grant platform")
	m.platformRetry = m.counter("platform_retries_total", "Retried grant platform requests")

	m.leaderboardEntries = m.gauge("leaderboard_entries", "Stored leaderboard entries")
	m.leaderboardWrites = m.counterVec("leaderboard_writes_total", "Leaderboard entries written by mode", "mode")
	m.repositoryLatency = m.histogramVec("repository_query_duration_milliseconds", "Repository operation duration", "operation")

	m.queueSize = m.gauge("queue_size", "Pending sync requests")
	m.queueCapacity = m.gauge("queue_capacity", "Sync queue capacity")
	m.queueRejections = m.counterVec("queue_rejections_total", "Sync requests the queue refused", "reason")
	m.workerCount = m.gauge("worker_count", "Sync workers running")
	m.workerLatency = m.histogram("worker_processing_duration_milliseconds", "Time a worker spends on one request")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.memoryBytes = m.gauge("memory_alloc_bytes", "Heap bytes allocated")
	m.goroutines = m.gauge("goroutines", "Running goroutines")
	m.gcPause = m.histogram("gc_pause_milliseconds", "Average GC pause per sample")
}

// RecordRowsIngested adds n accepted rows.
func RecordRowsIngested(n int) { globalManager.rowsIngested.Add(float64(n)) }

// RecordAggregation records one aggregation run and its result sizes.
func RecordAggregation(mode string, durationMs float64, apps, reviewers int) {
	globalManager.aggregations.WithLabelValues(mode).Inc()
	globalManager.aggregationDuration.Observe(durationMs)
	globalManager.aggregatedApps.Set(float64(apps))
	globalManager.aggregatedReviewers.Set(float64(reviewers))
}

// UpdateDuplicatesFlagged sets the duplicate pair count.
func UpdateDuplicatesFlagged(n int) { globalManager.duplicatesFlagged.Set(float64(n)) }

// RecordSyncRequest counts a sync request by result: accepted, duplicate or backpressure.
func RecordSyncRequest(result string) { globalManager.syncRequests.WithLabelValues(result).Inc() }

// RecordSyncRun records a finished sync run.
func RecordSyncRun(outcome string, durationMs float64) {
	globalManager.syncRuns.WithLabelValues(outcome).Inc()
	globalManager.syncDuration.Observe(durationMs)
}

// RecordPlatformPage counts one fetched page.
func RecordPlatformPage() { globalManager.platformPages.Inc() }

// RecordPlatformRetry counts one retried request.
func RecordPlatformRetry() { globalManager.platformRetry.Inc() }

// UpdateLeaderboardEntries sets the stored entry count.
func UpdateLeaderboardEntries(n int) { globalManager.leaderboardEntries.Set(float64(n)) }

// RecordLeaderboardWrites adds n written entries under mode (upsert or replace).
func RecordLeaderboardWrites(mode string, n int) {
	globalManager.leaderboardWrites.WithLabelValues(mode).Add(float64(n))
}

// RecordRepositoryLatency observes one repository operation.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateQueueSize sets the pending request count.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueRejection counts a refused enqueue.
func RecordQueueRejection(reason string) { globalManager.queueRejections.WithLabelValues(reason).Inc() }

// UpdateWorkerCount sets the running worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes one processed request.
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes one HTTP request.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry the package-level recorders use.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.memoryBytes.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) { globalManager.goroutines.Set(float64(n)) }

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(ms float64) { globalManager.gcPause.Observe(ms) }
