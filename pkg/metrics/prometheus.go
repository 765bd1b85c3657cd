// Package metrics provides Prometheus metrics for the rank companion service.
package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ingest Metrics - snapshot batches from the collector
	batchesApplied     *prometheus.CounterVec
	batchErrors        prometheus.Counter
	placementsIngested prometheus.Counter
	bestImprovements   prometheus.Counter
	applyLatency       prometheus.Histogram
	storedSnapshots    prometheus.Gauge
	partialCategories  *prometheus.CounterVec

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Zone Metrics - competitive zone rebuilds
	rebuilds          *prometheus.CounterVec
	rebuildDuration   prometheus.Histogram
	rebuildLastUnix   prometheus.Gauge
	zoneSize          prometheus.Gauge
	zoneMovements     *prometheus.CounterVec
	zoneCommitRetries prometheus.Counter
	rankerRuns        *prometheus.CounterVec
	rankerCandidates  prometheus.Histogram
	rankerLatency     prometheus.Histogram

	// Lookup Metrics
	lookups         *prometheus.CounterVec
	slowPathLatency prometheus.Histogram
	slowPathShared  prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rrcompanion",
		subsystem:        "",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.batchesApplied = m.counterVec("batches_applied_total", "Snapshot batches applied to the store by category", "category")
	m.batchErrors = m.counter("batch_errors_total", "Snapshot batches rejected by the store")
	m.placementsIngested = m.counter("placements_ingested_total", "Leaderboard placements ingested")
	m.bestImprovements = m.counter("best_position_improvements_total", "Best-position records improved")
	m.applyLatency = m.histogram("apply_latency_milliseconds", "Time to apply one batch and publish a view", m.histogramBuckets)
	m.storedSnapshots = m.gauge("stored_snapshots", "Snapshot batches retained in memory")
	m.partialCategories = m.counterVec("partial_category_total",
		"Lookups that used a category snapshot older than the newest one", "category")

	m.queueSize = m.gauge("queue_size", "Current size of the batch queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum batch queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Batch queue utilization ratio (0-1)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Batches enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Batches dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Batches rejected on enqueue (backpressure or closed queue)")

	m.workerCount = m.gauge("worker_count", "Configured ingest workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Ingest workers currently applying a batch")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker time per batch in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Batches a worker failed to apply")

	m.rebuilds = m.counterVec("zone_rebuilds_total", "Competitive zone rebuilds by result", "result")
	m.rebuildDuration = m.histogram("zone_rebuild_duration_milliseconds", "Competitive zone rebuild duration",
		[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
	m.rebuildLastUnix = m.gauge("zone_rebuild_last_unixtime", "Unix time of the last committed zone generation")
	m.zoneSize = m.gauge("zone_entries", "Entries in the committed zone generation")
	m.zoneMovements = m.counterVec("zone_movements_total", "Zone entry movements by kind", "move")
	m.zoneCommitRetries = m.counter("zone_commit_retries_total", "Zone commits retried after a transaction conflict")
	m.rankerRuns = m.counterVec("ranker_runs_total", "Tournament ranker runs by mode", "mode")
	m.rankerCandidates = m.histogram("ranker_candidates", "Candidates per tournament ranker run",
		[]float64{10, 25, 50, 100, 200, 300, 500, 1000})
	m.rankerLatency = m.histogram("ranker_latency_milliseconds", "Tournament ranker run time", m.histogramBuckets)

	m.lookups = m.counterVec("lookups_total", "Position lookups by result kind", "kind")
	m.slowPathLatency = m.histogram("slow_path_latency_milliseconds", "Uncached position computation time", m.histogramBuckets)
	m.slowPathShared = m.counter("slow_path_shared_total", "Slow path lookups answered by an in-flight computation")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds (user experience)",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// Ingest Metrics Functions.

// RecordBatchApplied records a batch applied to the store.
func RecordBatchApplied(category string, placements int, took time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.batchesApplied.WithLabelValues(category).Inc()
	globalManager.placementsIngested.Add(float64(placements))
	globalManager.applyLatency.Observe(ms(took))
}

// RecordBatchError increments the rejected batch counter.
func RecordBatchError() {
	if globalManager.enabled {
		globalManager.batchErrors.Inc()
	}
}

// RecordBestImprovements adds to the best-position improvements counter.
func RecordBestImprovements(n int) {
	if globalManager.enabled && n > 0 {
		globalManager.bestImprovements.Add(float64(n))
	}
}

// UpdateStoredSnapshots sets the number of retained snapshot batches.
func UpdateStoredSnapshots(n int) {
	if globalManager.enabled {
		globalManager.storedSnapshots.Set(float64(n))
	}
}

// RecordPartialCategory counts a lookup served from an older category snapshot.
func RecordPartialCategory(category string) {
	if globalManager.enabled {
		globalManager.partialCategories.WithLabelValues(category).Inc()
	}
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	if globalManager.enabled {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(took time.Duration) {
	if globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(ms(took))
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// Zone Metrics Functions.

// RecordRebuild records a rebuild attempt. result is "ok", "failed" or "skipped".
func RecordRebuild(result string, took time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.rebuilds.WithLabelValues(result).Inc()
	if result != "skipped" {
		globalManager.rebuildDuration.Observe(ms(took))
	}
}

// RecordGeneration records a committed zone generation.
func RecordGeneration(entries int, builtAt time.Time, moves map[string]int) {
	if !globalManager.enabled {
		return
	}
	globalManager.zoneSize.Set(float64(entries))
	globalManager.rebuildLastUnix.Set(float64(builtAt.Unix()))
	for mv, n := range moves {
		globalManager.zoneMovements.WithLabelValues(mv).Add(float64(n))
	}
}

// RecordZoneCommitRetry increments the zone commit retry counter.
func RecordZoneCommitRetry() {
	if globalManager.enabled {
		globalManager.zoneCommitRetries.Inc()
	}
}

// RecordRankerRun records one tournament ranker run.
func RecordRankerRun(candidates int, parallel bool, took time.Duration) {
	if !globalManager.enabled {
		return
	}
	mode := "sequential"
	if parallel {
		mode = "parallel"
	}
	globalManager.rankerRuns.WithLabelValues(mode).Inc()
	globalManager.rankerCandidates.Observe(float64(candidates))
	globalManager.rankerLatency.Observe(ms(took))
}

// Lookup Metrics Functions.

// RecordLookup counts a position lookup by result kind.
func RecordLookup(kind string) {
	if globalManager.enabled {
		globalManager.lookups.WithLabelValues(kind).Inc()
	}
}

// RecordSlowPath records an uncached computation. shared marks callers that
// joined a computation already in flight.
func RecordSlowPath(took time.Duration, shared bool) {
	if !globalManager.enabled {
		return
	}
	if shared {
		globalManager.slowPathShared.Inc()
		return
	}
	globalManager.slowPathLatency.Observe(ms(took))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request and its duration in milliseconds.
func RecordHTTPRequest(endpoint, method string, status int, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	code := strconv.Itoa(status)
	globalManager.httpRequests.WithLabelValues(endpoint, method, code).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, code).Observe(durationMs)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System Metrics Functions.

// CollectSystem samples heap usage and goroutine count.
func CollectSystem() {
	if !globalManager.enabled {
		return
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	globalManager.systemMemoryUsage.Set(float64(mem.HeapInuse))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
