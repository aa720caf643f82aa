// Package metrics provides Prometheus metrics for the dank time bot.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the bot exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Game metrics
	messagesProcessed  prometheus.Counter
	messagesStale      prometheus.Counter
	messagesDuplicate  prometheus.Counter
	pointsAwarded      prometheus.Counter
	pointsDeducted     prometheus.Counter
	scoreChanges       *prometheus.CounterVec
	leaderboards       *prometheus.CounterVec
	leaderboardResets  prometheus.Counter
	randomTimesCreated prometheus.Counter
	activeChats        prometheus.Gauge

	// Intake metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter

	// Store metrics
	storeLatency *prometheus.HistogramVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "danktime",
		subsystem:        "bot",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.messagesProcessed = m.counter("messages_processed_total", "Total number of chat messages run through a chat")
	m.messagesStale = m.counter("messages_stale_total", "Total number of messages dropped for being older than a minute")
	m.messagesDuplicate = m.counter("messages_duplicate_total", "Total number of redelivered transport messages dropped")
	m.pointsAwarded = m.counter("points_awarded_total", "Sum of all positive score changes")
	m.pointsDeducted = m.counter("points_deducted_total", "Sum of all negative score changes, as a positive number")
	m.scoreChanges = m.counterVec("score_changes_total", "Score changes by reason", "reason")
	m.leaderboards = m.counterVec("leaderboards_rendered_total", "Leaderboards rendered", "final")
	m.leaderboardResets = m.counter("leaderboard_resets_total", "Confirmed leaderboard resets")
	m.randomTimesCreated = m.counter("random_times_generated_total", "Random dank times generated")
	m.activeChats = m.gauge("active_chats", "Number of chats currently loaded")

	m.queueSize = m.gauge("queue_size", "Current number of queued messages")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of messages enqueued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")

	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Time spent handling one message including replies",
		Buckets:   m.histogramBuckets,
	})
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_operation_latency_milliseconds",
		Help:      "Snapshot store latency by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordMessageProcessed increments the processed messages counter.
func RecordMessageProcessed() { globalManager.messagesProcessed.Inc() }

// RecordMessageStale increments the stale messages counter.
func RecordMessageStale() { globalManager.messagesStale.Inc() }

// RecordMessageDuplicate increments the duplicate messages counter.
func RecordMessageDuplicate() { globalManager.messagesDuplicate.Inc() }

// RecordScoreChange records a score delta under the given reason.
func RecordScoreChange(reason string, delta int) {
	globalManager.scoreChanges.WithLabelValues(reason).Inc()
	switch {
	case delta > 0:
		globalManager.pointsAwarded.Add(float64(delta))
	case delta < 0:
		globalManager.pointsDeducted.Add(float64(-delta))
	}
}

// RecordLeaderboardRendered counts a rendered leaderboard.
func RecordLeaderboardRendered(final bool) {
	globalManager.leaderboards.WithLabelValues(strconv.FormatBool(final)).Inc()
}

// RecordLeaderboardReset counts a confirmed reset.
func RecordLeaderboardReset() { globalManager.leaderboardResets.Inc() }

// RecordRandomDankTimes adds n generated random dank times.
func RecordRandomDankTimes(n int) { globalManager.randomTimesCreated.Add(float64(n)) }

// UpdateActiveChats sets the number of loaded chats.
func UpdateActiveChats(n int) { globalManager.activeChats.Set(float64(n)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordStoreLatency records the latency of a snapshot store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the private Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
