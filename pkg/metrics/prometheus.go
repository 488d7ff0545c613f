// Package metrics provides Prometheus metrics for the PulseCoach service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the PulseCoach service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core Business Metrics - the coaching loop itself
	samplesProcessed     prometheus.Counter
	samplesRejected      prometheus.Counter
	compressionsDetected prometheus.Counter
	feedbackEmitted      *prometheus.CounterVec
	metronomeBeats       prometheus.Counter
	sessionQuality       prometheus.Histogram
	sessionsCompleted    prometheus.Counter

	// Operational Health Metrics
	activeSessions prometheus.Gauge
	wsClients      prometheus.Gauge
	rankedTrainees prometheus.Gauge

	// Dispatch Queue Metrics
	queueCapacity          prometheus.Gauge
	queueSize              prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Dispatch Worker Metrics
	workerActiveCount prometheus.Gauge
	dispatchLatency   prometheus.Histogram
	sinkErrors        prometheus.Counter

	// Ranking Store Metrics
	rankingUpdateLatency prometheus.Histogram
	rankingQueryLatency  prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorsByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "pulsecoach",
		subsystem:        "coach",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics registers every metric family with the configured registry.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	factory := promauto.With(m.registry)

	m.samplesProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "samples_processed_total",
		Help:        "Total pose samples accepted by the analysis engine",
		ConstLabels: m.customLabels,
	})

	m.samplesRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "samples_rejected_total",
		Help:        "Pose samples dropped for non-monotonic timestamps",
		ConstLabels: m.customLabels,
	})

	m.compressionsDetected = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "compressions_detected_total",
		Help:        "Compression events accepted into the sliding window",
		ConstLabels: m.customLabels,
	})

	m.feedbackEmitted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "feedback_emitted_total",
		Help:        "Coaching messages emitted, by category",
		ConstLabels: m.customLabels,
	}, []string{"category"})

	m.metronomeBeats = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "metronome_beats_total",
		Help:        "Metronome beats dispatched to sinks",
		ConstLabels: m.customLabels,
	})

	m.sessionQuality = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "session_quality_score",
		Help:        "Composite quality score of completed sessions (0-100)",
		Buckets:     prometheus.LinearBuckets(0, 10, 11),
		ConstLabels: m.customLabels,
	})

	m.sessionsCompleted = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "sessions_completed_total",
		Help:        "Coaching sessions stopped and summarized",
		ConstLabels: m.customLabels,
	})

	m.activeSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "active_sessions",
		Help:        "Currently running coaching sessions",
		ConstLabels: m.customLabels,
	})

	m.wsClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "ws_clients",
		Help:        "Connected WebSocket streaming clients",
		ConstLabels: m.customLabels,
	})

	m.rankedTrainees = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "ranked_trainees",
		Help:        "Trainees tracked by the ranking store",
		ConstLabels: m.customLabels,
	})

	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_queue_capacity",
		Help:        "Configured capacity of the signal dispatch queue",
		ConstLabels: m.customLabels,
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_queue_size",
		Help:        "Signals currently waiting in the dispatch queue",
		ConstLabels: m.customLabels,
	})

	m.queueUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_queue_utilization",
		Help:        "Dispatch queue fill ratio (0-1)",
		ConstLabels: m.customLabels,
	})

	m.queueEnqueueRate = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_enqueue_total",
		Help:        "Signals enqueued for dispatch",
		ConstLabels: m.customLabels,
	})

	m.queueDequeueRate = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_dequeue_total",
		Help:        "Signals handed to dispatch workers",
		ConstLabels: m.customLabels,
	})

	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_enqueue_errors_total",
		Help:        "Signals dropped on enqueue (backpressure or closed queue)",
		ConstLabels: m.customLabels,
	})

	m.queueProcessingLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_queue_latency_ms",
		Help:        "Enqueue latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})

	m.workerActiveCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_workers",
		Help:        "Active dispatch workers",
		ConstLabels: m.customLabels,
	})

	m.dispatchLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "dispatch_latency_ms",
		Help:        "Per-signal sink delivery latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})

	m.sinkErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "sink_errors_total",
		Help:        "Sink delivery failures",
		ConstLabels: m.customLabels,
	})

	m.rankingUpdateLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "ranking_update_latency_ms",
		Help:        "Ranking store write latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})

	m.rankingQueryLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "ranking_query_latency_ms",
		Help:        "Ranking store read latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "http_request_duration_ms",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "errors_total",
		Help:        "Errors by component and type",
		ConstLabels: m.customLabels,
	}, []string{"component", "type"})

	m.systemMemoryUsage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "system_memory_bytes",
		Help:        "Heap bytes currently allocated",
		ConstLabels: m.customLabels,
	})

	m.systemGoroutineCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "system_goroutines",
		Help:        "Current goroutine count",
		ConstLabels: m.customLabels,
	})

	m.systemGCPauseTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + "system_gc_pause_ms",
		Help:        "Average GC pause time in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
}

// Global helpers below mirror the manager's metric families. They all
// tolerate a disabled manager so call sites stay unconditional.

// RecordSampleProcessed increments the accepted-samples counter.
func RecordSampleProcessed() {
	if globalManager.enabled {
		globalManager.samplesProcessed.Inc()
	}
}

// RecordSampleRejected increments the rejected-samples counter.
func RecordSampleRejected() {
	if globalManager.enabled {
		globalManager.samplesRejected.Inc()
	}
}

// RecordCompressionDetected increments the detected-compressions counter.
func RecordCompressionDetected() {
	if globalManager.enabled {
		globalManager.compressionsDetected.Inc()
	}
}

// RecordFeedbackEmitted increments the feedback counter for a category.
func RecordFeedbackEmitted(category string) {
	if globalManager.enabled {
		globalManager.feedbackEmitted.WithLabelValues(category).Inc()
	}
}

// RecordMetronomeBeat increments the beat counter.
func RecordMetronomeBeat() {
	if globalManager.enabled {
		globalManager.metronomeBeats.Inc()
	}
}

// ObserveSessionQuality records a completed session's quality score.
func ObserveSessionQuality(quality float64) {
	if globalManager.enabled {
		globalManager.sessionQuality.Observe(quality)
		globalManager.sessionsCompleted.Inc()
	}
}

// UpdateActiveSessions sets the running-session gauge.
func UpdateActiveSessions(count int) {
	if globalManager.enabled {
		globalManager.activeSessions.Set(float64(count))
	}
}

// UpdateWSClients sets the connected-WebSocket-clients gauge.
func UpdateWSClients(count int) {
	if globalManager.enabled {
		globalManager.wsClients.Set(float64(count))
	}
}

// UpdateRankedTrainees sets the ranking store size gauge.
func UpdateRankedTrainees(count int) {
	if globalManager.enabled {
		globalManager.rankedTrainees.Set(float64(count))
	}
}

// UpdateQueueCapacity sets the dispatch queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueSize sets the dispatch queue size gauge.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueUtilization sets the dispatch queue fill ratio gauge.
func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueueRate.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeueRate.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue-error counter.
func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency records enqueue latency in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.queueProcessingLatency.Observe(latencyMs)
	}
}

// UpdateWorkerActiveCount sets the dispatch worker gauge.
func UpdateWorkerActiveCount(count int) {
	if globalManager.enabled {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// RecordDispatchLatency records sink delivery latency in milliseconds.
func RecordDispatchLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.dispatchLatency.Observe(latencyMs)
	}
}

// RecordSinkError increments the sink failure counter.
func RecordSinkError() {
	if globalManager.enabled {
		globalManager.sinkErrors.Inc()
	}
}

// RecordRankingUpdateLatency records store write latency in milliseconds.
func RecordRankingUpdateLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.rankingUpdateLatency.Observe(latencyMs)
	}
}

// RecordRankingQueryLatency records store read latency in milliseconds.
func RecordRankingQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.rankingQueryLatency.Observe(latencyMs)
	}
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the heap usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records an average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom registry used for exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
