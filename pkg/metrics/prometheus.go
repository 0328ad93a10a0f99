// Package metrics provides Prometheus metrics for the evoked detection pipeline.
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

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Ingestion metrics
	samplesIngested prometheus.Counter
	samplesStale    prometheus.Counter
	bufferSpan      prometheus.Gauge
	bufferSamples   prometheus.Gauge

	// Event/synchronizer metrics
	eventsReceived  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	pendingEvents   prometheus.Gauge
	epochTimeouts   prometheus.Counter
	rangeRetries    prometheus.Counter

	// Extraction metrics
	epochsExtracted prometheus.Counter
	jitterExceeded  prometheus.Counter
	epochSamples    prometheus.Histogram

	// Detection metrics
	preprocessLatency prometheus.Histogram
	scoringLatency    prometheus.Histogram
	confidence        prometheus.Histogram
	detections        prometheus.Counter
	resultsPublished  prometheus.Counter
	publishErrors     prometheus.Counter

	// Clock metrics
	clockOffset *prometheus.GaugeVec

	// Queue/worker metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueueErrs prometheus.Counter
	workerCount      prometheus.Gauge
	workerErrors     prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "evoked",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric declarations are long by nature
	auto := promauto.With(m.registry)

	m.samplesIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_ingested_total",
		Help:      "Total number of samples appended to the ring buffer",
	})

	m.samplesStale = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_stale_total",
		Help:      "Total number of samples dropped for arriving past the out-of-order tolerance",
	})

	m.bufferSpan = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_span_seconds",
		Help:      "Time span currently covered by the ring buffer",
	})

	m.bufferSamples = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_samples",
		Help:      "Number of samples currently retained in the ring buffer",
	})

	m.eventsReceived = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_received_total",
			Help:      "Total number of stimulus events received by kind",
		},
		[]string{"kind"},
	)

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total number of duplicate stimulus events dropped",
	})

	m.pendingEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pending_events",
		Help:      "Number of events waiting for their epoch window to be covered",
	})

	m.epochTimeouts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "epoch_timeouts_total",
		Help:      "Total number of events abandoned because their window never filled",
	})

	m.rangeRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "range_retries_total",
		Help:      "Total number of polls where an event window was not yet covered",
	})

	m.epochsExtracted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "epochs_extracted_total",
		Help:      "Total number of epochs successfully carved out of the ring buffer",
	})

	m.jitterExceeded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jitter_exceeded_total",
		Help:      "Total number of epochs whose sample count missed the expected count",
	})

	m.epochSamples = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "epoch_samples",
		Help:      "Observed per-epoch sample counts",
		Buckets:   prometheus.LinearBuckets(0, 50, 12),
	})

	m.preprocessLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "preprocess_latency_milliseconds",
		Help:      "Histogram of filter plus baseline-correction latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_milliseconds",
		Help:      "Histogram of detector scoring latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.confidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "confidence",
		Help:      "Distribution of per-epoch confidence scores",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	m.detections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detections_total",
		Help:      "Total number of epochs scored at or above the detection threshold",
	})

	m.resultsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "results_published_total",
		Help:      "Total number of detection results handed to the publisher",
	})

	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_errors_total",
		Help:      "Total number of publish failures (results are not retried)",
	})

	m.clockOffset = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "clock_offset_seconds",
			Help:      "Current local-minus-source clock offset estimate per source",
		},
		[]string{"source"},
	)

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of ready epochs waiting for a worker",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the ready-epoch queue",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization",
		Help:      "Queue fill level between 0 and 1",
	})

	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of rejected enqueues (queue full or closed)",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of scoring workers",
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of per-epoch processing errors inside workers",
	})
}

// Ingestion metrics.

// RecordSampleIngested increments the ingested-samples counter.
func RecordSampleIngested() {
	globalManager.samplesIngested.Inc()
}

// RecordSampleStale increments the stale-sample counter.
func RecordSampleStale() {
	globalManager.samplesStale.Inc()
}

// UpdateBufferSpan sets the currently covered buffer span in seconds.
func UpdateBufferSpan(seconds float64) {
	globalManager.bufferSpan.Set(seconds)
}

// UpdateBufferSamples sets the number of retained samples.
func UpdateBufferSamples(n int) {
	globalManager.bufferSamples.Set(float64(n))
}

// Event metrics.

// RecordEventReceived increments the received-events counter for a kind.
func RecordEventReceived(kind string) {
	globalManager.eventsReceived.WithLabelValues(kind).Inc()
}

// RecordEventDuplicate increments the duplicate-events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// UpdatePendingEvents sets the pending-event gauge.
func UpdatePendingEvents(n int) {
	globalManager.pendingEvents.Set(float64(n))
}

// RecordEpochTimeout increments the epoch-timeout counter.
func RecordEpochTimeout() {
	globalManager.epochTimeouts.Inc()
}

// RecordRangeRetry increments the not-yet-covered poll counter.
func RecordRangeRetry() {
	globalManager.rangeRetries.Inc()
}

// Extraction metrics.

// RecordEpochExtracted increments the extracted-epochs counter.
func RecordEpochExtracted() {
	globalManager.epochsExtracted.Inc()
}

// RecordJitterExceeded increments the jitter-flag counter.
func RecordJitterExceeded() {
	globalManager.jitterExceeded.Inc()
}

// RecordEpochSamples observes a per-epoch sample count.
func RecordEpochSamples(n int) {
	globalManager.epochSamples.Observe(float64(n))
}

// Detection metrics.

// RecordPreprocessLatency records preprocessing latency in milliseconds.
func RecordPreprocessLatency(latencyMs float64) {
	globalManager.preprocessLatency.Observe(latencyMs)
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordConfidence observes a confidence score.
func RecordConfidence(c float64) {
	globalManager.confidence.Observe(c)
}

// RecordDetection increments the detection counter.
func RecordDetection() {
	globalManager.detections.Inc()
}

// RecordResultPublished increments the published-results counter.
func RecordResultPublished() {
	globalManager.resultsPublished.Inc()
}

// RecordPublishError increments the publish-error counter.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// Clock metrics.

// UpdateClockOffset sets the current offset estimate for a source.
func UpdateClockOffset(source string, offsetSeconds float64) {
	globalManager.clockOffset.WithLabelValues(source).Set(offsetSeconds)
}

// Queue/worker metrics.

// UpdateQueueSize sets the queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue fill level (0.0 to 1.0).
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueueError increments the rejected-enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// UpdateWorkerCount sets the worker count gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// GetRegistry returns the custom registry used by the global manager,
// for exposing via promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
