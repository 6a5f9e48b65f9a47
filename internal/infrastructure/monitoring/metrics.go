package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. It implements extract.Observer so
// the engine can report pipeline events without depending on this package.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Extraction metrics
	ExtractionsTotal     *prometheus.CounterVec
	ExtractionConfidence prometheus.Histogram
	RetriesTotal         *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	StepsTotal  *prometheus.CounterVec

	// Selector cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Artifact metrics
	CapturesTotal *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests    int64
	TotalErrors      int64
	TotalExtractions int64
	TotalRuns        int64
	TotalRetries     int64
	ConfidenceSum    float64 // sum of reported confidences
	ExtractionCount  int64   // count for averaging
	TotalDuration    float64 // sum of all request durations
	RequestCount     int64   // count for averaging
}

// NewMetrics creates a metrics collector registered on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on a specific registerer. Tests
// pass a fresh registry to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesentry_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagesentry_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Extraction metrics
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesentry_extractions_total",
				Help: "Total number of extraction attempts by resolved method",
			},
			[]string{"method"},
		),
		ExtractionConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagesentry_extraction_confidence",
				Help:    "Distribution of extraction confidence scores",
				Buckets: []float64{0, 0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
			},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesentry_retries_total",
				Help: "Total number of retry mutations applied by strategy",
			},
			[]string{"strategy"},
		),

		// Run metrics
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesentry_runs_total",
				Help: "Total number of completed runs by status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagesentry_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesentry_steps_total",
				Help: "Total number of run steps by outcome",
			},
			[]string{"outcome"},
		),

		// Selector cache metrics
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pagesentry_selector_cache_hits_total",
				Help: "Cached selectors that resolved the value",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pagesentry_selector_cache_misses_total",
				Help: "Cached selectors that no longer matched",
			},
		),

		// Artifact metrics
		CapturesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesentry_captures_total",
				Help: "Total number of failure artifacts captured by mode",
			},
			[]string{"mode"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagesentry_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveExtraction records one finished extraction. Satisfies
// extract.Observer.
func (m *Metrics) ObserveExtraction(method string, confidence float64) {
	m.ExtractionsTotal.WithLabelValues(method).Inc()
	m.ExtractionConfidence.Observe(confidence)

	m.mu.Lock()
	m.snapshot.TotalExtractions++
	m.snapshot.ConfidenceSum += confidence
	m.snapshot.ExtractionCount++
	m.mu.Unlock()
}

// ObserveRetry records one applied retry mutation. Satisfies extract.Observer.
func (m *Metrics) ObserveRetry(strategy string) {
	m.RetriesTotal.WithLabelValues(strategy).Inc()

	m.mu.Lock()
	m.snapshot.TotalRetries++
	m.mu.Unlock()
}

// RecordRun records a completed run.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRuns++
	m.mu.Unlock()
}

// RecordStep records a run step outcome ("success" or "failure").
func (m *Metrics) RecordStep(outcome string) {
	m.StepsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheHit records a cached selector that still matched.
func (m *Metrics) RecordCacheHit() { m.CacheHits.Inc() }

// RecordCacheMiss records a cached selector that failed to match.
func (m *Metrics) RecordCacheMiss() { m.CacheMisses.Inc() }

// RecordCapture records one captured failure artifact.
func (m *Metrics) RecordCapture(mode string) {
	m.CapturesTotal.WithLabelValues(mode).Inc()
}

// Snapshot returns current aggregate values for the health endpoint.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// AverageConfidence returns the mean confidence across all extractions, or 0
// if none have been recorded.
func (m *Metrics) AverageConfidence() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot.ExtractionCount == 0 {
		return 0
	}
	return m.snapshot.ConfidenceSum / float64(m.snapshot.ExtractionCount)
}

// UptimeSeconds returns seconds since the collector was created.
func (m *Metrics) UptimeSeconds() float64 {
	return time.Since(m.startTime).Seconds()
}
