// Package metrics exposes Prometheus collectors for the analysis service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysesTotal              *prometheus.CounterVec
	analysisDurationSeconds    *prometheus.HistogramVec
	analysisOverallScore       prometheus.Histogram
	stageErrorsTotal           *prometheus.CounterVec
	screenshotCapturesTotal    *prometheus.CounterVec
	screenshotCacheHitsTotal   prometheus.Counter
	visionRequestDuration      prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeAnalyses             prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		analysesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyses_total",
				Help: "Total number of analyses, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		analysisDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_duration_seconds",
				Help:    "Histogram of end-to-end analysis durations, labeled by status.",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"status"},
		)

		analysisOverallScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analysis_overall_score",
				Help:    "Histogram of overall design scores for completed analyses.",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		stageErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_stage_errors_total",
				Help: "Total pipeline stage failures, labeled by stage and kind.",
			},
			[]string{"stage", "kind"},
		)

		screenshotCapturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshot_captures_total",
				Help: "Total screenshot capture attempts, labeled by viewport and status.",
			},
			[]string{"viewport", "status"},
		)

		screenshotCacheHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screenshot_cache_hits_total",
				Help: "Total screenshot requests served from the on-disk cache.",
			},
		)

		visionRequestDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vision_request_duration_seconds",
				Help:    "Histogram of vision model request latencies.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		activeAnalyses = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_analyses",
				Help: "Number of analyses currently in flight.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAnalysis records a finished analysis.
func ObserveAnalysis(site string, status string, duration time.Duration) {
	analysesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
	analysisDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveOverallScore records the aggregated score of a completed analysis.
func ObserveOverallScore(score float64) {
	analysisOverallScore.Observe(score)
}

// ObserveStageError increments the failure counter for a pipeline stage.
func ObserveStageError(stage, kind string) {
	stageErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// ObserveCapture records one screenshot capture attempt.
func ObserveCapture(viewport, status string) {
	screenshotCapturesTotal.WithLabelValues(viewport, status).Inc()
}

// ObserveCacheHit increments the screenshot cache hit counter.
func ObserveCacheHit() {
	screenshotCacheHitsTotal.Inc()
}

// ObserveVisionRequest records the latency of one vision model call.
func ObserveVisionRequest(duration time.Duration) {
	visionRequestDuration.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveAnalyses increments the in-flight analyses gauge.
func IncActiveAnalyses() {
	activeAnalyses.Inc()
}

// DecActiveAnalyses decrements the in-flight analyses gauge.
func DecActiveAnalyses() {
	activeAnalyses.Dec()
}
