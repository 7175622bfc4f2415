// Package metrics exposes Prometheus counters for HTTP traffic and interview activity.
// All recording methods are safe on a nil *Metrics so callers can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prepmate"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	aiRequests        *prometheus.CounterVec
	ttsRequests       *prometheus.CounterVec
	interviewsStarted prometheus.Counter
	interviewsEnded   *prometheus.CounterVec
	answersSubmitted  *prometheus.CounterVec
	resumesUploaded   prometheus.Counter
	liveConnections   prometheus.Gauge
}

// New registers all collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "LLM calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ttsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_requests_total",
			Help:      "Text-to-speech lookups by outcome (cache_hit, generated, error).",
		}, []string{"outcome"}),
		interviewsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_started_total",
			Help:      "Mock interviews started.",
		}),
		interviewsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_ended_total",
			Help:      "Mock interviews ended by final status.",
		}, []string{"status"}),
		answersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Interview answers by source (text, audio, voice).",
		}, []string{"source"}),
		resumesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resumes_uploaded_total",
			Help:      "Resume files accepted.",
		}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_interview_connections",
			Help:      "Open live interview WebSocket connections.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.aiRequests,
		m.ttsRequests,
		m.interviewsStarted,
		m.interviewsEnded,
		m.answersSubmitted,
		m.resumesUploaded,
		m.liveConnections,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency keyed by the chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) AIRequest(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.aiRequests.WithLabelValues(operation, outcome).Inc()
}

// Text-to-speech lookup outcomes
const (
	TTSCacheHit  = "cache_hit"
	TTSGenerated = "generated"
	TTSError     = "error"
)

// TTSRequest counts a lookup; outcome is one of the TTS constants
func (m *Metrics) TTSRequest(outcome string) {
	if m == nil {
		return
	}
	m.ttsRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) InterviewStarted() {
	if m == nil {
		return
	}
	m.interviewsStarted.Inc()
}

func (m *Metrics) InterviewEnded(status string) {
	if m == nil {
		return
	}
	m.interviewsEnded.WithLabelValues(status).Inc()
}

func (m *Metrics) AnswerSubmitted(source string) {
	if m == nil {
		return
	}
	m.answersSubmitted.WithLabelValues(source).Inc()
}

func (m *Metrics) ResumeUploaded() {
	if m == nil {
		return
	}
	m.resumesUploaded.Inc()
}

func (m *Metrics) LiveConnected() {
	if m == nil {
		return
	}
	m.liveConnections.Inc()
}

func (m *Metrics) LiveDisconnected() {
	if m == nil {
		return
	}
	m.liveConnections.Dec()
}
