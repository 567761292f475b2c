package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/student-idcard/pkg/jobs"
)

type queueStats interface {
	Stats() jobs.Stats
}

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	cardsRendered   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "card_render_duration_seconds",
		Help:    "Time spent laying out and rendering an ID card",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"outcome"})

	cardsRendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cards_rendered_total",
		Help: "Total number of ID card renders",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, renderDuration, cardsRendered, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		renderDuration:  renderDuration,
		cardsRendered:   cardsRendered,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveCardRender records one card render with outcome "success" or "error".
func (m *MetricsService) ObserveCardRender(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.cardsRendered.WithLabelValues(outcome).Inc()
}

// TrackQueue exports the counters of a background queue as
// <name>_jobs_total{state}.
func (m *MetricsService) TrackQueue(name string, q queueStats) error {
	if m == nil || q == nil {
		return nil
	}
	states := map[string]func(jobs.Stats) int{
		"enqueued":  func(s jobs.Stats) int { return s.Enqueued },
		"coalesced": func(s jobs.Stats) int { return s.Coalesced },
		"succeeded": func(s jobs.Stats) int { return s.Succeeded },
		"failed":    func(s jobs.Stats) int { return s.Failed },
	}
	for state, pick := range states {
		pick := pick
		counter := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        name + "_jobs_total",
			Help:        "Background jobs by state",
			ConstLabels: prometheus.Labels{"state": state},
		}, func() float64 {
			return float64(pick(q.Stats()))
		})
		if err := m.registry.Register(counter); err != nil {
			return fmt.Errorf("register %s queue metrics: %w", name, err)
		}
	}
	return nil
}
