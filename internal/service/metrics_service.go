package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the request-lifecycle transitions.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	lifecycleTotal  *prometheus.CounterVec
	acceptConflicts prometheus.Counter
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

	lifecycleTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitute_request_transitions_total",
		Help: "Total lifecycle transitions by kind",
	}, []string{"transition"})

	acceptConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "substitute_request_accept_conflicts_total",
		Help: "Accept attempts rejected because the request was no longer pending",
	})

	registry.MustRegister(requestDuration, requestTotal, lifecycleTotal, acceptConflicts)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		lifecycleTotal:  lifecycleTotal,
		acceptConflicts: acceptConflicts,
	}
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RequestCreated counts a creation.
func (s *MetricsService) RequestCreated() {
	s.lifecycleTotal.WithLabelValues("created").Inc()
}

// RequestAccepted counts a successful accept.
func (s *MetricsService) RequestAccepted() {
	s.lifecycleTotal.WithLabelValues("accepted").Inc()
}

// RequestCancelled counts a cancellation.
func (s *MetricsService) RequestCancelled() {
	s.lifecycleTotal.WithLabelValues("cancelled").Inc()
}

// RequestCompleted counts a completion.
func (s *MetricsService) RequestCompleted() {
	s.lifecycleTotal.WithLabelValues("completed").Inc()
}

// AcceptConflict counts a lost accept race or stale accept attempt.
func (s *MetricsService) AcceptConflict() {
	s.acceptConflicts.Inc()
}
