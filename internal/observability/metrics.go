package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments of the wizard service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Wizard session metrics
	SessionStartsTotal     *prometheus.CounterVec
	SessionFinishesTotal   *prometheus.CounterVec
	SessionsActive         *prometheus.GaugeVec
	StepTransitionsTotal   *prometheus.CounterVec
	StepValidationFailures *prometheus.CounterVec
	SessionConflictsTotal  prometheus.Counter

	// Eligibility metrics
	EligibilityVerdictsTotal *prometheus.CounterVec
	EligibilityDuration      *prometheus.HistogramVec

	// Registry metrics
	RegistryCallsTotal   *prometheus.CounterVec
	RegistryCallDuration *prometheus.HistogramVec
	RegistryBreakerState prometheus.Gauge
	RegistryCacheHits    *prometheus.CounterVec
	RegistryCacheMisses  *prometheus.CounterVec

	// Cache metrics
	CapabilityCacheHitsTotal   prometheus.Counter
	CapabilityCacheMissesTotal prometheus.Counter

	// System metrics
	DefinitionLoadsTotal *prometheus.CounterVec
	DefinitionsLoaded    prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesselwizard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesselwizard_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesselwizard_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Sessions
		SessionStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_session_starts_total",
			Help: "Total number of wizard sessions started.",
		}, []string{"transaction_type"}),
		SessionFinishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_session_finishes_total",
			Help: "Total number of wizard sessions that left the active state.",
		}, []string{"transaction_type", "status"}),
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vesselwizard_sessions_active",
			Help: "Number of active wizard sessions started by this process.",
		}, []string{"transaction_type"}),
		StepTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_step_transitions_total",
			Help: "Total number of step transitions.",
		}, []string{"transaction_type", "direction"}),
		StepValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_step_validation_failures_total",
			Help: "Total number of rejected attempts to leave a step.",
		}, []string{"transaction_type", "step_id"}),
		SessionConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vesselwizard_session_conflicts_total",
			Help: "Total number of session updates rejected for a stale version.",
		}),

		// Eligibility
		EligibilityVerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_eligibility_verdicts_total",
			Help: "Total number of eligibility evaluations by verdict.",
		}, []string{"transaction_type", "verdict"}),
		EligibilityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesselwizard_eligibility_duration_seconds",
			Help:    "Eligibility evaluation duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"transaction_type"}),

		// Registry
		RegistryCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_registry_calls_total",
			Help: "Total number of marine registry calls.",
		}, []string{"operation", "outcome"}),
		RegistryCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesselwizard_registry_call_duration_seconds",
			Help:    "Marine registry call duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"operation"}),
		RegistryBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vesselwizard_registry_circuit_breaker_state",
			Help: "Registry circuit breaker state (0=closed, 1=open, 2=half-open).",
		}),
		RegistryCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_registry_cache_hits_total",
			Help: "Total registry cache hits.",
		}, []string{"operation"}),
		RegistryCacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_registry_cache_misses_total",
			Help: "Total registry cache misses.",
		}, []string{"operation"}),

		// Cache
		CapabilityCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vesselwizard_capability_cache_hits_total",
			Help: "Total capability cache hits.",
		}),
		CapabilityCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vesselwizard_capability_cache_misses_total",
			Help: "Total capability cache misses.",
		}),

		// System
		DefinitionLoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwizard_definition_loads_total",
			Help: "Total transaction definition loads.",
		}, []string{"status"}),
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vesselwizard_definitions_loaded",
			Help: "Number of loaded transaction definitions.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Sessions
		m.SessionStartsTotal,
		m.SessionFinishesTotal,
		m.SessionsActive,
		m.StepTransitionsTotal,
		m.StepValidationFailures,
		m.SessionConflictsTotal,
		// Eligibility
		m.EligibilityVerdictsTotal,
		m.EligibilityDuration,
		// Registry
		m.RegistryCallsTotal,
		m.RegistryCallDuration,
		m.RegistryBreakerState,
		m.RegistryCacheHits,
		m.RegistryCacheMisses,
		// Cache
		m.CapabilityCacheHitsTotal,
		m.CapabilityCacheMissesTotal,
		// System
		m.DefinitionLoadsTotal,
		m.DefinitionsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordSessionStart records a new wizard session.
func (m *Metrics) RecordSessionStart(transactionType string) {
	m.SessionStartsTotal.WithLabelValues(transactionType).Inc()
	m.SessionsActive.WithLabelValues(transactionType).Inc()
}

// RecordSessionFinish records a session leaving the active state.
func (m *Metrics) RecordSessionFinish(transactionType, status string) {
	m.SessionFinishesTotal.WithLabelValues(transactionType, status).Inc()
	m.SessionsActive.WithLabelValues(transactionType).Dec()
}

// RecordStepTransition records a move between steps. direction is one of
// "next", "back", "jump" or "action".
func (m *Metrics) RecordStepTransition(transactionType, direction string) {
	m.StepTransitionsTotal.WithLabelValues(transactionType, direction).Inc()
}

// RecordStepValidationFailure records a rejected attempt to leave a step.
func (m *Metrics) RecordStepValidationFailure(transactionType, stepID string) {
	m.StepValidationFailures.WithLabelValues(transactionType, stepID).Inc()
}

// RecordSessionConflict records a stale-version write.
func (m *Metrics) RecordSessionConflict() {
	m.SessionConflictsTotal.Inc()
}

// RecordEligibility records one eligibility evaluation.
func (m *Metrics) RecordEligibility(transactionType, verdict string, duration time.Duration) {
	m.EligibilityVerdictsTotal.WithLabelValues(transactionType, verdict).Inc()
	m.EligibilityDuration.WithLabelValues(transactionType).Observe(duration.Seconds())
}

// RecordRegistryCall records one marine registry call.
func (m *Metrics) RecordRegistryCall(operation, outcome string, duration time.Duration) {
	m.RegistryCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.RegistryCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetRegistryBreakerState sets the registry circuit breaker state.
// State: 0=closed, 1=open, 2=half-open.
func (m *Metrics) SetRegistryBreakerState(state float64) {
	m.RegistryBreakerState.Set(state)
}

// RecordRegistryCache records a registry cache lookup.
func (m *Metrics) RecordRegistryCache(operation string, hit bool) {
	if hit {
		m.RegistryCacheHits.WithLabelValues(operation).Inc()
		return
	}
	m.RegistryCacheMisses.WithLabelValues(operation).Inc()
}

// RecordCapabilityCacheHit records a capability cache hit.
func (m *Metrics) RecordCapabilityCacheHit() {
	m.CapabilityCacheHitsTotal.Inc()
}

// RecordCapabilityCacheMiss records a capability cache miss.
func (m *Metrics) RecordCapabilityCacheMiss() {
	m.CapabilityCacheMissesTotal.Inc()
}

// RecordDefinitionLoad records a definition load attempt.
func (m *Metrics) RecordDefinitionLoad(status string) {
	m.DefinitionLoadsTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
