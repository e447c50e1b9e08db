package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findocs_submissions_total",
			Help: "Submissions by outcome.",
		},
		[]string{"outcome"},
	)

	documentsUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findocs_documents_uploaded_total",
			Help: "Documents uploaded by document type.",
		},
		[]string{"type"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findocs_token_refresh_total",
			Help: "Delegated access token refresh attempts by result.",
		},
		[]string{"result"},
	)

	providerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findocs_provider_errors_total",
			Help: "Storage provider failures by provider and kind.",
		},
		[]string{"provider", "kind"},
	)
)

// Init registers all collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			submissionsTotal, documentsUploaded, tokenRefreshTotal, providerErrors,
		)
	})
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SubmissionOutcome counts a finished submission ("done", "validation", "security", "failed", "partial").
func SubmissionOutcome(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// DocumentUploaded counts one uploaded document of the given type.
func DocumentUploaded(docType string) {
	documentsUploaded.WithLabelValues(docType).Inc()
}

// TokenRefresh counts a refresh exchange ("ok" or "failed").
func TokenRefresh(result string) {
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

// ProviderError counts a storage provider failure.
func ProviderError(provider, kind string) {
	providerErrors.WithLabelValues(provider, kind).Inc()
}

// Instrument records in-flight, count and latency per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

var knownPaths = map[string]struct{}{
	"/api/auth/google":    {},
	"/api/auth/dev":       {},
	"/api/auth/check":     {},
	"/api/auth/logout":    {},
	"/api/submit":         {},
	"/api/submit/history": {},
	"/api/health":         {},
	"/healthz":            {},
	"/readyz":             {},
	"/metrics":            {},
}

// CanonicalPath keeps label cardinality bounded: known routes pass through,
// anything else collapses to "other".
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == "/" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	if _, ok := knownPaths[p]; ok {
		return p
	}
	return "other"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
