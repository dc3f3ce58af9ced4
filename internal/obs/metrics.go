package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics plus counters for the authorization engine.
var (
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

	authDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aexfy_auth_decisions_total",
			Help: "Session guard verdicts by outcome.",
		},
		[]string{"outcome"},
	)

	approvalDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aexfy_approvals_total",
			Help: "Approval workflow transitions by kind and decision.",
		},
		[]string{"kind", "decision"},
	)

	sessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aexfy_sessions_evicted_total",
		Help: "Requests rejected because the session token was superseded.",
	})

	auditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aexfy_audit_events_dropped_total",
		Help: "Audit events discarded because the dispatch buffer was full.",
	})

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authDecisions, approvalDecisions, sessionsEvicted, auditDropped, readyGauge,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthDecision counts one session guard verdict.
func AuthDecision(outcome string) {
	authDecisions.WithLabelValues(outcome).Inc()
}

// ApprovalDecision counts one approval workflow transition.
func ApprovalDecision(kind, decision string) {
	approvalDecisions.WithLabelValues(kind, decision).Inc()
}

// SessionEvicted counts one stale-session rejection.
func SessionEvicted() {
	sessionsEvicted.Inc()
}

// AuditDropped counts one audit event lost to a full dispatch buffer.
func AuditDropped() {
	auditDropped.Inc()
}

// SetReady flips the readiness gauge.
func SetReady(ready bool) {
	if ready {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// CanonicalPath collapses resource identifiers so metric labels stay
// low-cardinality.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" {
		switch parts[1] {
		case "solicitudes", "empresas", "auditoria":
			if len(parts) == 3 {
				return "/v1/" + parts[1] + "/:id"
			}
			if len(parts) == 4 && parts[1] == "solicitudes" && parts[3] == "decision" {
				return "/v1/solicitudes/:id/decision"
			}
		}
	}
	return "/" + strings.TrimPrefix(path, "/")
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for the metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
