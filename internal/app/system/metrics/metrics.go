// internal/app/system/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shepherd_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shepherd_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	authzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shepherd_authz_decisions_total",
		Help: "Authorization gate decisions by outcome",
	}, []string{"outcome"})

	contactOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shepherd_contact_operations_total",
		Help: "Contact lifecycle operations by name and result",
	}, []string{"op", "result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shepherd_cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	purgedContacts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shepherd_purged_contacts_total",
		Help: "Soft-deleted contacts permanently removed by the purge job",
	})
)

// ObserveAuthz counts a gate decision ("allow", "deny", "error").
func ObserveAuthz(outcome string) {
	authzDecisions.WithLabelValues(outcome).Inc()
}

// ObserveContactOp counts a lifecycle operation.
func ObserveContactOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	contactOps.WithLabelValues(op, result).Inc()
}

// ObserveCache counts a cache hit or miss.
func ObserveCache(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// AddPurged adds n to the purged contacts counter.
func AddPurged(n int64) {
	if n > 0 {
		purgedContacts.Add(float64(n))
	}
}

// Middleware records request counts and latency labelled by chi route
// pattern, so ids in paths do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
