package metrics

import (
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "elements_http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "route", "code"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "elements_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latencies",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"service", "method", "route", "code"},
)

var CacheRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "elements_cache_requests_total",
		Help: "Total number of query cache lookups",
	},
	[]string{"service", "outcome"},
)

var QueriesRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "elements_queries_rejected_total",
		Help: "Total number of list queries rejected as invalid",
	},
	[]string{"service", "reason"},
)

var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "elements_events_published_total",
		Help: "Total number of change events published",
	},
	[]string{"kind", "outcome"},
)

// Instrument records request count and latency per matched chi route.
func Instrument(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				code := strconv.Itoa(ww.Status())

				HTTPRequestDuration.WithLabelValues(service, r.Method, route, code).Observe(time.Since(start).Seconds())
				HTTPRequestsTotal.WithLabelValues(service, r.Method, route, code).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// NewServer serves /metrics on addr, and the pprof handlers under
// /debug/pprof/ when withPprof is set.
func NewServer(addr string, withPprof bool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if withPprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
