package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Routes served by the operations server. Anything else is reported as
// RouteOther to keep label cardinality fixed.
const (
	RouteMetrics = "/metrics"
	RouteHealth  = "/health"
	RouteReady   = "/ready"
	RouteWindow  = "/windows/{name}"
	RouteOther   = "other"
)

// routeFor maps a request path onto one of the known routes.
func routeFor(path string) string {
	switch path {
	case RouteMetrics, RouteHealth, RouteReady:
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/windows/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return RouteWindow
	}
	return RouteOther
}

// HTTPMetrics records request count and duration for every request except
// health probes.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeFor(r.URL.Path)
			if route == RouteHealth || route == RouteReady {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			metrics.ObserveHTTPRequest(r.Method, route, strconv.Itoa(rw.statusCode),
				time.Since(start).Seconds(), rw.size)
		})
	}
}
