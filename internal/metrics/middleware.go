package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// MappingParam is the route parameter naming the searched document type.
const MappingParam = "mapping"

// HTTP holds the request collectors of the search proxy.
type HTTP struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

// RegisterHTTP creates the HTTP collectors and registers them on reg,
// reusing collectors already registered there.
func RegisterHTTP(reg prometheus.Registerer) (*HTTP, error) {
	labels := []string{"method", "route", MappingParam, "status"}
	m := &HTTP{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lazysearch",
				Name:      "http_request_duration_seconds",
				Help:      "Search proxy request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			labels,
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lazysearch",
				Name:      "http_requests_total",
				Help:      "Total number of search proxy requests",
			},
			labels,
		),
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware records duration and count per route, mapping and status.
// Requests rejected with 404 carry an empty mapping so unknown names do not
// create series.
func (m *HTTP) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route, mapping := routeLabels(r, ww.status)
			status := strconv.Itoa(ww.status)

			m.duration.WithLabelValues(r.Method, route, mapping, status).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(r.Method, route, mapping, status).Inc()
		})
	}
}

// routeLabels reads the matched chi pattern and the mapping parameter once
// routing has run.
func routeLabels(r *http.Request, status int) (route, mapping string) {
	route = "unknown"
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return route, ""
	}
	if p := rctx.RoutePattern(); p != "" {
		route = p
	}
	if status != http.StatusNotFound {
		mapping = rctx.URLParam(MappingParam)
	}
	return route, mapping
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
