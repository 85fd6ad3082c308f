package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var searchBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Search holds the collectors the transport decorators record into. The
// fields are fixed once RegisterSearch returns. A nil *Search records
// nothing.
type Search struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Took     *prometheus.HistogramVec
	Cache    *prometheus.CounterVec
	Retries  *prometheus.CounterVec
}

// NewSearch creates unregistered search collectors.
func NewSearch() *Search {
	return &Search{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lazysearch",
				Name:      "search_requests_total",
				Help:      "Total number of search requests sent to the engine",
			},
			[]string{"mapping", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lazysearch",
				Name:      "search_request_duration_seconds",
				Help:      "Search round trip duration in seconds",
				Buckets:   searchBuckets,
			},
			[]string{"mapping"},
		),
		Took: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lazysearch",
				Name:      "search_took_seconds",
				Help:      "Engine-reported search time in seconds",
				Buckets:   searchBuckets,
			},
			[]string{"mapping"},
		),
		Cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lazysearch",
				Name:      "search_cache_total",
				Help:      "Response cache hits and misses",
			},
			[]string{"result"}, // "hit" / "miss"
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lazysearch",
				Name:      "search_retries_total",
				Help:      "Search attempts retried after a timeout",
			},
			[]string{"mapping"},
		),
	}
}

// RegisterSearch creates the search collectors and registers them on reg.
// Collectors already registered on reg are reused, so clients sharing a
// registry share series.
func RegisterSearch(reg prometheus.Registerer) (*Search, error) {
	m := NewSearch()
	if err := registerOrReuse(reg, &m.Requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.Duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.Took); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.Cache); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.Retries); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveRequest records one engine round trip. took is the engine-reported
// search time; it is skipped on error.
func (m *Search) ObserveRequest(mapping string, elapsed, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(mapping).Observe(elapsed.Seconds())
	if err != nil {
		m.Requests.WithLabelValues(mapping, "error").Inc()
		return
	}
	m.Requests.WithLabelValues(mapping, "ok").Inc()
	m.Took.WithLabelValues(mapping).Observe(took.Seconds())
}

// CacheLookup records a response cache hit or miss.
func (m *Search) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.Cache.WithLabelValues("hit").Inc()
		return
	}
	m.Cache.WithLabelValues("miss").Inc()
}

// Retry records one retried attempt.
func (m *Search) Retry(mapping string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(mapping).Inc()
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("register metric: %w", err)
	}
	return nil
}
