// Package metrics defines Prometheus collectors for the bootstrap run and an
// optional exposition endpoint that lives for the duration of the run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "envboot",
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts per resource, including retries.",
		},
		[]string{"task"},
	)

	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "envboot",
			Name:      "fetch_failures_total",
			Help:      "Fetch tasks that exhausted their retry budget.",
		},
		[]string{"task"},
	)

	FetchSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "envboot",
			Name:      "fetch_skips_total",
			Help:      "Fetch tasks skipped because the resource was already present.",
		},
	)

	FetchBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "envboot",
			Name:      "fetch_bytes_total",
			Help:      "Bytes downloaded per resource.",
		},
		[]string{"task"},
	)

	ActiveFetches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "envboot",
			Name:      "active_fetches",
			Help:      "Number of fetch workers currently transferring data.",
		},
	)

	UnpackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "envboot",
			Name:      "unpack_duration_seconds",
			Help:      "Time spent extracting each archive.",
		},
		[]string{"archive"},
	)
)

// Register registers the envboot metrics into the default registry.
// Safe to call once per process.
func Register() {
	prometheus.MustRegister(FetchAttempts, FetchFailures, FetchSkips, FetchBytes, ActiveFetches, UnpackDuration)
}

// Handler returns the Prometheus exposition handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr in a background goroutine. The listener is
// intentionally not shut down gracefully: it lives exactly as long as the
// process, and the process exits when the run ends.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	go func() {
		// Exposition is best-effort; a bind failure must not abort the run.
		_ = http.ListenAndServe(addr, mux)
	}()
}
