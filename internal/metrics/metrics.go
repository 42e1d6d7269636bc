// Package metrics exposes tracker counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tabtime"

// Metrics groups the counters the engine updates. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	malformed       prometheus.Counter
	deltas          prometheus.Counter
	trackedMillis   *prometheus.CounterVec
	persists        prometheus.Counter
	persistFailures prometheus.Counter
	handlerFailures prometheus.Counter
	lastPersist     prometheus.Gauge
}

// New creates a Metrics with its own registry, so multiple instances can
// coexist in tests.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Browser events handled, partitioned by type.",
		}, []string{"type"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Native messages skipped because they failed validation.",
		}),
		deltas: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deltas_total",
			Help:      "Closed attention periods merged into the aggregates.",
		}),
		trackedMillis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracked_milliseconds_total",
			Help:      "Milliseconds attributed to hosts, partitioned by rollup.",
		}, []string{"rollup"}),
		persists: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persists_total",
			Help:      "Successful writes of the aggregates to storage.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed writes of the aggregates to storage.",
		}),
		handlerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Event handlers that failed or panicked.",
		}),
		lastPersist: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_persist_timestamp_seconds",
			Help:      "Unix time of the last successful persist.",
		}),
	}

	m.registry.MustRegister(
		m.events,
		m.malformed,
		m.deltas,
		m.trackedMillis,
		m.persists,
		m.persistFailures,
		m.handlerFailures,
		m.lastPersist,
	)
	return m
}

// Event counts one handled event.
func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// Malformed counts one skipped message.
func (m *Metrics) Malformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// Delta counts one merged delta of ms milliseconds. The same amount lands
// in every rollup.
func (m *Metrics) Delta(ms int64) {
	if m == nil {
		return
	}
	m.deltas.Inc()
	for _, rollup := range []string{"all_time", "daily", "weekly"} {
		m.trackedMillis.WithLabelValues(rollup).Add(float64(ms))
	}
}

// Persisted records the outcome of a persist attempt.
func (m *Metrics) Persisted(at time.Time, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.persistFailures.Inc()
		return
	}
	m.persists.Inc()
	m.lastPersist.Set(float64(at.UnixMilli()) / 1000)
}

// HandlerFailed counts one failed event handler.
func (m *Metrics) HandlerFailed() {
	if m == nil {
		return
	}
	m.handlerFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
