// Package metrics holds the Prometheus collectors of the server and their HTTP exposition.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "crescent"

// Command call statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics is the set of collectors updated by the server.
// Each instance owns its registry, so several servers may live in one process
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive   prometheus.Gauge
	ConnectionsAccepted prometheus.Counter
	ProtocolErrors      prometheus.Counter
	CommandCalls        *prometheus.CounterVec   // command, status
	CommandDuration     *prometheus.HistogramVec // command
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "The number of connections being served",
		}),
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "The total of accepted connections",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "The total of connections closed because of malformed framing",
		}),
		CommandCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_calls_total",
			Help:      "The total of dispatched commands",
		}, []string{"command", "status"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
			Help:      "The cost times of command call",
		}, []string{"command"}),
	}

	m.registry.MustRegister(
		m.ConnectionsActive,
		m.ConnectionsAccepted,
		m.ProtocolErrors,
		m.CommandCalls,
		m.CommandDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCommand records one dispatched command
func (m *Metrics) ObserveCommand(name string, failed bool, elapsed time.Duration) {
	status := StatusOK
	if failed {
		status = StatusError
	}
	m.CommandCalls.WithLabelValues(name, status).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	log.Info("metrics listening on", zap.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
