// Package metrics exposes Prometheus collectors for command dispatch.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the dispatch collectors.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// Metrics counts dispatch outcomes and times handlers.
type Metrics struct {
	Dispatches *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// New constructs the collectors and registers them with opts.Registerer.
func New(opts Options) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "rickbot"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "total",
		Help:      "Inbound commands partitioned by command and terminal outcome.",
	}, []string{"command", "outcome"})
	if err := register(reg, dispatches, &dispatches); err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "duration_seconds",
		Help:      "Time from lookup to terminal outcome, partitioned by command and outcome.",
		Buckets:   buckets,
	}, []string{"command", "outcome"})
	if err := register(reg, duration, &duration); err != nil {
		return nil, err
	}

	return &Metrics{Dispatches: dispatches, Duration: duration}, nil
}

// register registers c, reusing an already registered collector of the same type.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, out *T) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return fmt.Errorf("register collector: %w", err)
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
	}
	*out = existing
	return nil
}

// Observe records one dispatch. Safe on a nil receiver.
func (m *Metrics) Observe(command, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	if command == "" {
		command = "_unknown"
	}
	m.Dispatches.WithLabelValues(command, outcome).Inc()
	m.Duration.WithLabelValues(command, outcome).Observe(took.Seconds())
}

// Serve exposes g on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
