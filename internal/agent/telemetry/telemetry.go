package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns the prometheus registry for generation metrics.
// A nil *Telemetry is valid and records nothing.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry

	trajectories *prometheus.CounterVec
	examples     *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	fallbacks    prometheus.Counter
	retries      prometheus.Counter
	failures     prometheus.Counter
	iterations   prometheus.Histogram
	duration     prometheus.Histogram

	server *http.Server
	tracer *sdktrace.TracerProvider
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config:   cfg,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: prometheus.NewRegistry(),
		trajectories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajgen_trajectories_total",
			Help: "Trajectories generated, by terminal outcome.",
		}, []string{"outcome"}),
		examples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajgen_examples_total",
			Help: "Training examples emitted, by decision type.",
		}, []string{"decision_type"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajgen_tool_calls_total",
			Help: "Tool executions, by tool name.",
		}, []string{"tool"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajgen_decision_fallbacks_total",
			Help: "Decision responses that could not be parsed and fell back to a default answer.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajgen_backend_retries_total",
			Help: "Completion backend retries after throttling or unavailability.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajgen_trajectory_failures_total",
			Help: "Trajectories aborted by a generation error.",
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trajgen_trajectory_iterations",
			Help:    "Iterations executed per trajectory.",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trajgen_trajectory_duration_seconds",
			Help:    "Wall time per trajectory.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	t.registry.MustRegister(t.trajectories, t.examples, t.toolCalls, t.fallbacks, t.retries, t.failures, t.iterations, t.duration)
	return t
}

// Registry exposes the underlying registry.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

// Handler serves the registry in prometheus text format.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordTrajectory records a finished trajectory.
func (t *Telemetry) RecordTrajectory(outcome string, iterations int, elapsed time.Duration) {
	if t == nil {
		return
	}
	t.trajectories.WithLabelValues(outcome).Inc()
	t.iterations.Observe(float64(iterations))
	t.duration.Observe(elapsed.Seconds())
}

// RecordFailure records a trajectory aborted by an error.
func (t *Telemetry) RecordFailure() {
	if t == nil {
		return
	}
	t.failures.Inc()
}

func (t *Telemetry) RecordExample(decisionType string) {
	if t == nil {
		return
	}
	t.examples.WithLabelValues(decisionType).Inc()
}

func (t *Telemetry) RecordToolCall(tool string) {
	if t == nil {
		return
	}
	t.toolCalls.WithLabelValues(tool).Inc()
}

func (t *Telemetry) RecordFallback() {
	if t == nil {
		return
	}
	t.fallbacks.Inc()
}

func (t *Telemetry) RecordRetry() {
	if t == nil {
		return
	}
	t.retries.Inc()
}

// StartServer exposes /metrics on the configured port when telemetry is enabled.
func (t *Telemetry) StartServer() {
	if t == nil || !t.config.Enabled || t.config.MetricsPort <= 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Printf("metrics server error: %v", err)
		}
	}()
	t.logger.Printf("metrics listening on :%d", t.config.MetricsPort)
}

// Shutdown flushes pending spans and stops the metrics server.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracer != nil {
		if err := t.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
