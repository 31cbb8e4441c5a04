// Package metrics exposes run counters for the rotation job. A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder owns a private registry so a one-shot job can push exactly its own series.
type Recorder struct {
	registry    *prometheus.Registry
	actions     *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	missedDays  prometheus.Counter
	runDuration prometheus.Histogram
}

// NewRecorder creates and registers the keyrotator metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keyrotator_actions_total",
			Help: "Total number of rotation actions performed, by action",
		}, []string{"action"}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keyrotator_identities_skipped_total",
			Help: "Total number of identities skipped, by reason",
		}, []string{"reason"}),
		missedDays: factory.NewCounter(prometheus.CounterOpts{
			Name: "keyrotator_missed_days_total",
			Help: "Total number of daily runs detected as skipped",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "keyrotator_run_duration_seconds",
			Help:    "Duration of complete rotation runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// Registry returns the registry the metrics live in.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Action counts one performed action (create, deactivate, delete, notify).
func (r *Recorder) Action(action string) {
	if r != nil {
		r.actions.WithLabelValues(action).Inc()
	}
}

// Skipped counts one identity skipped for reason.
func (r *Recorder) Skipped(reason string) {
	if r != nil {
		r.skipped.WithLabelValues(reason).Inc()
	}
}

// MissedDays adds n detected missed days.
func (r *Recorder) MissedDays(n int) {
	if r != nil && n > 0 {
		r.missedDays.Add(float64(n))
	}
}

// ObserveRun records the duration of a complete run.
func (r *Recorder) ObserveRun(d time.Duration) {
	if r != nil {
		r.runDuration.Observe(d.Seconds())
	}
}

// Push sends the registry to a Pushgateway, replacing the job's previous group.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
