// Package metrics exposes rotation session progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/onionrotate/internal/model"
)

const namespace = "onionrotate"

// Recorder observes a session and updates its metrics. It owns a private
// registry so several recorders never collide.
type Recorder struct {
	registry *prometheus.Registry

	rotations  *prometheus.CounterVec
	fallbacks  prometheus.Counter
	changes    prometheus.Gauge
	remaining  prometheus.Gauge
	countdown  prometheus.Gauge
	running    prometheus.Gauge
	lastChange prometheus.Gauge
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Rotation attempts by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_fallbacks_total",
			Help:      "Rotation attempts that fell back to reloading the daemon.",
		}),
		changes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "change_count",
			Help:      "Rotation attempts made in the current session.",
		}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_changes",
			Help:      "Attempts left before an auto session ends; -1 when unlimited.",
		}),
		countdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "next_rotation_seconds",
			Help:      "Seconds until the next automatic rotation.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_running",
			Help:      "1 while a session is active.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_change_timestamp_seconds",
			Help:      "Unix time of the last attempt that produced a new address.",
		}),
	}

	r.registry.MustRegister(
		r.rotations,
		r.fallbacks,
		r.changes,
		r.remaining,
		r.countdown,
		r.running,
		r.lastChange,
	)

	// Pre-create every outcome so the series exist at zero.
	for _, o := range []model.Outcome{model.OutcomeChanged, model.OutcomeUnchanged, model.OutcomeFailed} {
		r.rotations.WithLabelValues(o.String())
	}

	return r
}

// Registry returns the registry holding the session metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SessionStarted marks the session as running.
func (r *Recorder) SessionStarted(state model.SessionState) {
	r.running.Set(1)
	r.updateState(state)
}

// Countdown publishes the time left before the next rotation.
func (r *Recorder) Countdown(remaining time.Duration, _ model.SessionState) {
	r.countdown.Set(remaining.Seconds())
}

// RotationCompleted counts the attempt.
func (r *Recorder) RotationCompleted(event model.RotationEvent, state model.SessionState) {
	r.rotations.WithLabelValues(event.Outcome.String()).Inc()
	if event.Fallback {
		r.fallbacks.Inc()
	}
	if event.Outcome == model.OutcomeChanged {
		r.lastChange.Set(float64(event.Time.Unix()))
	}
	r.countdown.Set(0)
	r.updateState(state)
}

// SessionTerminated marks the session as stopped.
func (r *Recorder) SessionTerminated(state model.SessionState, _ error) {
	r.running.Set(0)
	r.countdown.Set(0)
	r.updateState(state)
}

func (r *Recorder) updateState(state model.SessionState) {
	r.changes.Set(float64(state.ChangeCount))
	if remaining, limited := state.RemainingChanges(); limited {
		r.remaining.Set(float64(remaining))
	} else {
		r.remaining.Set(-1)
	}
}
