// Package metrics exposes Prometheus counters for the matchmaking core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courtmatch/internal/models"
)

const namespace = "courtmatch"

// Recorder implements services.Metrics on its own registry.
type Recorder struct {
	registry        *prometheus.Registry
	transitions     *prometheus.CounterVec
	races           *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	requestsExpired prometheus.Counter
	sweepRuns       *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_transitions_total",
			Help:      "Match status transitions, by target status.",
		}, []string{"to"}),
		races: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_transition_races_total",
			Help:      "Conditional transitions lost to a concurrent writer.",
		}, []string{"op"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Rejected bookings, by the stage that caught the overlap.",
		}, []string{"stage"}),
		requestsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_expired_total",
			Help:      "Match requests moved to expired by the sweeper.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Expiry sweeper passes, by outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(
		r.transitions,
		r.races,
		r.conflicts,
		r.requestsExpired,
		r.sweepRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) MatchTransition(to models.MatchStatus) {
	r.transitions.WithLabelValues(string(to)).Inc()
}

func (r *Recorder) TransitionRace(op string) {
	r.races.WithLabelValues(op).Inc()
}

func (r *Recorder) BookingConflict(stage string) {
	r.conflicts.WithLabelValues(stage).Inc()
}

func (r *Recorder) RequestsExpired(n int) {
	if n > 0 {
		r.requestsExpired.Add(float64(n))
	}
}

func (r *Recorder) SweepRun(outcome string) {
	r.sweepRuns.WithLabelValues(outcome).Inc()
}

// Registry returns the registry the counters live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
