package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	phaseRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostprep",
			Subsystem: "phase",
			Name:      "runs_total",
			Help:      "Number of phase handler invocations.",
		}, []string{"family", "phase"},
	)
	phaseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostprep",
			Subsystem: "phase",
			Name:      "failures_total",
			Help:      "Number of phase handler failures.",
		}, []string{"family", "phase"},
	)
	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hostprep",
			Subsystem: "phase",
			Name:      "duration_seconds",
			Help:      "Observed wall-clock duration of phase handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"family", "phase"},
	)
	rebootsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostprep",
			Subsystem: "phase",
			Name:      "reboots_total",
			Help:      "Number of reboot-and-resume transitions issued.",
		},
	)
	lockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostprep",
			Subsystem: "lock",
			Name:      "contention_total",
			Help:      "Number of acquisitions refused because a live owner held the lock.",
		},
	)
	staleLockReclaims = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostprep",
			Subsystem: "lock",
			Name:      "stale_reclaims_total",
			Help:      "Number of stale lock files reclaimed from dead owners.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{phaseRuns, phaseFailures, phaseDuration, rebootsIssued, lockContention, staleLockReclaims}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RegisterDefault registers all metrics with the default registry.
func RegisterDefault() error { return Register(prometheus.DefaultRegisterer) }

func IncPhaseRun(family, phase string)     { phaseRuns.WithLabelValues(family, phase).Inc() }
func IncPhaseFailure(family, phase string) { phaseFailures.WithLabelValues(family, phase).Inc() }
func ObservePhaseDuration(family, phase string, d time.Duration) {
	phaseDuration.WithLabelValues(family, phase).Observe(d.Seconds())
}
func IncRebootIssued()       { rebootsIssued.Inc() }
func IncLockContention()     { lockContention.Inc() }
func IncStaleLockReclaimed() { staleLockReclaims.Inc() }

// Handler returns an http.Handler serving Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Serve starts a blocking HTTP server exposing /metrics on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
