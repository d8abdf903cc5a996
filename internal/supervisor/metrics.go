package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	launchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamaswitch",
			Subsystem: "supervisor",
			Name:      "launches_total",
			Help:      "Launch sequences by result (ok, gpu_busy, config_error, failed)",
		},
		[]string{"result"},
	)

	fallbackAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamaswitch",
			Subsystem: "supervisor",
			Name:      "fallback_attempts_total",
			Help:      "Fallback variants tried",
		},
		[]string{"variant"},
	)

	launchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llamaswitch",
			Subsystem: "supervisor",
			Name:      "launch_duration_seconds",
			Help:      "Time from spawn to ready or failure",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 12, 20, 30},
		},
	)

	crashesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "llamaswitch",
		Subsystem: "supervisor",
		Name:      "crashes_total",
		Help:      "Backend exits noticed by the monitor",
	})

	restartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "llamaswitch",
		Subsystem: "supervisor",
		Name:      "restarts_total",
		Help:      "Restart attempts made by the monitor",
	})

	switchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "llamaswitch",
		Subsystem: "supervisor",
		Name:      "switches_total",
		Help:      "Model switches",
	})

	upstreamErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "llamaswitch",
		Subsystem: "supervisor",
		Name:      "upstream_errors_total",
		Help:      "Failed calls to the backend",
	})

	backendUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "llamaswitch",
		Subsystem: "supervisor",
		Name:      "backend_up",
		Help:      "1 while a ready backend is committed",
	})

	restartFailGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "llamaswitch",
		Subsystem: "supervisor",
		Name:      "restart_fail_count",
		Help:      "Consecutive restart failures",
	})

	inflightCompletions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "llamaswitch",
		Subsystem: "supervisor",
		Name:      "inflight_completions",
		Help:      "Completions being proxied",
	})
)

func init() {
	prometheus.MustRegister(
		launchesTotal, fallbackAttempts, launchDuration,
		crashesTotal, restartsTotal, switchesTotal, upstreamErrors,
		backendUp, restartFailGauge, inflightCompletions,
	)
}
