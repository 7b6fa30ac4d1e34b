package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweepRunsTotal, sweepReleasedTotal) }

var (
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_sweep_runs_total",
			Help: "Reconciliation sweep executions by status.",
		},
		[]string{"status"}, // 'ok', 'error'
	)

	sweepReleasedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activation_sweep_released_total",
			Help: "Total number of expired bindings released by sweeps.",
		},
	)
)

func IncSweepRun(status string) {
	sweepRunsTotal.WithLabelValues(norm(status)).Inc()
}

func AddSweepReleased(n int) {
	sweepReleasedTotal.Add(float64(n))
}
