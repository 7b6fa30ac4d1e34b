package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(verificationsTotal, codesGeneratedTotal, verifyLatencyMs)
}

var (
	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_verifications_total",
			Help: "Verification requests by outcome.",
		},
		[]string{"outcome"}, // 'accepted', 'reconfirmed', 'expired', 'not_found', 'already_used', 'device_bound', 'invalid', 'error'
	)

	codesGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activation_codes_generated_total",
			Help: "Total number of activation codes generated.",
		},
	)

	verifyLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "activation_verify_latency_ms",
			Help:    "Verify call latency distribution in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 200, 400, 800},
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncVerification(outcome string) {
	verificationsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddCodesGenerated(n int) {
	codesGeneratedTotal.Add(float64(n))
}

func ObserveVerifyLatency(ms float64) {
	verifyLatencyMs.Observe(ms)
}
