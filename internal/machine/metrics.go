package machine

import "github.com/prometheus/client_golang/prometheus"

var (
	creationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmforge",
			Subsystem: "machine",
			Name:      "creations_total",
			Help:      "Machine creation requests by result",
		},
		[]string{"result"},
	)

	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmforge",
			Subsystem: "machine",
			Name:      "provision_outcomes_total",
			Help:      "Reconciliation outcomes by terminal result",
		},
		[]string{"outcome"},
	)

	provisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vmforge",
			Subsystem: "machine",
			Name:      "provision_duration_seconds",
			Help:      "Wall time of one provisioning attempt",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)
)

func init() {
	prometheus.MustRegister(creationsTotal, outcomesTotal, provisionDuration)
}
