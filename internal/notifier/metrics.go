package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_dispatch_total",
			Help: "Total dispatch attempts by entity and status.",
		},
		[]string{"entity", "status"},
	)
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_dispatch_duration_seconds",
			Help:    "Duration of entity dispatch calls, including rate-limit waits.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
