package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_alerts_total",
			Help: "Alerts that reached a terminal state, by state.",
		},
		[]string{"state"},
	)
	classificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_classification_total",
			Help: "Classification outcomes by kind (matched, fallback, escalated, empty).",
		},
		[]string{"kind"},
	)
)
