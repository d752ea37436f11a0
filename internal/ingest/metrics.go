package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourcePoll   = "poll"
	sourceStream = "stream"
)

var ingestRecordsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dispatcher_ingest_records_total",
		Help: "Alert records read from ingestion sources, by source and status.",
	},
	[]string{"source", "status"},
)
