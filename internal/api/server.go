package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/classifier"
	"github.com/smartcity/dispatcher/internal/indexer"
)

// NewMux registers every dispatcher endpoint on a fresh ServeMux. With a nil
// idx the result listing endpoints are not served.
func NewMux(c *classifier.Classifier, p Processor, idx *indexer.Indexer, logger *zap.Logger) *http.ServeMux {
	var index Index
	if idx != nil {
		index = idx
	}

	mux := http.NewServeMux()
	mux.Handle("/health", NewHealthHandler(c, logger))
	mux.Handle("/api/v1/routes", NewRoutesHandler(c.Table(), logger))
	mux.Handle("/api/v1/classify", NewClassifyHandler(c, logger))
	mux.Handle(alertsPath, NewAlertsHandler(p, index, logger))
	if index != nil {
		mux.Handle(alertsPath+"/", NewAlertHandler(index, logger))
	}
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
