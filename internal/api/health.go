// Package api provides HTTP API endpoints for the dispatcher.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/classifier"
	"github.com/smartcity/dispatcher/internal/types"
)

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`

	// Version is the API schema version. Currently "1".
	Version string `json:"version"`

	// Rules is the number of routing rules loaded.
	Rules int `json:"rules"`

	// KnownEntities lists every entity a classification can produce.
	KnownEntities []types.EntityID `json:"knownEntities"`

	FallbackPolicy string `json:"fallbackPolicy"`

	// UpSince is when the service started.
	UpSince string `json:"upSince"`
}

// HealthHandler handles GET /health.
type HealthHandler struct {
	logger     *zap.Logger
	classifier *classifier.Classifier
	startTime  time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(c *classifier.Classifier, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger:     logger.Named("health"),
		classifier: c,
		startTime:  time.Now(),
	}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:         "ok",
		Version:        "1",
		Rules:          h.classifier.Table().Len(),
		KnownEntities:  h.classifier.KnownEntities(),
		FallbackPolicy: string(h.classifier.Options().FallbackPolicy),
		UpSince:        h.startTime.UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
