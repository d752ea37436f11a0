package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/routing"
)

// RoutesResponse is the wire format for GET /api/v1/routes.
type RoutesResponse struct {
	// Rules are listed in evaluation order.
	Rules []routing.Rule `json:"rules"`
}

// RoutesHandler handles GET /api/v1/routes.
type RoutesHandler struct {
	logger *zap.Logger
	table  *routing.Table
}

// NewRoutesHandler creates a new RoutesHandler.
func NewRoutesHandler(table *routing.Table, logger *zap.Logger) *RoutesHandler {
	return &RoutesHandler{
		logger: logger.Named("routes"),
		table:  table,
	}
}

// ServeHTTP implements http.Handler.
func (h *RoutesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(RoutesResponse{Rules: h.table.Rules()}); err != nil {
		h.logger.Error("Failed to encode routes response", zap.Error(err))
	}
}
