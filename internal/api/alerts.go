package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/engine"
	"github.com/smartcity/dispatcher/internal/indexer"
	"github.com/smartcity/dispatcher/internal/ingest"
	"github.com/smartcity/dispatcher/internal/types"
)

const (
	alertsPath        = "/api/v1/alerts"
	maxAlertBodyBytes = 1 << 20
	defaultListLimit  = 50
)

// ErrorResponse is returned for every 4xx/5xx answer with a JSON body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Classifier is the subset of classifier.Classifier the API needs.
type Classifier interface {
	Classify(a types.AlertRecord) (types.ClassificationResult, error)
}

// Processor runs an alert through the engine.
type Processor interface {
	Process(ctx context.Context, a types.AlertRecord) engine.Result
}

// ClassifyHandler handles POST /api/v1/classify. It never dispatches.
type ClassifyHandler struct {
	logger     *zap.Logger
	classifier Classifier
}

// NewClassifyHandler creates a new ClassifyHandler.
func NewClassifyHandler(c Classifier, logger *zap.Logger) *ClassifyHandler {
	return &ClassifyHandler{
		logger:     logger.Named("classify"),
		classifier: c,
	}
}

// ServeHTTP implements http.Handler.
func (h *ClassifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a, ok := decodeAlert(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.classifier.Classify(a)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrMalformedAlert) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error()}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// Index is the read side of the recent-results store.
type Index interface {
	Get(alertID string) (engine.Result, bool)
	Query(q indexer.Query) []engine.Result
}

// AlertListResponse is the response for GET /api/v1/alerts.
type AlertListResponse struct {
	Results []engine.Result `json:"results"`
	Total   int             `json:"total"`
}

// AlertsHandler handles POST /api/v1/alerts (push ingestion) and, when an
// index is configured, GET /api/v1/alerts (recent results).
type AlertsHandler struct {
	logger    *zap.Logger
	processor Processor
	index     Index
}

// NewAlertsHandler creates a new AlertsHandler. index may be nil.
func NewAlertsHandler(p Processor, index Index, logger *zap.Logger) *AlertsHandler {
	return &AlertsHandler{
		logger:    logger.Named("alerts"),
		processor: p,
		index:     index,
	}
}

// ServeHTTP implements http.Handler.
func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost:
		h.process(w, r)
	case r.Method == http.MethodGet && h.index != nil:
		h.list(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list supports ?state=, ?entity= and ?limit= (default 50).
func (h *AlertsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := indexer.Query{
		State:  types.AlertState(r.URL.Query().Get("state")),
		Entity: types.EntityID(r.URL.Query().Get("entity")),
		Limit:  defaultListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"}, h.logger)
			return
		}
		q.Limit = limit
	}

	results := h.index.Query(q)
	writeJSON(w, http.StatusOK, AlertListResponse{Results: results, Total: len(results)}, h.logger)
}

func (h *AlertsHandler) process(w http.ResponseWriter, r *http.Request) {
	a, ok := decodeAlert(w, r, h.logger)
	if !ok {
		return
	}

	res := h.processor.Process(r.Context(), a)

	status := http.StatusOK
	switch res.State {
	case types.StateRejected:
		status = http.StatusUnprocessableEntity
	case types.StateFailed:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res, h.logger)
}

// AlertHandler handles GET /api/v1/alerts/{id}.
type AlertHandler struct {
	logger *zap.Logger
	index  Index
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(index Index, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		logger: logger.Named("alert"),
		index:  index,
	}
}

// ServeHTTP implements http.Handler.
func (h *AlertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, alertsPath+"/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	res, ok := h.index.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "alert " + id + " not found"}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, res, h.logger)
}

func decodeAlert(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (types.AlertRecord, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAlertBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "read body: " + err.Error()}, logger)
		return types.AlertRecord{}, false
	}
	a, err := ingest.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()}, logger)
		return types.AlertRecord{}, false
	}
	return a, true
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
