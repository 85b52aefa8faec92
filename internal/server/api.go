package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

const apiVersion = "1.0.0"

// APIHandler handles HTTP API requests from devices and the dashboard
type APIHandler struct {
	svc    *Service
	hub    *LiveHub // may be nil
	apiKey string
	logger zerolog.Logger
}

// NewAPIHandler creates a new API handler. An empty apiKey disables key
// validation entirely.
func NewAPIHandler(svc *Service, apiKey string, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		svc:    svc,
		apiKey: apiKey,
		logger: logger,
	}
}

// SetLiveHub attaches the WebSocket hub so accepted samples are pushed to
// connected dashboards
func (api *APIHandler) SetLiveHub(hub *LiveHub) {
	api.hub = hub
}

// Routes registers all API endpoints on the mux under the given base path
func (api *APIHandler) Routes(mux *http.ServeMux, basePath string) {
	mux.HandleFunc(basePath+"/record", api.requireAPIKey(api.HandleRecord))
	mux.HandleFunc(basePath+"/latest", api.HandleLatest)
	mux.HandleFunc(basePath+"/history", api.HandleHistory)
	mux.HandleFunc(basePath+"/status", api.HandleStatus)
	mux.HandleFunc(basePath+"/demo/generate", api.requireAPIKey(api.HandleDemoGenerate))
	mux.HandleFunc(basePath+"/health", api.HandleHealth)
	mux.HandleFunc(basePath+"/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != basePath && r.URL.Path != basePath+"/" {
			writeError(w, http.StatusNotFound, "Endpoint not found")
			return
		}
		api.HandleIndex(w, r)
	})
}

// HandleRecord accepts one spectral reading from a device
func (api *APIHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sample, err := api.svc.Record(r.Context(), raw)
	if err != nil {
		if errors.Is(err, models.ErrMissingSensorID) {
			writeError(w, http.StatusBadRequest, "sensor_id is required")
			return
		}
		api.logger.Error().Err(err).Msg("Record failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if api.hub != nil {
		api.hub.Broadcast(sample)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"message":   "Data recorded successfully",
		"timestamp": sample.Timestamp,
		"sensor_id": sample.SensorID,
	})
}

// HandleLatest returns the most recent sample for the live dashboard
func (api *APIHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sample, source := api.svc.Latest(r.Context())
	api.logger.Debug().Str("source", source).Msg("Latest served")

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    sample,
	})
}

// HandleHistory returns samples in a time range for the history charts
func (api *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := HistoryQuery{
		SensorID: r.URL.Query().Get("sensor_id"),
	}

	if v := r.URL.Query().Get("start"); v != "" {
		start, err := parseTimeParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start timestamp")
			return
		}
		query.Start = start
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err := parseTimeParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end timestamp")
			return
		}
		query.End = end
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			query.Limit = limit
		}
	}

	samples, query, source := api.svc.History(r.Context(), query)
	api.logger.Debug().Str("source", source).Int("count", len(samples)).Msg("History served")

	if samples == nil {
		samples = []*models.Sample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    samples,
		"count":   len(samples),
		"range": map[string]string{
			"start": query.Start.Format(time.RFC3339),
			"end":   query.End.Format(time.RFC3339),
		},
	})
}

// HandleStatus reports server and durable store health
func (api *APIHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	report := api.svc.Status(r.Context())

	body := map[string]any{
		"server":      report.Server,
		"influxdb":    report.Influx,
		"recordCount": report.RecordCount,
		"timestamp":   report.Timestamp,
	}
	if report.LastDataTime != nil {
		body["lastDataTime"] = report.LastDataTime
	}
	if stats, ok := api.svc.ArchiverStats(); ok {
		body["archive"] = stats
	}

	writeJSON(w, http.StatusOK, body)
}

// HandleDemoGenerate inserts synthetic samples for testing the dashboard
func (api *APIHandler) HandleDemoGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Count int `json:"count"`
	}
	// An empty or malformed body means "use the default count"
	_ = json.NewDecoder(r.Body).Decode(&body)

	generated, total := api.svc.GenerateDemo(body.Count)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Generated %d demo records", generated),
		"totalRecords": total,
	})
}

// HandleHealth is a liveness check
func (api *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// HandleIndex describes the API
func (api *APIHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Cheesense API",
		"version":     apiVersion,
		"description": "Spectral telemetry ingestion and query API",
		"endpoints": map[string]string{
			"POST /record":        "Record a spectral reading",
			"GET /latest":         "Most recent reading",
			"GET /history":        "Readings in a time range",
			"GET /status":         "Server and database status",
			"POST /demo/generate": "Generate demo data",
		},
	})
}

// requireAPIKey validates the shared secret when one is configured.
// Devices send it via the X-API-Key header; the query parameter form
// exists for browser-driven testing.
func (api *APIHandler) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api.apiKey == "" {
			next(w, r)
			return
		}

		provided := r.Header.Get("X-API-Key")
		if provided == "" {
			provided = r.URL.Query().Get("apiKey")
		}
		if provided != api.apiKey {
			writeError(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		next(w, r)
	}
}

// RequestLogger logs every request with a generated request ID
func RequestLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// AllowCORS answers preflight requests and marks every response as
// cross-origin readable so browser dashboards on other ports can call the API.
func AllowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// parseTimeParam accepts RFC3339 with or without sub-second precision
func parseTimeParam(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, v)
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
