package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is the shape health checks need from a backend.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	remote Pinger
	stream Pinger
}

// NewHealthChecker creates a new health checker. stream may be nil when the
// event stream is not configured.
func NewHealthChecker(remote, stream Pinger) *HealthChecker {
	return &HealthChecker{remote: remote, stream: stream}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") == "extended" {
		checks := make(map[string]string)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if h.remote != nil {
			if err := h.remote.HealthCheck(ctx); err != nil {
				response.Status = "unhealthy"
				checks["remote_store"] = "unhealthy: " + err.Error()
			} else {
				checks["remote_store"] = "healthy"
			}
		}
		if h.stream != nil {
			if err := h.stream.HealthCheck(ctx); err != nil {
				response.Status = "unhealthy"
				checks["event_stream"] = "unhealthy: " + err.Error()
			} else {
				checks["event_stream"] = "healthy"
			}
		}

		response.Checks = checks

		statusCode := http.StatusOK
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(response)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
