package handler

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Pinger checks connectivity to one dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a health handler over the named dependencies
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Uptime  string            `json:"uptime,omitempty"`
}

const version = "1.0.0"

var startTime = time.Now()

// GetHealth handles GET /health
// Basic health check - returns 200 OK if service is running
func GetHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
		Checks:  map[string]string{},
	}, http.StatusOK)
}

// GetLiveness handles GET /health/live
func GetLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "alive"}, http.StatusOK)
}

// GetReadiness handles GET /health/ready
// Ready only when every dependency (chain RPC, Redis) answers
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	status := "ready"

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = "not_ready"
			continue
		}
		checks[name] = "healthy"
	}

	httpStatus := http.StatusOK
	if status != "ready" {
		httpStatus = http.StatusServiceUnavailable
	}

	respondJSON(w, HealthResponse{
		Status:  status,
		Version: version,
		Uptime:  time.Since(startTime).String(),
		Checks:  checks,
	}, httpStatus)
}
