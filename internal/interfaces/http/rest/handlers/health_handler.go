package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthCheck represents an individual component health check.
type HealthCheck struct {
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	version   string
	startedAt time.Time
	checks    map[string]Check
}

// NewHealthHandler creates a health handler running checks on /ready.
func NewHealthHandler(version string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{version: version, startedAt: time.Now(), checks: checks}
}

// Liveness handles GET /health
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Readiness handles GET /ready
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    make(map[string]HealthCheck, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		start := time.Now()
		check := HealthCheck{Status: StatusHealthy}
		if err := h.checks[name](ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Error = err.Error()
			resp.Status = StatusUnhealthy
		}
		check.Duration = time.Since(start)
		resp.Checks[name] = check
	}

	status := http.StatusOK
	if resp.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeHealth(w, status, resp)
}

func writeHealth(w http.ResponseWriter, status int, resp *HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
