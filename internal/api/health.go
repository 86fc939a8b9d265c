package api

import (
	"net/http"

	"github.com/onoff-automations/schedule-modes/internal/api/respond"
	"github.com/onoff-automations/schedule-modes/internal/health"
)

// HealthHandler exposes service health.
type HealthHandler struct {
	svc *health.Service
}

func NewHealthHandler(svc *health.Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// CheckHealth GET /api/health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	state := "healthy"
	if !h.svc.IsHealthy() {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	respond.WriteJSON(w, status, map[string]interface{}{
		"status":     state,
		"components": h.svc.Components(),
	})
}
