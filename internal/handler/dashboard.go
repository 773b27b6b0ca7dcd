package handler

import (
	"net/http"

	"scanventory-api/internal/service"
	"scanventory-api/pkg/response"
)

// DashboardHandler serves the dashboard counters.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats handles GET /api/dashboard
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, stats)
}
