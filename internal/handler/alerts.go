package handler

import (
	"fmt"
	"net/http"

	"scanventory-api/internal/model"
	"scanventory-api/internal/service"
	"scanventory-api/pkg/apierror"
	"scanventory-api/pkg/response"
	"scanventory-api/pkg/uid"

	"github.com/go-chi/chi/v5"
)

// AlertHandler handles expiration alert HTTP requests.
type AlertHandler struct {
	alerts *service.AlertService
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(alerts *service.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// List handles GET /api/alerts?dismissed=false|true|all&severity=
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var query service.AlertQuery
	switch d := q.Get("dismissed"); d {
	case "", "false":
		f := false
		query.Dismissed = &f
	case "true":
		t := true
		query.Dismissed = &t
	case "all":
	default:
		response.Error(w, apierror.BadRequest("dismissed must be true, false or all"))
		return
	}

	if sev := model.Severity(q.Get("severity")); sev != "" {
		if !sev.Valid() {
			response.Error(w, apierror.BadRequest("severity must be expired, critical or warning"))
			return
		}
		query.Severity = sev
	}

	alerts, err := h.alerts.List(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.List(w, alerts, len(alerts))
}

// Dismiss handles PUT /api/alerts/{id}/dismiss
func (h *AlertHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uid.IsValid(id) {
		response.Error(w, apierror.NotFound("Alert not found"))
		return
	}

	alert, err := h.alerts.DismissOne(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, alert)
}

// DismissAll handles PUT /api/alerts/dismiss-all
func (h *AlertHandler) DismissAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.alerts.DismissAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, fmt.Sprintf("Dismissed %d alerts", n), int(n))
}

// Generate handles POST /api/alerts/generate
func (h *AlertHandler) Generate(w http.ResponseWriter, r *http.Request) {
	report, err := h.alerts.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Result(w, report, fmt.Sprintf("Generated %d new alerts", report.Created), report.Created)
}
