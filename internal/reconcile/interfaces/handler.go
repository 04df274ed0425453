package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	billing "mhp-cloud/internal/billing/domain"
	"mhp-cloud/internal/reconcile/application"
)

// RunHandler triggers a reconcile run over a park and period.
type RunHandler struct {
	service *application.Service
}

// NewRunHandler constructs a handler.
func NewRunHandler(service *application.Service) (*RunHandler, error) {
	if service == nil {
		return nil, errors.New("reconcile handler: nil service")
	}
	return &RunHandler{service: service}, nil
}

// ServeHTTP handles POST /api/v1/reconcile/run.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ParkID      string `json:"park_id"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	startAt, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		http.Error(w, "period_start must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	endAt, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		http.Error(w, "period_end must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	period, err := billing.NewBillingPeriod(startAt, endAt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.Run(r.Context(), req.ParkID, period)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
