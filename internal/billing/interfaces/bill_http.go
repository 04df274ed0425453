package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"mhp-cloud/internal/audit"
	"mhp-cloud/internal/auth"
	billingapp "mhp-cloud/internal/billing/application"
	billing "mhp-cloud/internal/billing/domain"
	"mhp-cloud/internal/observability/metrics"
)

// BillHandler handles bill APIs.
type BillHandler struct {
	bills       *billingapp.BillService
	runs        *billingapp.ParkRunService
	status      *billingapp.StatusService
	parkChecker auth.ParkTenantChecker
	auditLogger audit.Logger
}

// NewBillHandler constructs a handler.
func NewBillHandler(
	bills *billingapp.BillService,
	runs *billingapp.ParkRunService,
	status *billingapp.StatusService,
	parkChecker auth.ParkTenantChecker,
	auditLogger audit.Logger,
) (*BillHandler, error) {
	if bills == nil {
		return nil, errors.New("bill handler: nil bill service")
	}
	if runs == nil {
		return nil, errors.New("bill handler: nil run service")
	}
	if status == nil {
		return nil, errors.New("bill handler: nil status service")
	}
	return &BillHandler{
		bills:       bills,
		runs:        runs,
		status:      status,
		parkChecker: parkChecker,
		auditLogger: auditLogger,
	}, nil
}

// ServeHTTP handles bill routes under /api/v1/bills and /api/v1/billing-runs.
func (h *BillHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/bills/generate" && r.Method == http.MethodPost {
		h.handleGenerate(w, r)
		return
	}
	if path == "/api/v1/billing-runs" && r.Method == http.MethodPost {
		h.handleRun(w, r)
		return
	}
	if path == "/api/v1/bills/overdue-sweep" && r.Method == http.MethodPost {
		h.handleOverdueSweep(w, r)
		return
	}
	if path == "/api/v1/bills" && r.Method == http.MethodGet {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/bills/") {
		rest := strings.TrimPrefix(path, "/api/v1/bills/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *BillHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParkID      string `json:"park_id"`
		LotID       string `json:"lot_id"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.ensurePark(r, req.ParkID); err != nil {
		respondTenantError(w, err)
		return
	}

	bill, err := h.bills.Generate(r.Context(), billingapp.GenerateBillCommand{
		ParkID: req.ParkID,
		LotID:  req.LotID,
		Period: period,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(billResponse(bill))
	h.logAudit(r, bill.ParkID, bill.ID, "bill.generate", map[string]any{
		"lot_id": bill.LotID,
		"period": bill.Period.Key(),
	})
}

func (h *BillHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParkID      string `json:"park_id"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.ensurePark(r, req.ParkID); err != nil {
		respondTenantError(w, err)
		return
	}

	report, err := h.runs.Run(r.Context(), req.ParkID, period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
	h.logAudit(r, req.ParkID, "", "billing.run", map[string]any{
		"period":    period.Key(),
		"generated": report.Generated,
		"skipped":   report.Skipped,
		"failed":    len(report.Failures),
	})
}

func (h *BillHandler) handleOverdueSweep(w http.ResponseWriter, r *http.Request) {
	flagged, err := h.status.SweepOverdue(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"flagged": flagged})
	h.logAudit(r, "", "", "bill.overdue_sweep", map[string]any{"flagged": flagged})
}

func (h *BillHandler) handleList(w http.ResponseWriter, r *http.Request) {
	parkID := r.URL.Query().Get("park_id")
	if err := h.ensurePark(r, parkID); err != nil {
		respondTenantError(w, err)
		return
	}

	var period *billing.BillingPeriod
	if start, end := r.URL.Query().Get("period_start"), r.URL.Query().Get("period_end"); start != "" || end != "" {
		parsed, err := parsePeriod(start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		period = &parsed
	}

	bills, err := h.status.List(r.Context(), parkID, period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(bills))
	for _, bill := range bills {
		resp = append(resp, billResponse(bill))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *BillHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, id)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "send":
			if r.Method == http.MethodPost {
				h.handleSend(w, r, id)
				return
			}
		case "void":
			if r.Method == http.MethodPost {
				h.handleVoid(w, r, id)
				return
			}
		case "pay":
			if r.Method == http.MethodPost {
				h.handlePay(w, r, id)
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExportPDF(w, r, id)
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExportXLSX(w, r, id)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *BillHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	bill, err := h.status.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := billResponse(bill)
	resp["charges"] = bill.Charges
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *BillHandler) handleSend(w http.ResponseWriter, r *http.Request, id string) {
	bill, err := h.status.MarkSent(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(billResponse(bill))
	h.logAudit(r, bill.ParkID, bill.ID, "bill.send", nil)
}

func (h *BillHandler) handlePay(w http.ResponseWriter, r *http.Request, id string) {
	bill, err := h.status.MarkPaid(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(billResponse(bill))
	h.logAudit(r, bill.ParkID, bill.ID, "bill.pay", nil)
}

func (h *BillHandler) handleVoid(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	bill, err := h.status.Void(r.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(billResponse(bill))
	h.logAudit(r, bill.ParkID, bill.ID, "bill.void", map[string]any{
		"reason": req.Reason,
	})
}

func (h *BillHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBillExport("pdf", result, time.Since(start))
	}()

	bill, err := h.status.Get(r.Context(), id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildBillPDF(bill)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, bill.ParkID, bill.ID, "bill.export", map[string]any{"format": "pdf"})
}

func (h *BillHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBillExport("xlsx", result, time.Since(start))
	}()

	bill, err := h.status.Get(r.Context(), id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildBillXLSX(bill)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, bill.ParkID, bill.ID, "bill.export", map[string]any{"format": "xlsx"})
}

func (h *BillHandler) ensurePark(r *http.Request, parkID string) error {
	tenantID := auth.TenantIDFromContext(r.Context())
	if h.parkChecker == nil || tenantID == "" || parkID == "" {
		return nil
	}
	return h.parkChecker.EnsureParkTenant(r.Context(), tenantID, parkID)
}

func (h *BillHandler) logAudit(r *http.Request, parkID, billID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "bill",
		ResourceID:   billID,
		ParkID:       parkID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func billResponse(bill *billing.UtilityBill) map[string]any {
	return map[string]any{
		"bill_id":      bill.ID,
		"park_id":      bill.ParkID,
		"lot_id":       bill.LotID,
		"period_start": bill.Period.Start.Format("2006-01-02"),
		"period_end":   bill.Period.End.Format("2006-01-02"),
		"status":       bill.Status,
		"due_date":     bill.DueDate.Format("2006-01-02"),
		"total_amount": bill.TotalAmount(),
	}
}

func parsePeriod(start, end string) (billing.BillingPeriod, error) {
	if start == "" || end == "" {
		return billing.BillingPeriod{}, errors.New("bill handler: period_start and period_end required (YYYY-MM-DD)")
	}
	startAt, err := time.Parse("2006-01-02", start)
	if err != nil {
		return billing.BillingPeriod{}, errors.New("bill handler: period_start must be YYYY-MM-DD")
	}
	endAt, err := time.Parse("2006-01-02", end)
	if err != nil {
		return billing.BillingPeriod{}, errors.New("bill handler: period_end must be YYYY-MM-DD")
	}
	return billing.NewBillingPeriod(startAt, endAt)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var dup *billing.DuplicateBillError
	if errors.As(err, &dup) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if errors.Is(err, billing.ErrInvalidStatusTransition) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if errors.Is(err, billing.ErrBillNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
