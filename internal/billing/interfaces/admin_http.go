package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mhp-cloud/internal/audit"
	"mhp-cloud/internal/auth"
	billing "mhp-cloud/internal/billing/domain"
)

// RateTableWriter appends rate table versions.
type RateTableWriter interface {
	Save(ctx context.Context, table *billing.RateTable) error
}

// ParkInvoiceWriter records master-metered park invoices.
type ParkInvoiceWriter interface {
	Save(ctx context.Context, invoice *billing.ParkInvoice) error
}

// AdminHandler handles rate table and park invoice administration. Rate
// tables are append-only versions; corrections are a new version with a
// later effective date.
type AdminHandler struct {
	rateTables  RateTableWriter
	invoices    ParkInvoiceWriter
	auditLogger audit.Logger
}

// NewAdminHandler constructs a handler.
func NewAdminHandler(rateTables RateTableWriter, invoices ParkInvoiceWriter, auditLogger audit.Logger) (*AdminHandler, error) {
	if rateTables == nil {
		return nil, errors.New("billing admin handler: nil rate table writer")
	}
	if invoices == nil {
		return nil, errors.New("billing admin handler: nil invoice writer")
	}
	return &AdminHandler{rateTables: rateTables, invoices: invoices, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/rate-tables and /api/v1/park-invoices.
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/rate-tables" && r.Method == http.MethodPost:
		h.handleCreateRateTable(w, r)
	case r.URL.Path == "/api/v1/park-invoices" && r.Method == http.MethodPost:
		h.handleRecordInvoice(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type rateTierRequest struct {
	MinUsage float64  `json:"min_usage"`
	MaxUsage *float64 `json:"max_usage"`
	Rate     float64  `json:"rate"`
}

type rateTableRequest struct {
	ParkID        string            `json:"park_id"`
	UtilityType   string            `json:"utility_type"`
	Method        string            `json:"method"`
	Tiers         []rateTierRequest `json:"tiers"`
	BaseRate      float64           `json:"base_rate"`
	FlatAmount    float64           `json:"flat_amount"`
	Basis         string            `json:"basis"`
	EffectiveFrom string            `json:"effective_from"`
}

func (h *AdminHandler) handleCreateRateTable(w http.ResponseWriter, r *http.Request) {
	var req rateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	effectiveFrom, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		http.Error(w, "effective_from must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	utilityType, ok := billing.NormalizeUtilityType(req.UtilityType)
	if !ok {
		http.Error(w, "unknown utility type", http.StatusBadRequest)
		return
	}
	method, ok := billing.NormalizeBillingMethod(req.Method)
	if !ok {
		http.Error(w, "unknown billing method", http.StatusBadRequest)
		return
	}
	var basis billing.AllocationBasis
	if req.Basis != "" {
		basis, ok = billing.NormalizeAllocationBasis(req.Basis)
		if !ok {
			http.Error(w, "unknown allocation basis", http.StatusBadRequest)
			return
		}
	}
	tiers := make([]billing.RateTier, 0, len(req.Tiers))
	for _, tier := range req.Tiers {
		tiers = append(tiers, billing.RateTier{
			MinUsage: tier.MinUsage,
			MaxUsage: tier.MaxUsage,
			Rate:     tier.Rate,
		})
	}
	table := &billing.RateTable{
		ID:            billing.NewRateTableID(),
		TenantID:      auth.TenantIDFromContext(r.Context()),
		ParkID:        req.ParkID,
		UtilityType:   utilityType,
		Method:        method,
		Tiers:         tiers,
		BaseRate:      req.BaseRate,
		FlatAmount:    req.FlatAmount,
		Basis:         basis,
		EffectiveFrom: effectiveFrom.UTC(),
	}
	if err := h.rateTables.Save(r.Context(), table); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": table.ID})
	h.logAudit(r, "rate_table.create", "rate_table", table.ID, table.ParkID)
}

type parkInvoiceRequest struct {
	ParkID      string  `json:"park_id"`
	UtilityType string  `json:"utility_type"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	TotalUsage  float64 `json:"total_usage"`
	TotalCost   float64 `json:"total_cost"`
}

func (h *AdminHandler) handleRecordInvoice(w http.ResponseWriter, r *http.Request) {
	var req parkInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	utilityType, ok := billing.NormalizeUtilityType(req.UtilityType)
	if !ok {
		http.Error(w, "unknown utility type", http.StatusBadRequest)
		return
	}
	invoice := &billing.ParkInvoice{
		ID:          billing.NewParkInvoiceID(),
		TenantID:    auth.TenantIDFromContext(r.Context()),
		ParkID:      req.ParkID,
		UtilityType: utilityType,
		Period:      period,
		TotalUsage:  req.TotalUsage,
		TotalCost:   req.TotalCost,
	}
	if err := h.invoices.Save(r.Context(), invoice); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": invoice.ID})
	h.logAudit(r, "park_invoice.record", "park_invoice", invoice.ID, invoice.ParkID)
}

func (h *AdminHandler) logAudit(r *http.Request, action, resourceType, resourceID, parkID string) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ParkID:       parkID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
