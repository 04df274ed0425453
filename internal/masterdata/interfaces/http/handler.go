package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mhp-cloud/internal/audit"
	"mhp-cloud/internal/auth"
	"mhp-cloud/internal/masterdata/application"
	masterdata "mhp-cloud/internal/masterdata/domain"
)

// ParkAdminHandler handles park and lot administration.
type ParkAdminHandler struct {
	service     *application.ParkService
	auditLogger audit.Logger
}

// NewParkAdminHandler constructs a handler.
func NewParkAdminHandler(service *application.ParkService, auditLogger audit.Logger) (*ParkAdminHandler, error) {
	if service == nil {
		return nil, errors.New("park admin handler: nil service")
	}
	return &ParkAdminHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/parks and /api/v1/lots routes.
func (h *ParkAdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/parks" && r.Method == http.MethodPost:
		h.handleUpsertPark(w, r)
	case path == "/api/v1/lots" && r.Method == http.MethodPost:
		h.handleUpsertLot(w, r)
	case path == "/api/v1/lots" && r.Method == http.MethodGet:
		h.handleListLots(w, r)
	case strings.HasPrefix(path, "/api/v1/lots/") && strings.HasSuffix(path, "/archive") && r.Method == http.MethodPost:
		lotID := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/lots/"), "/archive")
		h.handleArchiveLot(w, r, lotID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type parkRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Region   string `json:"region"`
}

func (h *ParkAdminHandler) handleUpsertPark(w http.ResponseWriter, r *http.Request) {
	var req parkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	park := &masterdata.Park{
		ID:       req.ID,
		TenantID: auth.TenantIDFromContext(r.Context()),
		Name:     req.Name,
		Timezone: req.Timezone,
		Region:   req.Region,
	}
	if err := h.service.UpsertPark(r.Context(), park); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": park.ID})
	h.logAudit(r, "park.upsert", "park", park.ID, park.ID)
}

type lotRequest struct {
	ID            string  `json:"id"`
	ParkID        string  `json:"park_id"`
	LotNumber     string  `json:"lot_number"`
	Occupants     int     `json:"occupants"`
	SquareFootage float64 `json:"square_footage"`
	ActiveTenancy string  `json:"active_tenancy"`
}

func (h *ParkAdminHandler) handleUpsertLot(w http.ResponseWriter, r *http.Request) {
	var req lotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	lot := &masterdata.Lot{
		ID:            req.ID,
		ParkID:        req.ParkID,
		LotNumber:     req.LotNumber,
		Occupants:     req.Occupants,
		SquareFootage: req.SquareFootage,
		ActiveTenancy: req.ActiveTenancy,
	}
	if err := h.service.UpsertLot(r.Context(), lot); err != nil {
		if errors.Is(err, masterdata.ErrParkNotFound) {
			http.Error(w, "park not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": lot.ID})
	h.logAudit(r, "lot.upsert", "lot", lot.ID, lot.ParkID)
}

func (h *ParkAdminHandler) handleListLots(w http.ResponseWriter, r *http.Request) {
	parkID := r.URL.Query().Get("park_id")
	lots, err := h.service.ListLots(r.Context(), parkID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := make([]map[string]any, 0, len(lots))
	for _, lot := range lots {
		resp = append(resp, map[string]any{
			"id":             lot.ID,
			"park_id":        lot.ParkID,
			"lot_number":     lot.LotNumber,
			"occupants":      lot.Occupants,
			"square_footage": lot.SquareFootage,
			"status":         lot.Status,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *ParkAdminHandler) handleArchiveLot(w http.ResponseWriter, r *http.Request, lotID string) {
	if err := h.service.ArchiveLot(r.Context(), lotID); err != nil {
		if errors.Is(err, masterdata.ErrLotNotFound) {
			http.Error(w, "lot not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "lot.archive", "lot", lotID, "")
}

func (h *ParkAdminHandler) logAudit(r *http.Request, action, resourceType, resourceID, parkID string) {
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
