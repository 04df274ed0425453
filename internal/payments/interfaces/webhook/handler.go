package webhook

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	billing "mhp-cloud/internal/billing/domain"
	"mhp-cloud/internal/payments/application"
)

// ConfirmHandler accepts payment confirmations from the processor. The
// route sits behind the signed-webhook middleware, so requests arriving
// here already carry a valid signature.
type ConfirmHandler struct {
	service *application.PaymentService
	logger  *log.Logger
}

// NewConfirmHandler constructs a handler.
func NewConfirmHandler(service *application.PaymentService, logger *log.Logger) (*ConfirmHandler, error) {
	if service == nil {
		return nil, errors.New("payment webhook: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ConfirmHandler{service: service, logger: logger}, nil
}

type confirmRequest struct {
	BillID     string  `json:"bill_id"`
	Amount     float64 `json:"amount"`
	Method     string  `json:"method"`
	Reference  string  `json:"reference"`
	ReceivedAt string  `json:"received_at"`
}

// ServeHTTP handles POST payment confirmations.
func (h *ConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var receivedAt time.Time
	if req.ReceivedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			http.Error(w, "received_at must be RFC3339", http.StatusBadRequest)
			return
		}
		receivedAt = parsed
	}

	payment, err := h.service.Confirm(r.Context(), application.ConfirmPaymentCommand{
		BillID:     req.BillID,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		if errors.Is(err, billing.ErrBillNotFound) {
			http.Error(w, "bill not found", http.StatusNotFound)
			return
		}
		h.logger.Printf("payment webhook: confirm %s: %v", req.Reference, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"payment_id": payment.ID,
		"bill_id":    payment.BillID,
		"amount":     payment.Amount,
	})
}
