package memory

import (
	"context"
	"sync"

	billing "mhp-cloud/internal/billing/domain"
)

// ParkInvoiceRepository is an in-memory invoice store for tests and local
// runs.
type ParkInvoiceRepository struct {
	mu       sync.RWMutex
	invoices map[string]billing.ParkInvoice
}

// NewParkInvoiceRepository constructs an empty repository.
func NewParkInvoiceRepository() *ParkInvoiceRepository {
	return &ParkInvoiceRepository{invoices: make(map[string]billing.ParkInvoice)}
}

// Save inserts or replaces an invoice.
func (r *ParkInvoiceRepository) Save(_ context.Context, invoice *billing.ParkInvoice) error {
	if invoice == nil {
		return billing.ErrEmptyParkID
	}
	if err := invoice.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[invoiceKey(invoice.ParkID, invoice.UtilityType, invoice.Period)] = *invoice
	return nil
}

// FindByParkPeriod returns the invoice for the park, utility, and period.
func (r *ParkInvoiceRepository) FindByParkPeriod(_ context.Context, parkID string, utilityType billing.UtilityType, period billing.BillingPeriod) (*billing.ParkInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	invoice, ok := r.invoices[invoiceKey(parkID, utilityType, period)]
	if !ok {
		return nil, nil
	}
	return &invoice, nil
}

func invoiceKey(parkID string, utilityType billing.UtilityType, period billing.BillingPeriod) string {
	return parkID + "|" + string(utilityType) + "|" + period.Key()
}
