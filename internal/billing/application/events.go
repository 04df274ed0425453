package application

import (
	"context"
	"time"
)

// BillGenerated is emitted when a bill is first created for a lot and period.
type BillGenerated struct {
	BillID      string    `json:"bill_id"`
	TenantID    string    `json:"tenant_id"`
	ParkID      string    `json:"park_id"`
	LotID       string    `json:"lot_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	TotalAmount float64   `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BillSent is emitted when a bill is delivered to the resident.
type BillSent struct {
	BillID     string    `json:"bill_id"`
	TenantID   string    `json:"tenant_id"`
	ParkID     string    `json:"park_id"`
	LotID      string    `json:"lot_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BillPaid is emitted when a payment is confirmed.
type BillPaid struct {
	BillID     string    `json:"bill_id"`
	TenantID   string    `json:"tenant_id"`
	ParkID     string    `json:"park_id"`
	LotID      string    `json:"lot_id"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BillOverdue is emitted when the overdue sweep flags an unpaid bill.
type BillOverdue struct {
	BillID     string    `json:"bill_id"`
	TenantID   string    `json:"tenant_id"`
	ParkID     string    `json:"park_id"`
	LotID      string    `json:"lot_id"`
	DueDate    time.Time `json:"due_date"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BillVoided is emitted when an operator voids a bill.
type BillVoided struct {
	BillID     string    `json:"bill_id"`
	TenantID   string    `json:"tenant_id"`
	ParkID     string    `json:"park_id"`
	LotID      string    `json:"lot_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher emits bill lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
