package billing

import "time"

// BillingPeriod is the date range over which usage is aggregated into one bill.
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// NewBillingPeriod builds a validated period. Start must precede End.
func NewBillingPeriod(start, end time.Time) (BillingPeriod, error) {
	if start.IsZero() || end.IsZero() {
		return BillingPeriod{}, ErrInvalidPeriod
	}
	start = start.UTC()
	end = end.UTC()
	if !start.Before(end) {
		return BillingPeriod{}, ErrInvalidPeriod
	}
	return BillingPeriod{Start: start, End: end}, nil
}

// Key returns the persisted representation of the period boundaries.
func (p BillingPeriod) Key() string {
	return p.Start.Format("20060102") + "_" + p.End.Format("20060102")
}

// DueDate returns the payment due date, netDays after the period end.
func (p BillingPeriod) DueDate(netDays int) time.Time {
	if netDays < 0 {
		netDays = 0
	}
	return p.End.AddDate(0, 0, netDays)
}

// IsZero reports whether the period is unset.
func (p BillingPeriod) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}
