package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mhp-cloud/internal/auth"
	billing "mhp-cloud/internal/billing/domain"
	masterdata "mhp-cloud/internal/masterdata/domain"
	"mhp-cloud/internal/observability/metrics"
)

const defaultDueNetDays = 15

// ParkTotals carries the master-metered usage and cost allocated by RUBS.
type ParkTotals struct {
	TotalUsage float64
	TotalCost  float64
}

// UsageProvider supplies the consumption inputs for charge calculation.
// A nil result means no data exists for the period; the bill assembler
// skips that utility with a warning rather than failing the lot.
type UsageProvider interface {
	MeterUsage(ctx context.Context, lotID string, utilityType billing.UtilityType, period billing.BillingPeriod) (*billing.MeterUsage, error)
	ParkTotals(ctx context.Context, parkID string, utilityType billing.UtilityType, period billing.BillingPeriod) (*ParkTotals, error)
}

// GenerateBillCommand asks for one lot's bill for a period.
type GenerateBillCommand struct {
	ParkID string
	LotID  string
	Period billing.BillingPeriod
}

// BillService assembles utility bills.
type BillService struct {
	bills      billing.BillRepository
	resolver   *billing.Resolver
	lots       masterdata.LotRepository
	usage      UsageProvider
	publisher  EventPublisher
	clock      Clock
	logger     *log.Logger
	tenantID   string
	dueNetDays int
}

// NewBillService constructs the bill assembler.
func NewBillService(
	bills billing.BillRepository,
	resolver *billing.Resolver,
	lots masterdata.LotRepository,
	usage UsageProvider,
	publisher EventPublisher,
	clock Clock,
	logger *log.Logger,
	tenantID string,
	dueNetDays int,
) (*BillService, error) {
	if bills == nil {
		return nil, errors.New("bill service: nil bill repository")
	}
	if resolver == nil {
		return nil, errors.New("bill service: nil resolver")
	}
	if lots == nil {
		return nil, errors.New("bill service: nil lot repository")
	}
	if usage == nil {
		return nil, errors.New("bill service: nil usage provider")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	if dueNetDays <= 0 {
		dueNetDays = defaultDueNetDays
	}
	return &BillService{
		bills:      bills,
		resolver:   resolver,
		lots:       lots,
		usage:      usage,
		publisher:  publisher,
		clock:      clock,
		logger:     logger,
		tenantID:   tenantID,
		dueNetDays: dueNetDays,
	}, nil
}

// Generate assembles and persists a bill for one lot. Utilities without a
// rate table or without usage data are skipped with a warning; a meter
// anomaly or a misconfigured table fails the whole lot so nobody gets
// billed on suspect inputs.
func (s *BillService) Generate(ctx context.Context, cmd GenerateBillCommand) (*billing.UtilityBill, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBillGenerate(result, time.Since(start))
	}()

	bill, err := s.generate(ctx, cmd)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return bill, nil
}

func (s *BillService) generate(ctx context.Context, cmd GenerateBillCommand) (*billing.UtilityBill, error) {
	if cmd.ParkID == "" {
		return nil, billing.ErrEmptyParkID
	}
	if cmd.LotID == "" {
		return nil, billing.ErrEmptyLotID
	}
	if cmd.Period.IsZero() || !cmd.Period.Start.Before(cmd.Period.End) {
		return nil, billing.ErrInvalidPeriod
	}

	lot, err := s.lots.Get(ctx, cmd.LotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("bill service: lot %q not found", cmd.LotID)
	}
	if lot.ParkID != cmd.ParkID {
		return nil, fmt.Errorf("bill service: lot %q does not belong to park %q", cmd.LotID, cmd.ParkID)
	}
	if !lot.IsActive() {
		return nil, fmt.Errorf("bill service: lot %q is archived", cmd.LotID)
	}

	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		tenantID = s.tenantID
	}
	if tenantID != "" && lot.TenantID != "" && lot.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}

	existing, err := s.bills.FindActiveByLotAndPeriod(ctx, cmd.LotID, cmd.Period)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &billing.DuplicateBillError{
			LotID:      cmd.LotID,
			PeriodKey:  cmd.Period.Key(),
			ExistingID: existing.ID,
		}
	}

	charges, err := s.assembleCharges(ctx, cmd, lot)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, &billing.ConfigurationError{
			ParkID: cmd.ParkID,
			Reason: "no billable utilities for lot " + cmd.LotID,
		}
	}

	version, err := s.bills.NextVersion(ctx, cmd.LotID, cmd.Period)
	if err != nil {
		return nil, err
	}
	billID, err := billing.BuildBillID(cmd.LotID, cmd.Period, version)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	dueDate := cmd.Period.DueDate(s.dueNetDays)
	bill, err := billing.NewUtilityBill(billID, tenantID, cmd.ParkID, cmd.LotID, cmd.Period, charges, dueDate, now)
	if err != nil {
		return nil, err
	}

	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := BillGenerated{
			BillID:      bill.ID,
			TenantID:    bill.TenantID,
			ParkID:      bill.ParkID,
			LotID:       bill.LotID,
			PeriodStart: bill.Period.Start,
			PeriodEnd:   bill.Period.End,
			TotalAmount: bill.TotalAmount(),
			OccurredAt:  now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Printf("bill service: publish BillGenerated for %s: %v", bill.ID, err)
		}
	}
	return bill, nil
}

// Recompute re-derives the charges for an existing bill from the current
// rate tables and usage data. Archived lots are allowed; the bill already
// exists and the comparison is still meaningful.
func (s *BillService) Recompute(ctx context.Context, bill *billing.UtilityBill) ([]billing.UtilityCharge, error) {
	if bill == nil {
		return nil, errors.New("bill service: nil bill")
	}
	lot, err := s.lots.Get(ctx, bill.LotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("bill service: lot %q not found", bill.LotID)
	}
	cmd := GenerateBillCommand{ParkID: bill.ParkID, LotID: bill.LotID, Period: bill.Period}
	return s.assembleCharges(ctx, cmd, lot)
}

func (s *BillService) assembleCharges(ctx context.Context, cmd GenerateBillCommand, lot *masterdata.Lot) ([]billing.UtilityCharge, error) {
	asOf := cmd.Period.End
	utilities, err := s.resolver.ConfiguredUtilities(ctx, cmd.ParkID, asOf)
	if err != nil {
		return nil, err
	}

	var allocationLots []billing.AllocationLot
	charges := make([]billing.UtilityCharge, 0, len(utilities))

	for _, utility := range utilities {
		table, err := s.resolver.Resolve(ctx, cmd.ParkID, utility, asOf)
		if err != nil {
			var confErr *billing.ConfigurationError
			if errors.As(err, &confErr) {
				s.logger.Printf("bill service: skip %s for lot %s: %v", utility, cmd.LotID, err)
				continue
			}
			return nil, err
		}

		inputs := billing.UsageInputs{}
		switch table.Method {
		case billing.MethodDirectMeter:
			meter, err := s.usage.MeterUsage(ctx, cmd.LotID, utility, cmd.Period)
			if err != nil {
				return nil, err
			}
			if meter == nil {
				s.logger.Printf("bill service: no %s readings for lot %s in %s, skipping", utility, cmd.LotID, cmd.Period.Key())
				continue
			}
			inputs.Meter = meter
		case billing.MethodRUBS:
			totals, err := s.usage.ParkTotals(ctx, cmd.ParkID, utility, cmd.Period)
			if err != nil {
				return nil, err
			}
			if totals == nil {
				s.logger.Printf("bill service: no park %s totals for %s in %s, skipping", utility, cmd.ParkID, cmd.Period.Key())
				continue
			}
			if allocationLots == nil {
				allocationLots, err = s.loadAllocationLots(ctx, cmd.ParkID)
				if err != nil {
					return nil, err
				}
			}
			inputs.RUBS = &billing.RUBSUsage{
				TotalParkUsage: totals.TotalUsage,
				TotalParkCost:  totals.TotalCost,
				Lot: billing.AllocationLot{
					LotID:         lot.ID,
					Occupants:     lot.Occupants,
					SquareFootage: lot.SquareFootage,
				},
				AllLots: allocationLots,
			}
		case billing.MethodFlatFee:
			// No usage inputs.
		}

		// Resolve failures above mean the park never configured
		// the utility, which is a legitimate skip. A configured
		// table that cannot price (zero RUBS denominator, bad
		// tiers) is an error the caller must see.
		charge, err := billing.ComputeCharge(inputs, table)
		if err != nil {
			return nil, err
		}
		charges = append(charges, charge)
	}
	return charges, nil
}

func (s *BillService) loadAllocationLots(ctx context.Context, parkID string) ([]billing.AllocationLot, error) {
	active, err := s.lots.ListActiveByPark(ctx, parkID)
	if err != nil {
		return nil, err
	}
	lots := make([]billing.AllocationLot, 0, len(active))
	for _, lot := range active {
		lots = append(lots, billing.AllocationLot{
			LotID:         lot.ID,
			Occupants:     lot.Occupants,
			SquareFootage: lot.SquareFootage,
		})
	}
	return lots, nil
}
