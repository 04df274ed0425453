package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	billing "mhp-cloud/internal/billing/domain"
	masterdata "mhp-cloud/internal/masterdata/domain"
	"mhp-cloud/internal/observability/metrics"
)

const defaultRunWorkers = 8

// LotFailure records why one lot could not be billed during a run.
type LotFailure struct {
	LotID  string `json:"lot_id"`
	Reason string `json:"reason"`
}

// RunReport summarizes a park billing run. A failed lot never aborts the
// run; the remaining lots are still billed.
type RunReport struct {
	ParkID    string                `json:"park_id"`
	Period    billing.BillingPeriod `json:"period"`
	Generated int                   `json:"generated"`
	Skipped   int                   `json:"skipped"`
	Failures  []LotFailure          `json:"failures,omitempty"`
}

// ParkRunService bills every active lot of a park for a period.
type ParkRunService struct {
	bills   *BillService
	lots    masterdata.LotRepository
	logger  *log.Logger
	workers int
}

// NewParkRunService constructs a run service.
func NewParkRunService(bills *BillService, lots masterdata.LotRepository, logger *log.Logger, workers int) (*ParkRunService, error) {
	if bills == nil {
		return nil, errors.New("park run service: nil bill service")
	}
	if lots == nil {
		return nil, errors.New("park run service: nil lot repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	if workers <= 0 {
		workers = defaultRunWorkers
	}
	return &ParkRunService{bills: bills, lots: lots, logger: logger, workers: workers}, nil
}

// Run generates bills for all active lots in parallel with a bounded worker
// pool. Lots that already have a bill for the period count as skipped; other
// per-lot errors are collected into the report.
func (s *ParkRunService) Run(ctx context.Context, parkID string, period billing.BillingPeriod) (*RunReport, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBillingRun(result, time.Since(start))
	}()

	if parkID == "" {
		result = metrics.ResultError
		return nil, billing.ErrEmptyParkID
	}
	if period.IsZero() || !period.Start.Before(period.End) {
		result = metrics.ResultError
		return nil, billing.ErrInvalidPeriod
	}

	lots, err := s.lots.ListActiveByPark(ctx, parkID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	report := &RunReport{ParkID: parkID, Period: period}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for _, lot := range lots {
		lotID := lot.ID
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			_, err := s.bills.Generate(groupCtx, GenerateBillCommand{
				ParkID: parkID,
				LotID:  lotID,
				Period: period,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Generated++
			case isDuplicate(err):
				report.Skipped++
			default:
				s.logger.Printf("park run: lot %s failed: %v", lotID, err)
				report.Failures = append(report.Failures, LotFailure{LotID: lotID, Reason: err.Error()})
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		result = metrics.ResultError
		return nil, err
	}

	metrics.AddRunLots(metrics.RunLotGenerated, report.Generated)
	metrics.AddRunLots(metrics.RunLotSkipped, report.Skipped)
	metrics.AddRunLots(metrics.RunLotFailed, len(report.Failures))
	if len(report.Failures) > 0 {
		result = metrics.ResultError
	}
	return report, nil
}

func isDuplicate(err error) bool {
	var dup *billing.DuplicateBillError
	return errors.As(err, &dup)
}
