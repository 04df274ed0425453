package application

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	billing "mhp-cloud/internal/billing/domain"
	"mhp-cloud/internal/notify"
	"mhp-cloud/internal/observability/metrics"
)

// BillReader lists stored bills for a park.
type BillReader interface {
	ListByPark(ctx context.Context, parkID string, period *billing.BillingPeriod) ([]*billing.UtilityBill, error)
}

// Recomputer re-derives charges for a stored bill.
type Recomputer interface {
	Recompute(ctx context.Context, bill *billing.UtilityBill) ([]billing.UtilityCharge, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Finding records the comparison for one bill.
type Finding struct {
	BillID          string  `json:"bill_id"`
	LotID           string  `json:"lot_id"`
	Status          string  `json:"status"`
	StoredTotal     float64 `json:"stored_total"`
	RecomputedTotal float64 `json:"recomputed_total"`
	Delta           float64 `json:"delta"`
	Reason          string  `json:"reason,omitempty"`
	Flagged         bool    `json:"flagged"`
}

// Report summarizes one reconcile run.
type Report struct {
	ParkID     string    `json:"park_id"`
	PeriodKey  string    `json:"period_key"`
	RanAt      time.Time `json:"ran_at"`
	Checked    int       `json:"checked"`
	Mismatched int       `json:"mismatched"`
	Findings   []Finding `json:"findings"`
	ReportDir  string    `json:"report_dir,omitempty"`
}

// Service replays charge calculation against stored bills and reports
// drift. A bill drifts when rate tables or readings changed after it was
// generated, or when the stored charge rows were tampered with.
type Service struct {
	bills     BillReader
	recompute Recomputer
	cfg       Config
	channel   notify.Channel
	clock     Clock
	logger    *log.Logger
}

// NewService constructs a reconcile service. The channel is optional.
func NewService(bills BillReader, recompute Recomputer, cfg Config, channel notify.Channel, clock Clock, logger *log.Logger) (*Service, error) {
	if bills == nil {
		return nil, errors.New("reconcile: nil bill reader")
	}
	if recompute == nil {
		return nil, errors.New("reconcile: nil recomputer")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{bills: bills, recompute: recompute, cfg: cfg, channel: channel, clock: clock, logger: logger}, nil
}

// Run reconciles every non-voided bill of the park for the period.
func (s *Service) Run(ctx context.Context, parkID string, period billing.BillingPeriod) (*Report, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReconcile(result, time.Since(start))
	}()

	report, err := s.run(ctx, parkID, period)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if report.Mismatched > 0 {
		metrics.AddReconcileMismatches(report.Mismatched)
	}
	return report, nil
}

func (s *Service) run(ctx context.Context, parkID string, period billing.BillingPeriod) (*Report, error) {
	if parkID == "" {
		return nil, billing.ErrEmptyParkID
	}
	if period.IsZero() || !period.Start.Before(period.End) {
		return nil, billing.ErrInvalidPeriod
	}

	bills, err := s.bills.ListByPark(ctx, parkID, &period)
	if err != nil {
		return nil, err
	}

	thresholds := s.cfg.ThresholdsForPark(parkID)
	report := &Report{
		ParkID:    parkID,
		PeriodKey: period.Key(),
		RanAt:     s.clock.Now().UTC(),
	}
	for _, bill := range bills {
		if bill.Status == billing.BillStatusVoided {
			continue
		}
		report.Checked++
		finding := s.compare(ctx, bill, thresholds)
		if finding.Flagged {
			report.Mismatched++
		}
		report.Findings = append(report.Findings, finding)
	}

	if s.cfg.StorageRoot != "" {
		dir, err := s.writeReport(report)
		if err != nil {
			s.logger.Printf("reconcile: write report for %s %s: %v", parkID, period.Key(), err)
		} else {
			report.ReportDir = dir
		}
	}
	if report.Mismatched > 0 && s.channel != nil {
		content := fmt.Sprintf("[Billing Reconcile] park %s period %s: %d of %d bills drifted",
			parkID, period.Key(), report.Mismatched, report.Checked)
		if err := s.channel.Send(ctx, content); err != nil {
			s.logger.Printf("reconcile: notify: %v", err)
		}
	}
	return report, nil
}

func (s *Service) compare(ctx context.Context, bill *billing.UtilityBill, thresholds Thresholds) Finding {
	finding := Finding{
		BillID:      bill.ID,
		LotID:       bill.LotID,
		Status:      string(bill.Status),
		StoredTotal: bill.TotalAmount(),
	}
	recomputed, err := s.recompute.Recompute(ctx, bill)
	if err != nil {
		finding.Reason = err.Error()
		finding.Flagged = true
		return finding
	}
	var total float64
	for _, charge := range recomputed {
		total += charge.Amount
	}
	finding.RecomputedTotal = billing.RoundCents(total)
	finding.Delta = billing.RoundCents(finding.RecomputedTotal - finding.StoredTotal)

	delta := abs(finding.Delta)
	if delta > thresholds.AmountAbs {
		finding.Flagged = true
	}
	if thresholds.AmountPct > 0 && finding.StoredTotal > 0 &&
		delta/finding.StoredTotal > thresholds.AmountPct {
		finding.Flagged = true
	}
	if finding.Flagged {
		finding.Reason = "recomputed total diverges from stored total"
	}
	return finding
}

func (s *Service) writeReport(report *Report) (string, error) {
	dir := filepath.Join(s.cfg.StorageRoot, report.ParkID, report.PeriodKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := writeSummaryJSON(dir, report); err != nil {
		return "", err
	}
	if err := writeFindingsCSV(dir, report.Findings); err != nil {
		return "", err
	}
	return dir, nil
}

func writeSummaryJSON(dir string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "summary.json"), data, 0o644)
}

func writeFindingsCSV(dir string, findings []Finding) error {
	file, err := os.Create(filepath.Join(dir, "findings.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"bill_id", "lot_id", "status", "stored_total", "recomputed_total", "delta", "flagged", "reason"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, finding := range findings {
		record := []string{
			finding.BillID,
			finding.LotID,
			finding.Status,
			formatFloat(finding.StoredTotal),
			formatFloat(finding.RecomputedTotal),
			formatFloat(finding.Delta),
			strconv.FormatBool(finding.Flagged),
			finding.Reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func abs(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
