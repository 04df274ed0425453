package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const timeLayout = time.RFC3339

// ReadingsHandler serves meter reading queries.
type ReadingsHandler struct {
	db *sql.DB
}

// NewReadingsHandler constructs a ReadingsHandler.
func NewReadingsHandler(db *sql.DB) *ReadingsHandler {
	return &ReadingsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/readings.
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	lotID := r.URL.Query().Get("lot_id")
	if lotID == "" {
		http.Error(w, "lot_id is required", http.StatusBadRequest)
		return
	}
	utilityType := r.URL.Query().Get("utility")

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	rows, err := queryReadings(r.Context(), h.db, lotID, utilityType, from, to)
	if err != nil {
		http.Error(w, "query readings error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportBillsCSVHandler serves bill CSV exports.
type ExportBillsCSVHandler struct {
	db       *sql.DB
	tenantID string
}

// NewExportBillsCSVHandler constructs a ExportBillsCSVHandler.
func NewExportBillsCSVHandler(db *sql.DB, tenantID string) *ExportBillsCSVHandler {
	return &ExportBillsCSVHandler{db: db, tenantID: tenantID}
}

// ServeHTTP handles GET /api/v1/exports/bills.csv.
func (h *ExportBillsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	if h.tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusServiceUnavailable)
		return
	}

	parkID := r.URL.Query().Get("park_id")
	if parkID == "" {
		http.Error(w, "park_id is required", http.StatusBadRequest)
		return
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	rows, err := queryBills(r.Context(), h.db, h.tenantID, parkID, from, to)
	if err != nil {
		http.Error(w, "query bills error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"bill_id",
		"tenant_id",
		"park_id",
		"lot_id",
		"period_start",
		"period_end",
		"status",
		"due_date",
		"total_amount",
		"created_at",
		"updated_at",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ID,
			row.TenantID,
			row.ParkID,
			row.LotID,
			row.PeriodStart.Format("2006-01-02"),
			row.PeriodEnd.Format("2006-01-02"),
			row.Status,
			row.DueDate.Format("2006-01-02"),
			formatFloat(row.TotalAmount),
			formatTime(row.CreatedAt),
			formatTime(row.UpdatedAt),
		})
	}
	writer.Flush()
}

type readingRow struct {
	ID          string    `json:"id"`
	MeterID     string    `json:"meter_id"`
	LotID       string    `json:"lot_id"`
	UtilityType string    `json:"utility_type"`
	Value       float64   `json:"value"`
	Reset       bool      `json:"reset"`
	Source      string    `json:"source"`
	RecordedAt  time.Time `json:"recorded_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type billRow struct {
	ID          string    `json:"bill_id"`
	TenantID    string    `json:"tenant_id"`
	ParkID      string    `json:"park_id"`
	LotID       string    `json:"lot_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Status      string    `json:"status"`
	DueDate     time.Time `json:"due_date"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func queryReadings(ctx context.Context, db *sql.DB, lotID, utilityType string, from, to time.Time) ([]readingRow, error) {
	query := `
SELECT
	id,
	meter_id,
	lot_id,
	utility_type,
	value,
	reset,
	source,
	recorded_at,
	created_at
FROM meter_readings
WHERE lot_id = $1
	AND recorded_at >= $2
	AND recorded_at < $3`
	args := []any{lotID, from.UTC(), to.UTC()}
	if utilityType != "" {
		query += `
	AND utility_type = $4`
		args = append(args, utilityType)
	}
	query += `
ORDER BY recorded_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []readingRow
	for rows.Next() {
		var row readingRow
		if err := rows.Scan(
			&row.ID,
			&row.MeterID,
			&row.LotID,
			&row.UtilityType,
			&row.Value,
			&row.Reset,
			&row.Source,
			&row.RecordedAt,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		row.RecordedAt = row.RecordedAt.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func queryBills(ctx context.Context, db *sql.DB, tenantID, parkID string, from, to time.Time) ([]billRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	b.id,
	b.tenant_id,
	b.park_id,
	b.lot_id,
	b.period_start,
	b.period_end,
	b.status,
	b.due_date,
	COALESCE((SELECT SUM(c.amount) FROM utility_bill_charges c WHERE c.bill_id = b.id), 0) AS total_amount,
	b.created_at,
	b.updated_at
FROM utility_bills b
WHERE b.tenant_id = $1
	AND b.park_id = $2
	AND b.period_start >= $3
	AND b.period_start < $4
ORDER BY b.period_start ASC, b.lot_id ASC`, tenantID, parkID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billRow
	for rows.Next() {
		var row billRow
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.ParkID,
			&row.LotID,
			&row.PeriodStart,
			&row.PeriodEnd,
			&row.Status,
			&row.DueDate,
			&row.TotalAmount,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.PeriodStart = row.PeriodStart.UTC()
		row.PeriodEnd = row.PeriodEnd.UTC()
		row.DueDate = row.DueDate.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		parsed, err = time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, errors.New(key + " must be RFC3339 or YYYY-MM-DD")
		}
	}
	return parsed.UTC(), nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}
