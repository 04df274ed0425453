package capture

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	billing "mhp-cloud/internal/billing/domain"
	metering "mhp-cloud/internal/metering/domain"
)

// IngestHandler accepts normalized meter readings from the capture
// collaborators (manual entry, photo extraction, IoT gateways). All
// sources post the same shape; the handler does not care which pipeline
// produced the reading.
type IngestHandler struct {
	repo   metering.ReadingRepository
	logger *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(repo metering.ReadingRepository, logger *log.Logger) (*IngestHandler, error) {
	if repo == nil {
		return nil, errors.New("capture ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{repo: repo, logger: logger}, nil
}

// ServeHTTP ingests meter readings.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("capture ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("capture ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	readings, err := req.toReadings()
	if err != nil {
		h.logger.Printf("capture ingest: invalid payload: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.repo.Insert(r.Context(), readings); err != nil {
		h.logger.Printf("capture ingest: insert error: %v", err)
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"inserted": len(readings)}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ingestRequest struct {
	TenantID string          `json:"tenantId"`
	Source   string          `json:"source"`
	Readings []ingestReading `json:"readings"`
}

type ingestReading struct {
	MeterID     string  `json:"meterId"`
	LotID       string  `json:"lotId"`
	UtilityType string  `json:"utilityType"`
	Value       float64 `json:"value"`
	Reset       bool    `json:"reset"`
	RecordedAt  string  `json:"recordedAt"`
}

func (r ingestRequest) toReadings() ([]metering.MeterReading, error) {
	if r.TenantID == "" {
		return nil, errors.New("missing tenantId")
	}
	if len(r.Readings) == 0 {
		return nil, errors.New("no readings")
	}
	source := r.Source
	if source == "" {
		source = metering.SourceManual
	}

	now := time.Now().UTC()
	readings := make([]metering.MeterReading, 0, len(r.Readings))
	for _, in := range r.Readings {
		recordedAt, err := parseRecordedAt(in.RecordedAt)
		if err != nil {
			return nil, err
		}
		utilityType, ok := billing.NormalizeUtilityType(in.UtilityType)
		if !ok {
			return nil, errors.New("unknown utility type: " + in.UtilityType)
		}
		reading := metering.MeterReading{
			ID:          metering.NewReadingID(),
			TenantID:    r.TenantID,
			MeterID:     in.MeterID,
			LotID:       in.LotID,
			UtilityType: string(utilityType),
			Value:       in.Value,
			Reset:       in.Reset,
			Source:      source,
			RecordedAt:  recordedAt,
			CreatedAt:   now,
		}
		if err := reading.Validate(); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

func parseRecordedAt(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, metering.ErrInvalidTimestamp
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, metering.ErrInvalidTimestamp
	}
	return ts.UTC(), nil
}
