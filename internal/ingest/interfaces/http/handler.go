package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	devices "firewatch-cloud/internal/devices/domain"
	"firewatch-cloud/internal/ingest"
)

// IngestHandler handles telemetry ingestion from receiver gateways.
type IngestHandler struct {
	service *ingest.Service
	logger  *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service *ingest.Service, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("ingest handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, logger: logger}, nil
}

// ServeHTTP handles POST /api/v1/ingest.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := h.service.Ingest(r.Context(), req.toRawEvent())
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrValidation):
			http.Error(w, "invalid payload", http.StatusBadRequest)
		case errors.Is(err, devices.ErrNotFound):
			http.Error(w, "unknown receiver", http.StatusNotFound)
		default:
			h.logger.Printf("ingest: %v", err)
			http.Error(w, "ingest error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

type ingestRequest struct {
	ReceiverMAC        string `json:"receiverMac"`
	ReceiverStatusCode string `json:"receiverStatusCode"`
	RepeaterID         string `json:"repeaterId"`
	RepeaterStatusCode string `json:"repeaterStatusCode"`
	DetectorChamber    string `json:"detectorChamber"`
	DetectorTemp       string `json:"detectorTemp"`
	ReceivedData       string `json:"receivedData"`
	CommStatus         string `json:"commStatus"`
	BatteryStatus      string `json:"batteryStatus"`
	ChamberStatus      string `json:"chamberStatus"`
	TS                 int64  `json:"ts"`
}

func (r ingestRequest) toRawEvent() ingest.RawEvent {
	return ingest.RawEvent{
		ReceiverMAC:        r.ReceiverMAC,
		ReceiverStatusCode: r.ReceiverStatusCode,
		RepeaterID:         r.RepeaterID,
		RepeaterStatusCode: r.RepeaterStatusCode,
		DetectorChamber:    r.DetectorChamber,
		DetectorTemp:       r.DetectorTemp,
		ReceivedData:       r.ReceivedData,
		CommStatus:         r.CommStatus,
		BatteryStatus:      r.BatteryStatus,
		ChamberStatus:      r.ChamberStatus,
		Timestamp:          parseTimestamp(r.TS),
	}
}

// parseTimestamp accepts milliseconds or seconds; zero means "now".
func parseTimestamp(value int64) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC()
	}
	return time.Unix(value, 0).UTC()
}
