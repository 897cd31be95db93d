package ingest

import (
	"errors"
	"time"
)

// ErrValidation indicates a malformed raw event. The packet is still
// audit-logged with a classification-failed marker.
var ErrValidation = errors.New("ingest: invalid raw event")

// RawEvent is one telemetry packet as received from a fire receiver.
// Status codes are short registry codes; the payload fields are opaque
// hex frames recorded for audit only.
type RawEvent struct {
	ReceiverMAC        string    `json:"receiver_mac"`
	ReceiverStatusCode string    `json:"receiver_status_code"`
	RepeaterID         string    `json:"repeater_id,omitempty"`
	RepeaterStatusCode string    `json:"repeater_status_code,omitempty"`
	DetectorChamber    string    `json:"detector_chamber,omitempty"`
	DetectorTemp       string    `json:"detector_temp,omitempty"`
	ReceivedData       string    `json:"received_data,omitempty"`
	CommStatus         string    `json:"comm_status,omitempty"`
	BatteryStatus      string    `json:"battery_status,omitempty"`
	ChamberStatus      string    `json:"chamber_status,omitempty"`
	Timestamp          time.Time `json:"timestamp,omitempty"`
}

// Validate checks required identity fields.
func (e RawEvent) Validate() error {
	if e.ReceiverMAC == "" {
		return errors.New("ingest: missing receiver_mac")
	}
	if e.ReceiverStatusCode == "" && e.RepeaterStatusCode == "" {
		return errors.New("ingest: missing status codes")
	}
	return nil
}

// Result is returned to the ingestion caller.
type Result struct {
	LedgerEntryID int64  `json:"ledger_entry_id,omitempty"`
	MarketID      string `json:"market_id"`
	MarketName    string `json:"market_name"`
	MarketStatus  string `json:"market_status"`
	Severity      string `json:"severity"`
	Degraded      bool   `json:"degraded,omitempty"`
}
