package eventing

import (
	"time"

	"github.com/google/uuid"
)

// NewEventID generates a random event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// EventClassified is published after a raw packet has been classified.
// LedgerID is zero when the combined severity did not create a ledger
// entry (recovered or normal).
type EventClassified struct {
	EventID     string    `json:"event_id"`
	MarketID    string    `json:"market_id"`
	MarketName  string    `json:"market_name"`
	ReceiverMAC string    `json:"receiver_mac"`
	RepeaterID  string    `json:"repeater_id,omitempty"`
	Severity    string    `json:"severity"`
	Degraded    bool      `json:"degraded,omitempty"`
	LedgerID    int64     `json:"ledger_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// MarketStatusChanged is published when the aggregator transitions a
// market's live status.
type MarketStatusChanged struct {
	EventID    string    `json:"event_id"`
	MarketID   string    `json:"market_id"`
	MarketName string    `json:"market_name"`
	Status     string    `json:"status"`
	Severity   string    `json:"severity"`
	OccurredAt time.Time `json:"occurred_at"`
}
