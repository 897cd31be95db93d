package firehistory

import (
	"context"
	"errors"
	"time"
)

// False-alarm reconciliation states. Entries start 등록 (registered,
// unclassified) and are reclassified by an operator to 화재 (confirmed
// fire) or 오탐 (false alarm).
const (
	FalseAlarmRegistered = "등록"
	FalseAlarmConfirmed  = "화재"
	FalseAlarmFalse      = "오탐"
)

// Classification class of a ledger entry.
const (
	ClassFire  = "fire"
	ClassFault = "fault"
)

// MaxQuerySpan bounds ledger range queries; wider spans are rejected
// before storage is touched.
const MaxQuerySpan = 31 * 24 * time.Hour

// ErrNotFound indicates a missing ledger entry.
var ErrNotFound = errors.New("firehistory: not found")

// ErrRangeTooWide indicates a query span beyond 31 days.
var ErrRangeTooWide = errors.New("firehistory: query range exceeds 31 days")

// ErrInvalidDecision indicates a reconciliation decision outside 화재/오탐.
var ErrInvalidDecision = errors.New("firehistory: invalid reconciliation decision")

// Item is one append-only ledger entry produced by event classification.
// Duplicate raw packets produce duplicate entries by design; dedup is an
// explicit operator action via false-alarm marking.
type Item struct {
	ID              int64     `json:"id"`
	MarketID        string    `json:"market_id"`
	MarketName      string    `json:"market_name"`
	ReceiverMAC     string    `json:"receiver_mac"`
	ReceiverStatus  string    `json:"receiver_status"`
	RepeaterID      string    `json:"repeater_id"`
	RepeaterStatus  string    `json:"repeater_status"`
	DetectorChamber string    `json:"detector_chamber,omitempty"`
	DetectorTemp    string    `json:"detector_temp,omitempty"`
	Class           string    `json:"class"`
	Degraded        bool      `json:"degraded,omitempty"`
	Registrar       string    `json:"registrar"`
	RegisteredAt    time.Time `json:"registered_at"`
	FalseAlarmStatus string   `json:"false_alarm_status"`
	Note            string    `json:"note,omitempty"`
}

// Validate checks ledger entry invariants.
func (i Item) Validate() error {
	if i.MarketID == "" {
		return errors.New("firehistory: empty market id")
	}
	if i.ReceiverMAC == "" {
		return errors.New("firehistory: empty receiver mac")
	}
	if i.Class != ClassFire && i.Class != ClassFault {
		return errors.New("firehistory: class must be fire or fault")
	}
	if i.RegisteredAt.IsZero() {
		return errors.New("firehistory: zero registered_at")
	}
	return nil
}

// Filter selects ledger entries for a query.
type Filter struct {
	Start      time.Time
	End        time.Time
	MarketName string
	FireOnly   bool
	FaultOnly  bool
}

// Validate enforces the hard range guard before any storage access.
func (f Filter) Validate() error {
	if f.Start.IsZero() || f.End.IsZero() {
		return errors.New("firehistory: start and end required")
	}
	if f.End.Before(f.Start) {
		return errors.New("firehistory: end before start")
	}
	if f.End.Sub(f.Start) > MaxQuerySpan {
		return ErrRangeTooWide
	}
	if f.FireOnly && f.FaultOnly {
		return errors.New("firehistory: fire-only and fault-only are exclusive")
	}
	return nil
}

// Repository persists ledger entries.
type Repository interface {
	// Append stores the item and assigns a monotonically increasing id.
	Append(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id int64) (*Item, error)
	// List returns items with registered_at in [filter.Start, filter.End]
	// inclusive, newest first.
	List(ctx context.Context, filter Filter) ([]Item, error)
	// UpdateFalseAlarm overwrites the reconciliation status and note.
	// Returns false when the id does not exist.
	UpdateFalseAlarm(ctx context.Context, id int64, status, note string) (bool, error)
	// Delete removes one entry. Returns false when the id does not exist.
	Delete(ctx context.Context, id int64) (bool, error)
}
