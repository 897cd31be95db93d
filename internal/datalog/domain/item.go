package datalog

import (
	"context"
	"errors"
	"time"
)

// Log types recorded for raw packets.
const (
	LogTypeReceiver = "receiver"
	LogTypeRepeater = "repeater"
)

// DefaultQuerySpan is the trailing window applied when a query omits
// its range.
const DefaultQuerySpan = 7 * 24 * time.Hour

// MaxQuerySpan bounds reception log range queries, mirroring the fire
// history guard.
const MaxQuerySpan = 31 * 24 * time.Hour

// ErrRangeTooWide indicates a query span beyond 31 days.
var ErrRangeTooWide = errors.New("datalog: query range exceeds 31 days")

// Item is one raw packet record. Payload fields are opaque hex frames;
// the log stores and displays them but never interprets them.
type Item struct {
	ID            int64     `json:"id"`
	MarketName    string    `json:"market_name,omitempty"`
	LogType       string    `json:"log_type"`
	ReceiverID    string    `json:"receiver_id"`
	RepeaterID    string    `json:"repeater_id,omitempty"`
	ReceivedData  string    `json:"received_data"`
	CommStatus    string    `json:"comm_status,omitempty"`
	BatteryStatus string    `json:"battery_status,omitempty"`
	ChamberStatus string    `json:"chamber_status,omitempty"`
	Failed        bool      `json:"classification_failed,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// Validate checks reception log invariants. The market name may be
// empty: packets whose receiver is unknown are still logged.
func (i Item) Validate() error {
	if i.ReceiverID == "" {
		return errors.New("datalog: empty receiver id")
	}
	if i.LogType != LogTypeReceiver && i.LogType != LogTypeRepeater {
		return errors.New("datalog: log type must be receiver or repeater")
	}
	if i.RegisteredAt.IsZero() {
		return errors.New("datalog: zero registered_at")
	}
	return nil
}

// Filter selects reception log entries for a query.
type Filter struct {
	Start      time.Time
	End        time.Time
	MarketName string
}

// Normalize fills the default trailing window when the range is
// omitted. The now argument anchors the default.
func (f Filter) Normalize(now time.Time) Filter {
	if f.End.IsZero() {
		f.End = now
	}
	if f.Start.IsZero() {
		f.Start = f.End.Add(-DefaultQuerySpan)
	}
	return f
}

// Validate enforces the range guard before any storage access.
func (f Filter) Validate() error {
	if f.Start.IsZero() || f.End.IsZero() {
		return errors.New("datalog: start and end required")
	}
	if f.End.Before(f.Start) {
		return errors.New("datalog: end before start")
	}
	if f.End.Sub(f.Start) > MaxQuerySpan {
		return ErrRangeTooWide
	}
	return nil
}

// Repository persists reception log entries.
type Repository interface {
	// Append stores the item and assigns a monotonically increasing id.
	Append(ctx context.Context, item *Item) error
	// List returns items with registered_at in [filter.Start, filter.End]
	// inclusive, newest first.
	List(ctx context.Context, filter Filter) ([]Item, error)
	// Delete removes one entry. Returns false when the id does not exist.
	Delete(ctx context.Context, id int64) (bool, error)
	// DeleteOlderThan removes entries registered before the cutoff and
	// reports how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
