package devices

import (
	"errors"
	"time"
)

// MarketStatus is the derived live status shown on the dashboard map.
// It is mutated only by the status aggregator, never by CRUD writers.
type MarketStatus string

const (
	MarketNormal MarketStatus = "normal"
	MarketFire   MarketStatus = "fire"
	MarketError  MarketStatus = "error"
)

// UsageStatus is the administrative on/off flag. It is independent of the
// live status: a market taken out of service still aggregates events.
type UsageStatus string

const (
	UsageInService    UsageStatus = "in_service"
	UsageOutOfService UsageStatus = "out_of_service"
)

// Market represents an instrumented market/store complex.
type Market struct {
	ID          string
	Name        string
	Address     string
	UsageStatus UsageStatus
	Status      MarketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks market invariants.
func (m Market) Validate() error {
	if m.ID == "" {
		return errors.New("market: empty id")
	}
	if m.Name == "" {
		return errors.New("market: empty name")
	}
	return nil
}
