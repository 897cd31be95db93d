package devices

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a missing device or market record.
var ErrNotFound = errors.New("devices: not found")

// MarketRepository manages market persistence.
type MarketRepository interface {
	Get(ctx context.Context, id string) (*Market, error)
	GetByName(ctx context.Context, name string) (*Market, error)
	Save(ctx context.Context, market *Market) error
	UpdateStatus(ctx context.Context, id string, status MarketStatus, at time.Time) error
}

// ReceiverRepository looks up receivers by MAC address.
type ReceiverRepository interface {
	GetByMAC(ctx context.Context, mac string) (*Receiver, error)
	Save(ctx context.Context, receiver *Receiver) error
}

// RepeaterRepository looks up repeaters by composite key.
type RepeaterRepository interface {
	GetByAddress(ctx context.Context, receiverMAC, repeaterID string) (*Repeater, error)
	Save(ctx context.Context, repeater *Repeater) error
}

// DetectorRepository looks up detectors by composite key.
type DetectorRepository interface {
	GetByAddress(ctx context.Context, receiverMAC, repeaterID, detectorID string) (*Detector, error)
	Save(ctx context.Context, detector *Detector) error
}
