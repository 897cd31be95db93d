package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	devices "firewatch-cloud/internal/devices/domain"
)

const (
	defaultReceiversTable = "receivers"
	defaultRepeatersTable = "repeaters"
	defaultDetectorsTable = "detectors"
)

// ReceiverRepository is a Postgres implementation for receivers.
type ReceiverRepository struct {
	db    DBTX
	table string
}

// NewReceiverRepository constructs a repository.
func NewReceiverRepository(db DBTX) *ReceiverRepository {
	return &ReceiverRepository{db: db, table: defaultReceiversTable}
}

// GetByMAC loads a receiver by its MAC address.
func (r *ReceiverRepository) GetByMAC(ctx context.Context, mac string) (*devices.Receiver, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("receiver repo: nil db")
	}
	if mac == "" {
		return nil, errors.New("receiver repo: empty mac")
	}
	query := fmt.Sprintf(`
SELECT id, market_id, mac_address
FROM %s
WHERE mac_address = $1
LIMIT 1`, r.table)

	var receiver devices.Receiver
	if err := r.db.QueryRowContext(ctx, query, mac).Scan(
		&receiver.ID,
		&receiver.MarketID,
		&receiver.MACAddress,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &receiver, nil
}

// Save upserts a receiver.
func (r *ReceiverRepository) Save(ctx context.Context, receiver *devices.Receiver) error {
	if r == nil || r.db == nil {
		return errors.New("receiver repo: nil db")
	}
	if receiver == nil {
		return errors.New("receiver repo: nil receiver")
	}
	if err := receiver.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, market_id, mac_address)
VALUES ($1, $2, $3)
ON CONFLICT (id)
DO UPDATE SET market_id = EXCLUDED.market_id, mac_address = EXCLUDED.mac_address`, r.table)
	_, err := r.db.ExecContext(ctx, query, receiver.ID, receiver.MarketID, receiver.MACAddress)
	return err
}

// RepeaterRepository is a Postgres implementation for repeaters.
type RepeaterRepository struct {
	db    DBTX
	table string
}

// NewRepeaterRepository constructs a repository.
func NewRepeaterRepository(db DBTX) *RepeaterRepository {
	return &RepeaterRepository{db: db, table: defaultRepeatersTable}
}

// GetByAddress loads a repeater by (receiverMAC, repeaterID).
func (r *RepeaterRepository) GetByAddress(ctx context.Context, receiverMAC, repeaterID string) (*devices.Repeater, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repeater repo: nil db")
	}
	if receiverMAC == "" || repeaterID == "" {
		return nil, errors.New("repeater repo: invalid query")
	}
	query := fmt.Sprintf(`
SELECT id, market_id, receiver_mac, repeater_id
FROM %s
WHERE receiver_mac = $1 AND repeater_id = $2
LIMIT 1`, r.table)

	var repeater devices.Repeater
	if err := r.db.QueryRowContext(ctx, query, receiverMAC, repeaterID).Scan(
		&repeater.ID,
		&repeater.MarketID,
		&repeater.ReceiverMAC,
		&repeater.RepeaterID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &repeater, nil
}

// Save upserts a repeater.
func (r *RepeaterRepository) Save(ctx context.Context, repeater *devices.Repeater) error {
	if r == nil || r.db == nil {
		return errors.New("repeater repo: nil db")
	}
	if repeater == nil {
		return errors.New("repeater repo: nil repeater")
	}
	if err := repeater.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, market_id, receiver_mac, repeater_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (receiver_mac, repeater_id)
DO UPDATE SET market_id = EXCLUDED.market_id`, r.table)
	_, err := r.db.ExecContext(ctx, query, repeater.ID, repeater.MarketID, repeater.ReceiverMAC, repeater.RepeaterID)
	return err
}

// DetectorRepository is a Postgres implementation for detectors.
type DetectorRepository struct {
	db    DBTX
	table string
}

// NewDetectorRepository constructs a repository.
func NewDetectorRepository(db DBTX) *DetectorRepository {
	return &DetectorRepository{db: db, table: defaultDetectorsTable}
}

// GetByAddress loads a detector by (receiverMAC, repeaterID, detectorID).
func (r *DetectorRepository) GetByAddress(ctx context.Context, receiverMAC, repeaterID, detectorID string) (*devices.Detector, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("detector repo: nil db")
	}
	if receiverMAC == "" || repeaterID == "" || detectorID == "" {
		return nil, errors.New("detector repo: invalid query")
	}
	query := fmt.Sprintf(`
SELECT id, market_id, receiver_mac, repeater_id, detector_id, store_ids
FROM %s
WHERE receiver_mac = $1 AND repeater_id = $2 AND detector_id = $3
LIMIT 1`, r.table)

	var detector devices.Detector
	var storeIDs pq.StringArray
	if err := r.db.QueryRowContext(ctx, query, receiverMAC, repeaterID, detectorID).Scan(
		&detector.ID,
		&detector.MarketID,
		&detector.ReceiverMAC,
		&detector.RepeaterID,
		&detector.DetectorID,
		&storeIDs,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	detector.StoreIDs = []string(storeIDs)
	return &detector, nil
}

// Save upserts a detector.
func (r *DetectorRepository) Save(ctx context.Context, detector *devices.Detector) error {
	if r == nil || r.db == nil {
		return errors.New("detector repo: nil db")
	}
	if detector == nil {
		return errors.New("detector repo: nil detector")
	}
	if err := detector.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, market_id, receiver_mac, repeater_id, detector_id, store_ids)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (receiver_mac, repeater_id, detector_id)
DO UPDATE SET market_id = EXCLUDED.market_id, store_ids = EXCLUDED.store_ids`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		detector.ID,
		detector.MarketID,
		detector.ReceiverMAC,
		detector.RepeaterID,
		detector.DetectorID,
		pq.StringArray(detector.StoreIDs),
	)
	return err
}
