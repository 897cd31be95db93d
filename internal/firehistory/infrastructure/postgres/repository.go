package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	firehistory "firewatch-cloud/internal/firehistory/domain"
)

const defaultFireHistoryTable = "fire_history"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is a Postgres fire history ledger.
type Repository struct {
	db    DBTX
	table string
}

// NewRepository constructs a repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db, table: defaultFireHistoryTable}
}

const itemColumns = `id, market_id, market_name, receiver_mac, receiver_status, repeater_id, repeater_status,
	detector_chamber, detector_temp, class, degraded, registrar, registered_at, false_alarm_status, note`

// Append inserts an entry; the id comes from the table sequence.
func (r *Repository) Append(ctx context.Context, item *firehistory.Item) error {
	if r == nil || r.db == nil {
		return errors.New("firehistory repo: nil db")
	}
	if item == nil {
		return errors.New("firehistory repo: nil item")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	market_id, market_name, receiver_mac, receiver_status, repeater_id, repeater_status,
	detector_chamber, detector_temp, class, degraded, registrar, registered_at, false_alarm_status, note
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10, $11, $12, $13, $14
)
RETURNING id`, r.table)

	return r.db.QueryRowContext(ctx, query,
		item.MarketID,
		item.MarketName,
		item.ReceiverMAC,
		item.ReceiverStatus,
		item.RepeaterID,
		item.RepeaterStatus,
		nullableString(item.DetectorChamber),
		nullableString(item.DetectorTemp),
		item.Class,
		item.Degraded,
		item.Registrar,
		item.RegisteredAt.UTC(),
		item.FalseAlarmStatus,
		nullableString(item.Note),
	).Scan(&item.ID)
}

// GetByID loads one entry, (nil, nil) on miss.
func (r *Repository) GetByID(ctx context.Context, id int64) (*firehistory.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("firehistory repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1`, itemColumns, r.table)
	return scanItem(r.db.QueryRowContext(ctx, query, id))
}

// List returns entries in [filter.Start, filter.End] inclusive, newest first.
func (r *Repository) List(ctx context.Context, filter firehistory.Filter) ([]firehistory.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("firehistory repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE registered_at >= $1 AND registered_at <= $2`, itemColumns, r.table)
	args := []any{filter.Start.UTC(), filter.End.UTC()}
	if filter.MarketName != "" {
		args = append(args, "%"+filter.MarketName+"%")
		query += fmt.Sprintf(" AND market_name LIKE $%d", len(args))
	}
	if filter.FireOnly {
		args = append(args, firehistory.ClassFire)
		query += fmt.Sprintf(" AND class = $%d", len(args))
	}
	if filter.FaultOnly {
		args = append(args, firehistory.ClassFault)
		query += fmt.Sprintf(" AND class = $%d", len(args))
	}
	query += " ORDER BY registered_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []firehistory.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateFalseAlarm overwrites the reconciliation status and note.
func (r *Repository) UpdateFalseAlarm(ctx context.Context, id int64, status, note string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("firehistory repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET false_alarm_status = $1, note = $2
WHERE id = $3`, r.table)
	res, err := r.db.ExecContext(ctx, query, status, nullableString(note), id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Delete removes one entry.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("firehistory repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type itemScanner interface {
	Scan(dest ...any) error
}

func scanItem(row itemScanner) (*firehistory.Item, error) {
	var item firehistory.Item
	var chamber sql.NullString
	var temp sql.NullString
	var note sql.NullString
	if err := row.Scan(
		&item.ID,
		&item.MarketID,
		&item.MarketName,
		&item.ReceiverMAC,
		&item.ReceiverStatus,
		&item.RepeaterID,
		&item.RepeaterStatus,
		&chamber,
		&temp,
		&item.Class,
		&item.Degraded,
		&item.Registrar,
		&item.RegisteredAt,
		&item.FalseAlarmStatus,
		&note,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if chamber.Valid {
		item.DetectorChamber = chamber.String
	}
	if temp.Valid {
		item.DetectorTemp = temp.String
	}
	if note.Valid {
		item.Note = note.String
	}
	item.RegisteredAt = item.RegisteredAt.UTC()
	return &item, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
