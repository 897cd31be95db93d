package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	datalog "firewatch-cloud/internal/datalog/domain"
)

const defaultReceptionTable = "data_reception_log"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is a Postgres reception log.
type Repository struct {
	db    DBTX
	table string
}

// NewRepository constructs a repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db, table: defaultReceptionTable}
}

const itemColumns = `id, market_name, log_type, receiver_id, repeater_id, received_data,
	comm_status, battery_status, chamber_status, failed, registered_at`

// Append inserts an entry; the id comes from the table sequence.
func (r *Repository) Append(ctx context.Context, item *datalog.Item) error {
	if r == nil || r.db == nil {
		return errors.New("datalog repo: nil db")
	}
	if item == nil {
		return errors.New("datalog repo: nil item")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	market_name, log_type, receiver_id, repeater_id, received_data,
	comm_status, battery_status, chamber_status, failed, registered_at
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8, $9, $10
)
RETURNING id`, r.table)

	return r.db.QueryRowContext(ctx, query,
		nullableString(item.MarketName),
		item.LogType,
		item.ReceiverID,
		nullableString(item.RepeaterID),
		item.ReceivedData,
		nullableString(item.CommStatus),
		nullableString(item.BatteryStatus),
		nullableString(item.ChamberStatus),
		item.Failed,
		item.RegisteredAt.UTC(),
	).Scan(&item.ID)
}

// List returns entries in [filter.Start, filter.End] inclusive, newest first.
func (r *Repository) List(ctx context.Context, filter datalog.Filter) ([]datalog.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("datalog repo: nil db")
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
	query += " ORDER BY registered_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []datalog.Item
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

// Delete removes one entry.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("datalog repo: nil db")
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

// DeleteOlderThan removes entries registered before the cutoff.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("datalog repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE registered_at < $1`, r.table)
	res, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type itemScanner interface {
	Scan(dest ...any) error
}

func scanItem(row itemScanner) (*datalog.Item, error) {
	var item datalog.Item
	var marketName sql.NullString
	var repeaterID sql.NullString
	var comm sql.NullString
	var battery sql.NullString
	var chamber sql.NullString
	if err := row.Scan(
		&item.ID,
		&marketName,
		&item.LogType,
		&item.ReceiverID,
		&repeaterID,
		&item.ReceivedData,
		&comm,
		&battery,
		&chamber,
		&item.Failed,
		&item.RegisteredAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if marketName.Valid {
		item.MarketName = marketName.String
	}
	if repeaterID.Valid {
		item.RepeaterID = repeaterID.String
	}
	if comm.Valid {
		item.CommStatus = comm.String
	}
	if battery.Valid {
		item.BatteryStatus = battery.String
	}
	if chamber.Valid {
		item.ChamberStatus = chamber.String
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
