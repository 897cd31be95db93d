package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	devices "firewatch-cloud/internal/devices/domain"
)

const defaultMarketsTable = "markets"

// MarketRepository is a Postgres implementation for markets.
type MarketRepository struct {
	db    DBTX
	table string
}

// MarketOption configures the repository.
type MarketOption func(*MarketRepository)

// WithMarketTable overrides the default table name.
func WithMarketTable(table string) MarketOption {
	return func(repo *MarketRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewMarketRepository constructs a repository.
func NewMarketRepository(db DBTX, opts ...MarketOption) *MarketRepository {
	repo := &MarketRepository{db: db, table: defaultMarketsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get loads a market by id.
func (r *MarketRepository) Get(ctx context.Context, id string) (*devices.Market, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("market repo: nil db")
	}
	if id == "" {
		return nil, errors.New("market repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT id, name, address, usage_status, status, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	return scanMarket(r.db.QueryRowContext(ctx, query, id))
}

// GetByName loads a market by exact name.
func (r *MarketRepository) GetByName(ctx context.Context, name string) (*devices.Market, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("market repo: nil db")
	}
	if name == "" {
		return nil, errors.New("market repo: empty name")
	}
	query := fmt.Sprintf(`
SELECT id, name, address, usage_status, status, created_at, updated_at
FROM %s
WHERE name = $1
ORDER BY created_at
LIMIT 1`, r.table)
	return scanMarket(r.db.QueryRowContext(ctx, query, name))
}

// Save upserts a market. The live status column is owned by the
// aggregator and deliberately not touched here.
func (r *MarketRepository) Save(ctx context.Context, market *devices.Market) error {
	if r == nil || r.db == nil {
		return errors.New("market repo: nil db")
	}
	if market == nil {
		return errors.New("market repo: nil market")
	}
	if err := market.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	address,
	usage_status
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	address = EXCLUDED.address,
	usage_status = EXCLUDED.usage_status,
	updated_at = NOW()`, r.table)

	usage := market.UsageStatus
	if usage == "" {
		usage = devices.UsageInService
	}
	_, err := r.db.ExecContext(ctx, query, market.ID, market.Name, market.Address, string(usage))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if market.CreatedAt.IsZero() {
		market.CreatedAt = now
	}
	market.UpdatedAt = now
	return nil
}

// UpdateStatus writes the derived live status.
func (r *MarketRepository) UpdateStatus(ctx context.Context, id string, status devices.MarketStatus, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("market repo: nil db")
	}
	if id == "" {
		return errors.New("market repo: empty id")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, updated_at = $2
WHERE id = $3`, r.table)
	_, err := r.db.ExecContext(ctx, query, string(status), at.UTC(), id)
	return err
}

type marketScanner interface {
	Scan(dest ...any) error
}

func scanMarket(row marketScanner) (*devices.Market, error) {
	var market devices.Market
	var address sql.NullString
	var usage string
	var status string
	if err := row.Scan(
		&market.ID,
		&market.Name,
		&address,
		&usage,
		&status,
		&market.CreatedAt,
		&market.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if address.Valid {
		market.Address = address.String
	}
	market.UsageStatus = devices.UsageStatus(usage)
	market.Status = devices.MarketStatus(status)
	market.CreatedAt = market.CreatedAt.UTC()
	market.UpdatedAt = market.UpdatedAt.UTC()
	return &market, nil
}
