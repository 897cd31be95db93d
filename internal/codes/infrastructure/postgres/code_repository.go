package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"firewatch-cloud/internal/codes"
)

const defaultCommonCodesTable = "common_codes"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CodeRepository is a Postgres implementation of the code table.
type CodeRepository struct {
	db    DBTX
	table string
}

// NewCodeRepository constructs a repository.
func NewCodeRepository(db DBTX) *CodeRepository {
	return &CodeRepository{db: db, table: defaultCommonCodesTable}
}

// ListAll loads the full code table. The severity column is nullable:
// legacy rows without one classify by keyword fallback.
func (r *CodeRepository) ListAll(ctx context.Context) ([]codes.CommonCode, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("code repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT code, name, group_code, status, severity
FROM %s
ORDER BY code`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []codes.CommonCode
	for rows.Next() {
		var row codes.CommonCode
		var groupCode sql.NullString
		var status sql.NullString
		var severity sql.NullString
		if err := rows.Scan(&row.Code, &row.Name, &groupCode, &status, &severity); err != nil {
			return nil, err
		}
		if groupCode.Valid {
			row.GroupCode = groupCode.String
		}
		if status.Valid {
			row.Status = status.String
		}
		if severity.Valid {
			if parsed, ok := codes.ParseSeverity(severity.String); ok {
				row.Severity = parsed
				row.HasSeverity = true
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts one code row.
func (r *CodeRepository) Save(ctx context.Context, row codes.CommonCode) error {
	if r == nil || r.db == nil {
		return errors.New("code repo: nil db")
	}
	if row.Code == "" {
		return errors.New("code repo: empty code")
	}
	var severity sql.NullString
	if row.HasSeverity {
		severity = sql.NullString{String: row.Severity.String(), Valid: true}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (code, name, group_code, status, severity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (code)
DO UPDATE SET
	name = EXCLUDED.name,
	group_code = EXCLUDED.group_code,
	status = EXCLUDED.status,
	severity = EXCLUDED.severity`, r.table)
	_, err := r.db.ExecContext(ctx, query, row.Code, row.Name, row.GroupCode, row.Status, severity)
	return err
}
