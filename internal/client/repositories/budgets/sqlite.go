// Package budgets provides the SQLite-backed repository for budget rows.
package budgets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/sqlutil"
	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/dbx"
)

const columns = sqlutil.MetaColumns + ", category_id, monthly_limit, start_day"

// SQLiteRepository implements budget storage over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.Budget) error {
	if !e.SyncStatus.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidSyncStatus, e.SyncStatus)
	}
	query := `INSERT INTO budgets (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			sync_status = excluded.sync_status,
			soft_deleted = excluded.soft_deleted,
			deleted_at = excluded.deleted_at,
			deleted_by = excluded.deleted_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			category_id = excluded.category_id,
			monthly_limit = excluded.monthly_limit,
			start_day = excluded.start_day`

	args := sqlutil.MetaArgs(&e.SyncMeta)
	args = append(args, e.CategoryID, e.MonthlyLimit, e.StartDay)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanRow(scan func(dest ...any) error) (*models.Budget, error) {
	var mr sqlutil.MetaRow
	var categoryID string
	var limit int64
	var startDay int

	dest := append(mr.Dest(), &categoryID, &limit, &startDay)
	if err := scan(dest...); err != nil {
		return nil, err
	}

	meta, err := mr.Meta()
	if err != nil {
		return nil, err
	}
	return &models.Budget{
		SyncMeta:     meta,
		CategoryID:   categoryID,
		MonthlyLimit: limit,
		StartDay:     startDay,
	}, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Budget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select budgets: %w", err)
	}
	defer rows.Close()

	var result []*models.Budget
	for rows.Next() {
		e, err := r.scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM budgets WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := r.scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, includeDeleted bool) ([]*models.Budget, error) {
	query := `SELECT ` + columns + ` FROM budgets WHERE owner_id = ?`
	if !includeDeleted {
		query += ` AND soft_deleted = 0`
	}
	query += ` ORDER BY category_id, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListPending(ctx context.Context, ownerID string) ([]*models.Budget, error) {
	query := `SELECT ` + columns + ` FROM budgets
		WHERE owner_id = ? AND sync_status IN ('created', 'updated', 'deleted')
		ORDER BY updated_at, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListTombstones(ctx context.Context, ownerID string, newerThan *time.Time) ([]*models.Budget, error) {
	query := `SELECT ` + columns + ` FROM budgets WHERE owner_id = ? AND soft_deleted = 1`
	args := []any{ownerID}
	if newerThan != nil {
		query += ` AND deleted_at > ?`
		args = append(args, sqlutil.ToNano(*newerThan))
	}
	query += ` ORDER BY deleted_at DESC, id`
	return r.queryMany(ctx, query, args...)
}

func (r *SQLiteRepository) ListExpiredTombstones(ctx context.Context, ownerID string, cutoff time.Time) ([]*models.Budget, error) {
	query := `SELECT ` + columns + ` FROM budgets
		WHERE owner_id = ? AND soft_deleted = 1 AND deleted_at < ?
		ORDER BY deleted_at, id`
	return r.queryMany(ctx, query, ownerID, sqlutil.ToNano(cutoff))
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ListActiveByCategory returns non-deleted budgets referencing a category.
func (r *SQLiteRepository) ListActiveByCategory(ctx context.Context, ownerID, categoryID string) ([]*models.Budget, error) {
	query := `SELECT ` + columns + ` FROM budgets
		WHERE owner_id = ? AND category_id = ? AND soft_deleted = 0 ORDER BY id`
	return r.queryMany(ctx, query, ownerID, categoryID)
}
