// Package recurring provides the SQLite-backed repository for recurring-rule
// templates.
package recurring

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

const columns = sqlutil.MetaColumns + ", kind, amount, note, category_id, frequency, start_date, end_date, day_of_month_week, is_active"

// SQLiteRepository implements recurring-rule storage over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.RecurringRule) error {
	if !e.SyncStatus.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidSyncStatus, e.SyncStatus)
	}
	query := `INSERT INTO recurring_rules (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			sync_status = excluded.sync_status,
			soft_deleted = excluded.soft_deleted,
			deleted_at = excluded.deleted_at,
			deleted_by = excluded.deleted_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			kind = excluded.kind,
			amount = excluded.amount,
			note = excluded.note,
			category_id = excluded.category_id,
			frequency = excluded.frequency,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			day_of_month_week = excluded.day_of_month_week,
			is_active = excluded.is_active`

	args := sqlutil.MetaArgs(&e.SyncMeta)
	args = append(args,
		string(e.Kind), e.Amount, e.Note, e.CategoryID,
		string(e.Frequency), sqlutil.ToNano(e.StartDate), sqlutil.NullableNano(e.EndDate),
		e.DayOfMonthWeek, e.IsActive)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanRow(scan func(dest ...any) error) (*models.RecurringRule, error) {
	var mr sqlutil.MetaRow
	var kind, note, categoryID, frequency string
	var amount, startDate int64
	var endDate sql.NullInt64
	var dayOfMonthWeek int
	var isActive bool

	dest := append(mr.Dest(), &kind, &amount, &note, &categoryID, &frequency, &startDate, &endDate, &dayOfMonthWeek, &isActive)
	if err := scan(dest...); err != nil {
		return nil, err
	}

	meta, err := mr.Meta()
	if err != nil {
		return nil, err
	}
	return &models.RecurringRule{
		SyncMeta:       meta,
		Kind:           models.Kind(kind),
		Amount:         amount,
		Note:           note,
		CategoryID:     categoryID,
		Frequency:      models.Frequency(frequency),
		StartDate:      sqlutil.FromNano(startDate),
		EndDate:        sqlutil.FromNullableNano(endDate),
		DayOfMonthWeek: dayOfMonthWeek,
		IsActive:       isActive,
	}, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select recurring rules: %w", err)
	}
	defer rows.Close()

	var result []*models.RecurringRule
	for rows.Next() {
		e, err := r.scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) GetByID(ctx context.Context, ownerID, id string) (*models.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM recurring_rules WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := r.scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring rule: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, includeDeleted bool) ([]*models.RecurringRule, error) {
	query := `SELECT ` + columns + ` FROM recurring_rules WHERE owner_id = ?`
	if !includeDeleted {
		query += ` AND soft_deleted = 0`
	}
	query += ` ORDER BY start_date, id`
	return r.queryMany(ctx, query, ownerID)
}

// ListActive returns rules eligible for generation: active and not
// tombstoned.
func (r *SQLiteRepository) ListActive(ctx context.Context, ownerID string) ([]*models.RecurringRule, error) {
	query := `SELECT ` + columns + ` FROM recurring_rules
		WHERE owner_id = ? AND soft_deleted = 0 AND is_active = 1
		ORDER BY start_date, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListPending(ctx context.Context, ownerID string) ([]*models.RecurringRule, error) {
	query := `SELECT ` + columns + ` FROM recurring_rules
		WHERE owner_id = ? AND sync_status IN ('created', 'updated', 'deleted')
		ORDER BY updated_at, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListTombstones(ctx context.Context, ownerID string, newerThan *time.Time) ([]*models.RecurringRule, error) {
	query := `SELECT ` + columns + ` FROM recurring_rules WHERE owner_id = ? AND soft_deleted = 1`
	args := []any{ownerID}
	if newerThan != nil {
		query += ` AND deleted_at > ?`
		args = append(args, sqlutil.ToNano(*newerThan))
	}
	query += ` ORDER BY deleted_at DESC, id`
	return r.queryMany(ctx, query, args...)
}

func (r *SQLiteRepository) ListExpiredTombstones(ctx context.Context, ownerID string, cutoff time.Time) ([]*models.RecurringRule, error) {
	query := `SELECT ` + columns + ` FROM recurring_rules
		WHERE owner_id = ? AND soft_deleted = 1 AND deleted_at < ?
		ORDER BY deleted_at, id`
	return r.queryMany(ctx, query, ownerID, sqlutil.ToNano(cutoff))
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring rule: %w", err)
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

// ListActiveByCategory returns non-deleted rules referencing a category.
func (r *SQLiteRepository) ListActiveByCategory(ctx context.Context, ownerID, categoryID string) ([]*models.RecurringRule, error) {
	query := `SELECT ` + columns + ` FROM recurring_rules
		WHERE owner_id = ? AND category_id = ? AND soft_deleted = 0 ORDER BY id`
	return r.queryMany(ctx, query, ownerID, categoryID)
}
