// Package incomes provides the SQLite-backed repository for income rows.
package incomes

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

const columns = sqlutil.MetaColumns + ", amount, date, note, category_id, rule_id, occurrence_date"

// SQLiteRepository implements income storage over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert inserts or replaces an income by id. Sync metadata is written
// exactly as provided.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.Income) error {
	if !e.SyncStatus.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidSyncStatus, e.SyncStatus)
	}
	query := `INSERT INTO incomes (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			sync_status = excluded.sync_status,
			soft_deleted = excluded.soft_deleted,
			deleted_at = excluded.deleted_at,
			deleted_by = excluded.deleted_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			amount = excluded.amount,
			date = excluded.date,
			note = excluded.note,
			category_id = excluded.category_id,
			rule_id = excluded.rule_id,
			occurrence_date = excluded.occurrence_date`

	args := sqlutil.MetaArgs(&e.SyncMeta)
	args = append(args, e.Amount, sqlutil.ToNano(e.Date), e.Note, e.CategoryID, e.RuleID, sqlutil.NullableNano(e.OccurrenceDate))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanRow(scan func(dest ...any) error) (*models.Income, error) {
	var mr sqlutil.MetaRow
	var amount, date int64
	var note, categoryID, ruleID string
	var occurrence sql.NullInt64

	dest := append(mr.Dest(), &amount, &date, &note, &categoryID, &ruleID, &occurrence)
	if err := scan(dest...); err != nil {
		return nil, err
	}

	meta, err := mr.Meta()
	if err != nil {
		return nil, err
	}
	return &models.Income{
		SyncMeta:       meta,
		Amount:         amount,
		Date:           sqlutil.FromNano(date),
		Note:           note,
		CategoryID:     categoryID,
		RuleID:         ruleID,
		OccurrenceDate: sqlutil.FromNullableNano(occurrence),
	}, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Income, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select incomes: %w", err)
	}
	defer rows.Close()

	var result []*models.Income
	for rows.Next() {
		e, err := r.scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Income, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM incomes WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := r.scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get income: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, includeDeleted bool) ([]*models.Income, error) {
	query := `SELECT ` + columns + ` FROM incomes WHERE owner_id = ?`
	if !includeDeleted {
		query += ` AND soft_deleted = 0`
	}
	query += ` ORDER BY date DESC, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListPending(ctx context.Context, ownerID string) ([]*models.Income, error) {
	query := `SELECT ` + columns + ` FROM incomes
		WHERE owner_id = ? AND sync_status IN ('created', 'updated', 'deleted')
		ORDER BY updated_at, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListTombstones(ctx context.Context, ownerID string, newerThan *time.Time) ([]*models.Income, error) {
	query := `SELECT ` + columns + ` FROM incomes WHERE owner_id = ? AND soft_deleted = 1`
	args := []any{ownerID}
	if newerThan != nil {
		query += ` AND deleted_at > ?`
		args = append(args, sqlutil.ToNano(*newerThan))
	}
	query += ` ORDER BY deleted_at DESC, id`
	return r.queryMany(ctx, query, args...)
}

func (r *SQLiteRepository) ListExpiredTombstones(ctx context.Context, ownerID string, cutoff time.Time) ([]*models.Income, error) {
	query := `SELECT ` + columns + ` FROM incomes
		WHERE owner_id = ? AND soft_deleted = 1 AND deleted_at < ?
		ORDER BY deleted_at, id`
	return r.queryMany(ctx, query, ownerID, sqlutil.ToNano(cutoff))
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete income: %w", err)
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

// ExistsOccurrence reports whether a concrete income already exists for the
// (rule, occurrence date) pair.
func (r *SQLiteRepository) ExistsOccurrence(ctx context.Context, ownerID, ruleID string, date time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM incomes WHERE owner_id = ? AND rule_id = ? AND occurrence_date = ?`,
		ownerID, ruleID, sqlutil.ToNano(date)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check occurrence: %w", err)
	}
	return n > 0, nil
}

// MaxOccurrenceDate returns the latest materialized occurrence date for a
// rule, or nil when nothing was generated yet.
func (r *SQLiteRepository) MaxOccurrenceDate(ctx context.Context, ownerID, ruleID string) (*time.Time, error) {
	var n sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT max(occurrence_date) FROM incomes WHERE owner_id = ? AND rule_id = ?`,
		ownerID, ruleID).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("failed to get max occurrence: %w", err)
	}
	return sqlutil.FromNullableNano(n), nil
}

// ListActiveByCategory returns non-deleted incomes referencing a category.
func (r *SQLiteRepository) ListActiveByCategory(ctx context.Context, ownerID, categoryID string) ([]*models.Income, error) {
	query := `SELECT ` + columns + ` FROM incomes
		WHERE owner_id = ? AND category_id = ? AND soft_deleted = 0 ORDER BY date DESC, id`
	return r.queryMany(ctx, query, ownerID, categoryID)
}
