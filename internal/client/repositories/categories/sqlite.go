// Package categories provides the SQLite-backed repository for category rows.
package categories

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

const columns = sqlutil.MetaColumns + ", name, kind, icon, color"

// SQLiteRepository implements category storage over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.Category) error {
	if !e.SyncStatus.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidSyncStatus, e.SyncStatus)
	}
	query := `INSERT INTO categories (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			sync_status = excluded.sync_status,
			soft_deleted = excluded.soft_deleted,
			deleted_at = excluded.deleted_at,
			deleted_by = excluded.deleted_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			name = excluded.name,
			kind = excluded.kind,
			icon = excluded.icon,
			color = excluded.color`

	args := sqlutil.MetaArgs(&e.SyncMeta)
	args = append(args, e.Name, string(e.Kind), e.Icon, e.Color)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanRow(scan func(dest ...any) error) (*models.Category, error) {
	var mr sqlutil.MetaRow
	var name, kind, icon, color string

	dest := append(mr.Dest(), &name, &kind, &icon, &color)
	if err := scan(dest...); err != nil {
		return nil, err
	}

	meta, err := mr.Meta()
	if err != nil {
		return nil, err
	}
	return &models.Category{
		SyncMeta: meta,
		Name:     name,
		Kind:     models.Kind(kind),
		Icon:     icon,
		Color:    color,
	}, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		e, err := r.scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM categories WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := r.scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, includeDeleted bool) ([]*models.Category, error) {
	query := `SELECT ` + columns + ` FROM categories WHERE owner_id = ?`
	if !includeDeleted {
		query += ` AND soft_deleted = 0`
	}
	query += ` ORDER BY kind, name, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListPending(ctx context.Context, ownerID string) ([]*models.Category, error) {
	query := `SELECT ` + columns + ` FROM categories
		WHERE owner_id = ? AND sync_status IN ('created', 'updated', 'deleted')
		ORDER BY updated_at, id`
	return r.queryMany(ctx, query, ownerID)
}

func (r *SQLiteRepository) ListTombstones(ctx context.Context, ownerID string, newerThan *time.Time) ([]*models.Category, error) {
	query := `SELECT ` + columns + ` FROM categories WHERE owner_id = ? AND soft_deleted = 1`
	args := []any{ownerID}
	if newerThan != nil {
		query += ` AND deleted_at > ?`
		args = append(args, sqlutil.ToNano(*newerThan))
	}
	query += ` ORDER BY deleted_at DESC, id`
	return r.queryMany(ctx, query, args...)
}

func (r *SQLiteRepository) ListExpiredTombstones(ctx context.Context, ownerID string, cutoff time.Time) ([]*models.Category, error) {
	query := `SELECT ` + columns + ` FROM categories
		WHERE owner_id = ? AND soft_deleted = 1 AND deleted_at < ?
		ORDER BY deleted_at, id`
	return r.queryMany(ctx, query, ownerID, sqlutil.ToNano(cutoff))
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
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

// ActiveNameExists reports whether a non-deleted category with the same name
// and kind already exists, excluding excludeID. Used by the tombstone manager
// to refuse restores that would collide with a live category.
func (r *SQLiteRepository) ActiveNameExists(ctx context.Context, ownerID, name string, kind models.Kind, excludeID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM categories
		 WHERE owner_id = ? AND name = ? AND kind = ? AND soft_deleted = 0 AND id <> ?`,
		ownerID, name, string(kind), excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check category name: %w", err)
	}
	return n > 0, nil
}
