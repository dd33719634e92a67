// Package checkpoint stores the per-owner sync checkpoint: the cursor the
// pull phase resumes from. It is advanced only after a fully successful sync
// cycle.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/client/repositories/sqlutil"
	"github.com/dmitrijs2005/walletsync/internal/dbx"
)

// SQLiteRepository persists checkpoints in the sync_checkpoints table.
type SQLiteRepository struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the owner's last successful sync time, or nil when the owner
// has never completed a sync.
func (r *SQLiteRepository) Get(ctx context.Context, ownerID string) (*time.Time, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_sync_at FROM sync_checkpoints WHERE owner_id = ?`, ownerID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync checkpoint: %w", err)
	}
	t := sqlutil.FromNano(n)
	return &t, nil
}

// Set records the owner's checkpoint, replacing any previous value.
func (r *SQLiteRepository) Set(ctx context.Context, ownerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints (owner_id, last_sync_at) VALUES (?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET last_sync_at = excluded.last_sync_at
	`, ownerID, sqlutil.ToNano(at))
	if err != nil {
		return fmt.Errorf("failed to set sync checkpoint: %w", err)
	}
	return nil
}

// Clear removes the owner's checkpoint (logout/reset).
func (r *SQLiteRepository) Clear(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_checkpoints WHERE owner_id = ?`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to clear sync checkpoint: %w", err)
	}
	return nil
}
