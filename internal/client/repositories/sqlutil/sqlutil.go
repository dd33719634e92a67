// Package sqlutil holds scan/bind helpers shared by the SQLite repositories.
// Timestamps are stored as integer unix nanoseconds so range predicates stay
// plain integer comparisons.
package sqlutil

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/client/models"
)

// MetaColumns is the shared column list, in the order MetaRow scans them.
const MetaColumns = "id, owner_id, sync_status, soft_deleted, deleted_at, deleted_by, created_at, updated_at"

// ToNano converts a time to its stored integer form.
func ToNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// FromNano converts a stored integer back to a UTC time.
func FromNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// NullableNano converts an optional time for binding.
func NullableNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ToNano(*t), Valid: true}
}

// FromNullableNano converts a scanned nullable integer to an optional time.
func FromNullableNano(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromNano(n.Int64)
	return &t
}

// MetaRow buffers the sync-metadata columns of one scanned row.
type MetaRow struct {
	ID          string
	OwnerID     string
	SyncStatus  string
	SoftDeleted bool
	DeletedAt   sql.NullInt64
	DeletedBy   string
	CreatedAt   int64
	UpdatedAt   int64
}

// Dest returns scan destinations in MetaColumns order.
func (r *MetaRow) Dest() []any {
	return []any{&r.ID, &r.OwnerID, &r.SyncStatus, &r.SoftDeleted, &r.DeletedAt, &r.DeletedBy, &r.CreatedAt, &r.UpdatedAt}
}

// Meta validates the scanned status and assembles the metadata struct.
// Rows carrying an unrecognized sync status are rejected rather than
// silently passed through.
func (r *MetaRow) Meta() (models.SyncMeta, error) {
	status, err := models.ParseSyncStatus(r.SyncStatus)
	if err != nil {
		return models.SyncMeta{}, err
	}
	return models.SyncMeta{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		SyncStatus:  status,
		SoftDeleted: r.SoftDeleted,
		DeletedAt:   FromNullableNano(r.DeletedAt),
		DeletedBy:   r.DeletedBy,
		CreatedAt:   FromNano(r.CreatedAt),
		UpdatedAt:   FromNano(r.UpdatedAt),
	}, nil
}

// MetaArgs returns bind arguments in MetaColumns order.
func MetaArgs(m *models.SyncMeta) []any {
	return []any{
		m.ID,
		m.OwnerID,
		string(m.SyncStatus),
		m.SoftDeleted,
		NullableNano(m.DeletedAt),
		m.DeletedBy,
		ToNano(m.CreatedAt),
		ToNano(m.UpdatedAt),
	}
}
