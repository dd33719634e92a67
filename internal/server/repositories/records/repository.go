// Package records stores the synced entity documents, one row per
// (owner, collection, id).
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/server/models"
)

type Repository interface {
	// Upsert writes the record, keeping the stored copy when it is newer
	// (last-writer-wins by updated_at).
	Upsert(ctx context.Context, rec *models.Record) error

	// MarkDeleted flags the record deleted at deletedAt, creating a bare
	// tombstone row when the record was never pushed.
	MarkDeleted(ctx context.Context, ownerID, collection, id string, deletedAt time.Time) error

	// Get returns one record or common.ErrNotFound.
	Get(ctx context.Context, ownerID, collection, id string) (*models.Record, error)

	// SelectSince returns the owner's records in the collection modified
	// strictly after since, oldest first.
	SelectSince(ctx context.Context, ownerID, collection string, since time.Time) ([]*models.Record, error)
}
