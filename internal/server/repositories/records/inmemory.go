package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/server/models"
)

type recordKey struct {
	ownerID    string
	collection string
	id         string
}

// InMemoryRepository is a map-backed Repository for tests. It applies the
// same last-writer-wins rule as the PostgreSQL implementation.
type InMemoryRepository struct {
	mu   sync.Mutex
	rows map[recordKey]*models.Record
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: map[recordKey]*models.Record{}}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey{rec.OwnerID, rec.Collection, rec.ID}
	if cur, ok := r.rows[key]; ok && !cur.UpdatedAt.Before(rec.UpdatedAt) {
		return nil
	}
	cp := *rec
	r.rows[key] = &cp
	return nil
}

func (r *InMemoryRepository) MarkDeleted(ctx context.Context, ownerID, collection, id string, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey{ownerID, collection, id}
	cur, ok := r.rows[key]
	if !ok {
		r.rows[key] = &models.Record{
			OwnerID:    ownerID,
			Collection: collection,
			ID:         id,
			Deleted:    true,
			DeletedAt:  &deletedAt,
			UpdatedAt:  deletedAt,
		}
		return nil
	}
	if !cur.UpdatedAt.Before(deletedAt) {
		return nil
	}
	cur.Deleted = true
	cur.DeletedAt = &deletedAt
	cur.UpdatedAt = deletedAt
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, ownerID, collection, id string) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[recordKey{ownerID, collection, id}]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *InMemoryRepository) SelectSince(ctx context.Context, ownerID, collection string, since time.Time) ([]*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Record
	for key, rec := range r.rows {
		if key.ownerID == ownerID && key.collection == collection && rec.UpdatedAt.After(since) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
