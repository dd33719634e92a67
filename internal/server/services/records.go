package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/server/models"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/records"
)

// RecordService is the document-store surface behind the sync API. The
// repository applies last-writer-wins by updated_at, so replaying an old
// push never regresses a record.
type RecordService struct {
	records records.Repository
}

func NewRecordService(db *sql.DB) *RecordService {
	return &RecordService{records: records.NewPostgresRepository(db)}
}

// NewRecordServiceWithRepo wires an explicit repository, for tests.
func NewRecordServiceWithRepo(r records.Repository) *RecordService {
	return &RecordService{records: r}
}

func (s *RecordService) Upsert(ctx context.Context, rec *models.Record) error {
	if !models.Collections[rec.Collection] {
		return fmt.Errorf("unknown collection %q", rec.Collection)
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if rec.UpdatedAt.IsZero() {
		return fmt.Errorf("record updated_at is required")
	}
	return s.records.Upsert(ctx, rec)
}

func (s *RecordService) MarkDeleted(ctx context.Context, ownerID, collection, id string, deletedAt time.Time) error {
	if !models.Collections[collection] {
		return fmt.Errorf("unknown collection %q", collection)
	}
	if deletedAt.IsZero() {
		deletedAt = time.Now().UTC()
	}
	return s.records.MarkDeleted(ctx, ownerID, collection, id, deletedAt)
}

func (s *RecordService) FetchSince(ctx context.Context, ownerID, collection string, since time.Time) ([]*models.Record, error) {
	if !models.Collections[collection] {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return s.records.SelectSince(ctx, ownerID, collection, since)
}
