package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/dbx"
	"github.com/dmitrijs2005/walletsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (owner_id, collection, id, doc, deleted, deleted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, collection, id) DO UPDATE SET
			doc = excluded.doc,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at
		WHERE records.updated_at < excluded.updated_at
	`
	doc := rec.Doc
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.OwnerID, rec.Collection, rec.ID, doc, rec.Deleted, rec.DeletedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, ownerID, collection, id string, deletedAt time.Time) error {
	query := `
		INSERT INTO records (owner_id, collection, id, deleted, deleted_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (owner_id, collection, id) DO UPDATE SET
			deleted = TRUE,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at
		WHERE records.updated_at < excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, ownerID, collection, id, deletedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, collection, id string) (*models.Record, error) {
	query := `
		SELECT id, doc, deleted, deleted_at, updated_at FROM records
		WHERE owner_id = $1 AND collection = $2 AND id = $3
	`
	rec := &models.Record{OwnerID: ownerID, Collection: collection}
	err := r.db.QueryRowContext(ctx, query, ownerID, collection, id).
		Scan(&rec.ID, &rec.Doc, &rec.Deleted, &rec.DeletedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) SelectSince(ctx context.Context, ownerID, collection string, since time.Time) ([]*models.Record, error) {
	query := `
		SELECT id, doc, deleted, deleted_at, updated_at FROM records
		WHERE owner_id = $1 AND collection = $2 AND updated_at > $3
		ORDER BY updated_at
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, collection, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec := &models.Record{OwnerID: ownerID, Collection: collection}
		if err := rows.Scan(&rec.ID, &rec.Doc, &rec.Deleted, &rec.DeletedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
