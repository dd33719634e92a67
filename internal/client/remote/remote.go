// Package remote defines the remote-store contract the sync engine talks to
// and its HTTP/JSON implementation.
package remote

import (
	"context"
	"encoding/json"
	"time"
)

// Record is the wire form of one synced entity. Doc carries the full entity
// document; the envelope fields are what the reconciliation protocol needs
// without understanding the document.
type Record struct {
	ID        string          `json:"id"`
	Deleted   bool            `json:"deleted"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Doc       json.RawMessage `json:"doc"`
}

// Store is the remote document store. Calls are individually retryable; the
// backing store is assumed eventually consistent.
type Store interface {
	// Ping verifies the remote store is reachable and the session is valid.
	Ping(ctx context.Context) error

	// Upsert creates or replaces the record in the named collection.
	Upsert(ctx context.Context, collection string, rec Record) error

	// MarkDeleted flags the remote record as deleted (a remote tombstone).
	MarkDeleted(ctx context.Context, collection, id string, deletedAt time.Time) error

	// FetchSince returns the owner's records modified strictly after since.
	FetchSince(ctx context.Context, collection string, since time.Time) ([]Record, error)
}
