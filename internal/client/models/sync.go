// Package models defines the client-side finance entities and the sync
// metadata they carry for offline-first reconciliation.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/google/uuid"
)

// SyncStatus describes the local change pending against the remote store.
// It is a closed set; free-form strings are rejected at the store boundary.
type SyncStatus string

const (
	StatusCreated SyncStatus = "created"
	StatusUpdated SyncStatus = "updated"
	StatusDeleted SyncStatus = "deleted"
	StatusSynced  SyncStatus = "synced"
)

// Valid reports whether s is one of the recognized statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusUpdated, StatusDeleted, StatusSynced:
		return true
	}
	return false
}

// ParseSyncStatus converts a raw string into a SyncStatus, rejecting
// unrecognized values.
func ParseSyncStatus(raw string) (SyncStatus, error) {
	s := SyncStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidSyncStatus, raw)
	}
	return s, nil
}

// Pending reports whether the status represents a local change that still
// has to be pushed to the remote store.
func (s SyncStatus) Pending() bool {
	return s == StatusCreated || s == StatusUpdated || s == StatusDeleted
}

// SyncMeta is embedded in every syncable entity.
//
// Invariants:
//   - SoftDeleted == true  => DeletedAt != nil and SyncStatus is deleted or synced
//   - SoftDeleted == false => DeletedAt == nil
//   - UpdatedAt >= CreatedAt
type SyncMeta struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	SyncStatus  SyncStatus `json:"sync_status"`
	SoftDeleted bool       `json:"soft_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	DeletedBy   string     `json:"deleted_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Meta returns the embedded metadata; it makes every entity that embeds
// SyncMeta satisfy the Syncable interface.
func (m *SyncMeta) Meta() *SyncMeta { return m }

// Init stamps a freshly created entity: assigns an id when none is set and
// enters the created state.
func (m *SyncMeta) Init(now time.Time) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.SyncStatus = StatusCreated
	m.SoftDeleted = false
	m.DeletedAt = nil
	m.DeletedBy = ""
	m.CreatedAt = now
	m.UpdatedAt = now
}

// Touch records a local mutation: UpdatedAt advances and the status
// collapses to updated unless the entity is still unpushed (created).
func (m *SyncMeta) Touch(now time.Time) {
	m.UpdatedAt = now
	if m.SyncStatus != StatusCreated {
		m.SyncStatus = StatusUpdated
	}
}

// MarkDeleted tombstones the entity.
func (m *SyncMeta) MarkDeleted(by string, now time.Time) {
	m.SoftDeleted = true
	m.DeletedAt = &now
	m.DeletedBy = by
	m.SyncStatus = StatusDeleted
	m.UpdatedAt = now
}

// MarkRestored clears the tombstone.
func (m *SyncMeta) MarkRestored(now time.Time) {
	m.SoftDeleted = false
	m.DeletedAt = nil
	m.DeletedBy = ""
	m.SyncStatus = StatusUpdated
	m.UpdatedAt = now
}

// MarkSynced records that the remote copy is confirmed identical. Only the
// sync engine may call this.
func (m *SyncMeta) MarkSynced() {
	m.SyncStatus = StatusSynced
}

// Pending reports whether this entity still has unpushed local changes.
func (m *SyncMeta) Pending() bool {
	return m.SyncStatus.Pending()
}

// Syncable is implemented by every entity embedding SyncMeta.
type Syncable interface {
	Meta() *SyncMeta
}
