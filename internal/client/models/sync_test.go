package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/walletsync/internal/common"
)

func TestParseSyncStatus(t *testing.T) {
	for _, raw := range []string{"created", "updated", "deleted", "synced"} {
		s, err := ParseSyncStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, SyncStatus(raw), s)
	}

	for _, raw := range []string{"", "Created", "pending", "sync"} {
		_, err := ParseSyncStatus(raw)
		assert.ErrorIs(t, err, common.ErrInvalidSyncStatus, "raw=%q", raw)
	}
}

func TestSyncStatus_Pending(t *testing.T) {
	assert.True(t, StatusCreated.Pending())
	assert.True(t, StatusUpdated.Pending())
	assert.True(t, StatusDeleted.Pending())
	assert.False(t, StatusSynced.Pending())
}

func TestSyncMeta_Lifecycle(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var m SyncMeta
	m.OwnerID = "u1"
	m.Init(now)

	require.NotEmpty(t, m.ID)
	assert.Equal(t, StatusCreated, m.SyncStatus)
	assert.Equal(t, now, m.CreatedAt)
	assert.Equal(t, now, m.UpdatedAt)

	// mutation before first push keeps the created state
	later := now.Add(time.Minute)
	m.Touch(later)
	assert.Equal(t, StatusCreated, m.SyncStatus)
	assert.Equal(t, later, m.UpdatedAt)

	// after a confirmed push, mutation collapses to updated
	m.MarkSynced()
	m.Touch(later.Add(time.Minute))
	assert.Equal(t, StatusUpdated, m.SyncStatus)

	// soft delete
	delAt := later.Add(2 * time.Minute)
	m.MarkDeleted("u1", delAt)
	assert.True(t, m.SoftDeleted)
	require.NotNil(t, m.DeletedAt)
	assert.Equal(t, delAt, *m.DeletedAt)
	assert.Equal(t, "u1", m.DeletedBy)
	assert.Equal(t, StatusDeleted, m.SyncStatus)

	// restore
	m.MarkRestored(delAt.Add(time.Minute))
	assert.False(t, m.SoftDeleted)
	assert.Nil(t, m.DeletedAt)
	assert.Empty(t, m.DeletedBy)
	assert.Equal(t, StatusUpdated, m.SyncStatus)

	assert.True(t, m.UpdatedAt.After(m.CreatedAt) || m.UpdatedAt.Equal(m.CreatedAt))
}

func TestSyncMeta_InitKeepsExplicitID(t *testing.T) {
	m := SyncMeta{ID: "fixed"}
	m.Init(time.Now())
	assert.Equal(t, "fixed", m.ID)
}
