package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/walletsync/internal/server/models"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/records"
)

func newRecordService() *RecordService {
	return NewRecordServiceWithRepo(records.NewInMemoryRepository())
}

func rec(owner, id string, updatedAt time.Time) *models.Record {
	return &models.Record{
		OwnerID:    owner,
		Collection: "expenses",
		ID:         id,
		UpdatedAt:  updatedAt,
		Doc:        json.RawMessage(`{"amount":100}`),
	}
}

func TestUpsertAndFetchSince(t *testing.T) {
	s := newRecordService()
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Upsert(ctx, rec("u1", "a", t0)))
	require.NoError(t, s.Upsert(ctx, rec("u1", "b", t0.Add(time.Hour))))

	out, err := s.FetchSince(ctx, "u1", "expenses", t0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)

	out, err = s.FetchSince(ctx, "u1", "expenses", time.Time{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestUpsert_StaleWriteIgnored(t *testing.T) {
	s := newRecordService()
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := rec("u1", "a", t0.Add(time.Hour))
	fresh.Doc = json.RawMessage(`{"amount":999}`)
	require.NoError(t, s.Upsert(ctx, fresh))

	stale := rec("u1", "a", t0)
	require.NoError(t, s.Upsert(ctx, stale))

	out, err := s.FetchSince(ctx, "u1", "expenses", time.Time{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.JSONEq(t, `{"amount":999}`, string(out[0].Doc))
}

func TestUpsert_Validation(t *testing.T) {
	s := newRecordService()
	ctx := context.Background()

	bad := rec("u1", "a", time.Now())
	bad.Collection = "secrets"
	assert.Error(t, s.Upsert(ctx, bad))

	noID := rec("u1", "", time.Now())
	assert.Error(t, s.Upsert(ctx, noID))

	noTime := rec("u1", "a", time.Time{})
	assert.Error(t, s.Upsert(ctx, noTime))
}

func TestMarkDeleted_CreatesTombstoneRow(t *testing.T) {
	s := newRecordService()
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// deleting a record the server never saw still records the tombstone
	require.NoError(t, s.MarkDeleted(ctx, "u1", "expenses", "ghost", at))

	out, err := s.FetchSince(ctx, "u1", "expenses", time.Time{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Deleted)
	require.NotNil(t, out[0].DeletedAt)
	assert.Equal(t, at, *out[0].DeletedAt)
}

func TestFetchSince_ScopedByOwner(t *testing.T) {
	s := newRecordService()
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Upsert(ctx, rec("u1", "a", t0)))

	out, err := s.FetchSince(ctx, "u2", "expenses", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
