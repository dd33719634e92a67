package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/walletsync/internal/bus"
	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/client/remote"
)

func remoteExpense(t *testing.T, id string, amount int64, updatedAt time.Time) remote.Record {
	t.Helper()
	e := &models.Expense{
		SyncMeta: models.SyncMeta{
			ID:        id,
			OwnerID:   "u1",
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		},
		Amount: amount,
		Date:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	doc, err := json.Marshal(e)
	require.NoError(t, err)
	return remote.Record{ID: id, UpdatedAt: updatedAt, Doc: doc}
}

func TestPending_ListsUnpushedChanges(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	col := findCollection(t, s, "expenses")

	e := newExpense("u1", 100)
	require.NoError(t, s.Expenses().Create(ctx, e))

	recs, err := col.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, e.ID, recs[0].ID)
	assert.False(t, recs[0].Deleted)

	require.NoError(t, col.MarkSynced(ctx, "u1", e.ID, e.UpdatedAt))

	recs, err = col.Pending(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPending_CarriesTombstones(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	col := findCollection(t, s, "expenses")

	e := newExpense("u1", 100)
	require.NoError(t, s.Expenses().Create(ctx, e))
	require.NoError(t, s.Expenses().SoftDelete(ctx, "u1", e.ID, "u1"))

	recs, err := col.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Deleted)
	require.NotNil(t, recs[0].DeletedAt)
}

func TestMarkSynced_SkipsConcurrentlyMutatedEntity(t *testing.T) {
	s, clock, _ := newTestStore(t)
	ctx := context.Background()
	col := findCollection(t, s, "expenses")

	e := newExpense("u1", 100)
	require.NoError(t, s.Expenses().Create(ctx, e))
	pushedAt := e.UpdatedAt

	// entity changes between push and confirmation
	clock.Advance(time.Second)
	_, err := s.Expenses().Update(ctx, "u1", e.ID, func(x *models.Expense) error {
		x.Amount = 999
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, col.MarkSynced(ctx, "u1", e.ID, pushedAt))

	got, err := s.Expenses().Get(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.True(t, got.Pending(), "newer local edit must stay pending")
}

func TestMarkSynced_MissingEntityIsNoop(t *testing.T) {
	s, clock, _ := newTestStore(t)
	col := findCollection(t, s, "expenses")
	assert.NoError(t, col.MarkSynced(context.Background(), "u1", "gone", clock.Now()))
}

func TestApplyRemote_AdoptsUnknownEntity(t *testing.T) {
	s, clock, b := newTestStore(t)
	ctx := context.Background()
	col := findCollection(t, s, "expenses")

	ch, cancel := b.Subscribe(bus.TopicExpenses, 4)
	defer cancel()

	rec := remoteExpense(t, "r1", 700, clock.Now())
	require.NoError(t, col.ApplyRemote(ctx, "u1", rec))

	got, err := s.Expenses().Get(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), got.Amount)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)

	select {
	case ev := <-ch:
		assert.Equal(t, bus.OpPulled, ev.Op)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestApplyRemote_LastWriterWins(t *testing.T) {
	s, clock, _ := newTestStore(t)
	ctx := context.Background()
	col := findCollection(t, s, "expenses")

	e := newExpense("u1", 100)
	require.NoError(t, s.Expenses().Create(ctx, e))

	// older remote copy loses
	stale := remoteExpense(t, e.ID, 555, e.UpdatedAt.Add(-time.Hour))
	require.NoError(t, col.ApplyRemote(ctx, "u1", stale))

	got, err := s.Expenses().Get(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Amount)
	assert.Equal(t, models.StatusCreated, got.SyncStatus)

	// newer remote copy wins and lands synced
	fresh := remoteExpense(t, e.ID, 555, clock.Now().Add(time.Hour))
	require.NoError(t, col.ApplyRemote(ctx, "u1", fresh))

	got, err = s.Expenses().Get(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(555), got.Amount)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
}

func TestApplyRemote_RemoteTombstone(t *testing.T) {
	s, clock, _ := newTestStore(t)
	ctx := context.Background()
	col := findCollection(t, s, "expenses")

	e := newExpense("u1", 100)
	require.NoError(t, s.Expenses().Create(ctx, e))

	deletedAt := clock.Now().Add(time.Hour)
	rec := remoteExpense(t, e.ID, 100, deletedAt)
	rec.Deleted = true
	rec.DeletedAt = &deletedAt
	require.NoError(t, col.ApplyRemote(ctx, "u1", rec))

	got, err := s.Expenses().Get(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.True(t, got.SoftDeleted)
	require.NotNil(t, got.DeletedAt)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
}
