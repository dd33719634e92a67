package metadata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/walletsync/internal/client/localdb"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/metadata"
)

func newRepo(t *testing.T) *metadata.SQLiteRepository {
	t.Helper()
	db, err := localdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return metadata.New(db)
}

func TestSetGetRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, metadata.KeyOwnerID, []byte("owner-1")))

	got, err := r.Get(ctx, metadata.KeyOwnerID)
	require.NoError(t, err)
	assert.Equal(t, []byte("owner-1"), got)
}

func TestGet_AbsentKeyIsNil(t *testing.T) {
	r := newRepo(t)

	got, err := r.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSet_Overwrites(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, metadata.KeyEmail, []byte("a@example.com")))
	require.NoError(t, r.Set(ctx, metadata.KeyEmail, []byte("b@example.com")))

	got, err := r.Get(ctx, metadata.KeyEmail)
	require.NoError(t, err)
	assert.Equal(t, []byte("b@example.com"), got)
}

func TestDeleteAndClear(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, metadata.KeyOwnerID, []byte("owner-1")))
	require.NoError(t, r.Set(ctx, metadata.KeyEmail, []byte("a@example.com")))

	require.NoError(t, r.Delete(ctx, metadata.KeyOwnerID))
	got, err := r.Get(ctx, metadata.KeyOwnerID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.Clear(ctx))
	got, err = r.Get(ctx, metadata.KeyEmail)
	require.NoError(t, err)
	assert.Nil(t, got)
}
