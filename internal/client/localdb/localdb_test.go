package localdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesSchema(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"expenses", "incomes", "categories", "budgets", "recurring_rules", "sync_checkpoints"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db))
}

func TestOpen_OccurrenceIndexRejectsDuplicates(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	insert := `INSERT INTO expenses (id, owner_id, sync_status, created_at, updated_at, amount, date, rule_id, occurrence_date)
		VALUES (?, 'u1', 'created', 0, 0, 100, 0, 'r1', 42)`
	_, err = db.Exec(insert, "e1")
	require.NoError(t, err)

	_, err = db.Exec(insert, "e2")
	assert.Error(t, err, "duplicate (owner, rule, occurrence) must be rejected")
}
