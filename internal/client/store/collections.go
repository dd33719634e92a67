package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/bus"
	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/client/remote"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/budgets"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/categories"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/expenses"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/incomes"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/recurring"
	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/dbx"
)

// Typed handles. Collection names double as remote collection names.

func (s *Store) Expenses() *Handle[*models.Expense] {
	return &Handle[*models.Expense]{s: s, name: "expenses", topic: bus.TopicExpenses,
		repo: func(tx dbx.DBTX) Repo[*models.Expense] { return expenses.New(tx) }}
}

func (s *Store) Incomes() *Handle[*models.Income] {
	return &Handle[*models.Income]{s: s, name: "incomes", topic: bus.TopicIncomes,
		repo: func(tx dbx.DBTX) Repo[*models.Income] { return incomes.New(tx) }}
}

func (s *Store) Categories() *Handle[*models.Category] {
	return &Handle[*models.Category]{s: s, name: "categories", topic: bus.TopicCategories,
		repo: func(tx dbx.DBTX) Repo[*models.Category] { return categories.New(tx) }}
}

func (s *Store) Budgets() *Handle[*models.Budget] {
	return &Handle[*models.Budget]{s: s, name: "budgets", topic: bus.TopicBudgets,
		repo: func(tx dbx.DBTX) Repo[*models.Budget] { return budgets.New(tx) }}
}

func (s *Store) Rules() *Handle[*models.RecurringRule] {
	return &Handle[*models.RecurringRule]{s: s, name: "recurring_rules", topic: bus.TopicRules,
		repo: func(tx dbx.DBTX) Repo[*models.RecurringRule] { return recurring.New(tx) }}
}

// Collection is the per-entity-type surface driven by the sync engine. It is
// the only path that transitions entities to the synced status.
type Collection interface {
	// Name is the collection name, shared with the remote store.
	Name() string

	// Pending returns wire records for every entity awaiting push.
	Pending(ctx context.Context, ownerID string) ([]remote.Record, error)

	// MarkSynced transitions one entity to synced after a confirmed push.
	// pushedAt must be the UpdatedAt that was pushed: if the entity mutated
	// in the meantime, the transition is skipped and the newer change stays
	// pending.
	MarkSynced(ctx context.Context, ownerID, id string, pushedAt time.Time) error

	// ApplyRemote applies one pulled record under last-writer-wins.
	ApplyRemote(ctx context.Context, ownerID string, rec remote.Record) error
}

// SyncCollections returns every collection in a stable order.
func (s *Store) SyncCollections() []Collection {
	return []Collection{
		newSyncCollection(s.Categories(), func() *models.Category { return &models.Category{} }),
		newSyncCollection(s.Expenses(), func() *models.Expense { return &models.Expense{} }),
		newSyncCollection(s.Incomes(), func() *models.Income { return &models.Income{} }),
		newSyncCollection(s.Budgets(), func() *models.Budget { return &models.Budget{} }),
		newSyncCollection(s.Rules(), func() *models.RecurringRule { return &models.RecurringRule{} }),
	}
}

type syncCollection[T models.Syncable] struct {
	h     *Handle[T]
	blank func() T
}

func newSyncCollection[T models.Syncable](h *Handle[T], blank func() T) *syncCollection[T] {
	return &syncCollection[T]{h: h, blank: blank}
}

func (c *syncCollection[T]) Name() string { return c.h.name }

func (c *syncCollection[T]) Pending(ctx context.Context, ownerID string) ([]remote.Record, error) {
	list, err := c.h.repo(c.h.s.db).ListPending(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	recs := make([]remote.Record, 0, len(list))
	for _, e := range list {
		rec, err := encodeRecord(e)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (c *syncCollection[T]) MarkSynced(ctx context.Context, ownerID, id string, pushedAt time.Time) error {
	unlock := c.h.s.gate.Lock(ownerID)
	defer unlock()

	return dbx.WithTx(ctx, c.h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := c.h.repo(tx)
		e, err := repo.GetByID(ctx, ownerID, id)
		if errors.Is(err, common.ErrNotFound) {
			// hard-deleted while the push was in flight
			return nil
		}
		if err != nil {
			return err
		}
		m := e.Meta()
		if !m.Pending() {
			return nil
		}
		if !m.UpdatedAt.Equal(pushedAt) {
			// mutated since the snapshot was pushed; stays pending
			return nil
		}
		m.MarkSynced()
		return repo.Upsert(ctx, e)
	})
}

func (c *syncCollection[T]) ApplyRemote(ctx context.Context, ownerID string, rec remote.Record) error {
	var applied *models.SyncMeta

	unlock := c.h.s.gate.Lock(ownerID)
	defer unlock()

	err := dbx.WithTx(ctx, c.h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := c.h.repo(tx)

		local, err := repo.GetByID(ctx, ownerID, rec.ID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			// no local copy: adopt the remote one
		case err != nil:
			return err
		default:
			if !rec.UpdatedAt.After(local.Meta().UpdatedAt) {
				// local wins; the push phase covers it (or will next cycle)
				return nil
			}
		}

		e, err := c.decode(ownerID, rec)
		if err != nil {
			return err
		}
		applied = e.Meta()
		return repo.Upsert(ctx, e)
	})
	if err != nil {
		return err
	}
	if applied != nil {
		c.h.s.publish(c.h.topic, bus.OpPulled, applied)
	}
	return nil
}

func (c *syncCollection[T]) decode(ownerID string, rec remote.Record) (T, error) {
	e := c.blank()
	if len(rec.Doc) > 0 {
		if err := json.Unmarshal(rec.Doc, e); err != nil {
			var zero T
			return zero, fmt.Errorf("failed to decode %s record %s: %w", c.h.name, rec.ID, err)
		}
	}
	m := e.Meta()
	m.ID = rec.ID
	m.OwnerID = ownerID
	m.SyncStatus = models.StatusSynced
	m.SoftDeleted = rec.Deleted
	m.DeletedAt = rec.DeletedAt
	if rec.Deleted && m.DeletedAt == nil {
		m.DeletedAt = &rec.UpdatedAt
	}
	if !rec.Deleted {
		m.DeletedAt = nil
		m.DeletedBy = ""
	}
	m.UpdatedAt = rec.UpdatedAt
	if m.CreatedAt.IsZero() || m.CreatedAt.After(m.UpdatedAt) {
		m.CreatedAt = rec.UpdatedAt
	}
	return e, nil
}

func encodeRecord[T models.Syncable](e T) (remote.Record, error) {
	doc, err := json.Marshal(e)
	if err != nil {
		return remote.Record{}, fmt.Errorf("failed to encode record: %w", err)
	}
	m := e.Meta()
	return remote.Record{
		ID:        m.ID,
		Deleted:   m.SoftDeleted,
		DeletedAt: m.DeletedAt,
		UpdatedAt: m.UpdatedAt,
		Doc:       doc,
	}, nil
}
