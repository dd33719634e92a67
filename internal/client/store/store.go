// Package store is the local entity store: every mutation goes through it,
// it alone advances sync metadata on the user-facing write path, and it
// emits change notifications after commit.
//
// Status exclusivity: user-facing mutations transition entities to
// created/updated/deleted here; only the sync engine, through the
// Collection adapters in this package, transitions entities to synced.
// No other component writes sync status.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/bus"
	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/dbx"
	"github.com/dmitrijs2005/walletsync/internal/logging"
)

// Repo is the repository surface a Handle drives. Every per-entity SQLite
// repository satisfies it.
type Repo[T models.Syncable] interface {
	Upsert(ctx context.Context, e T) error
	GetByID(ctx context.Context, ownerID, id string) (T, error)
	List(ctx context.Context, ownerID string, includeDeleted bool) ([]T, error)
	ListPending(ctx context.Context, ownerID string) ([]T, error)
	ListTombstones(ctx context.Context, ownerID string, newerThan *time.Time) ([]T, error)
	ListExpiredTombstones(ctx context.Context, ownerID string, cutoff time.Time) ([]T, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Store owns the database handle, the per-owner writer gate and the change
// notification bus.
type Store struct {
	db   *sql.DB
	gate *dbx.WriterGate
	bus  *bus.Bus
	log  logging.Logger
	now  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db *sql.DB, b *bus.Bus, log logging.Logger, opts ...Option) *Store {
	s := &Store{
		db:   db,
		gate: dbx.NewWriterGate(),
		bus:  b,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Reader exposes the database for read-only typed queries (recurrence
// lookups, budget checks). Writes must go through a Handle.
func (s *Store) Reader() dbx.DBTX { return s.db }

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.now() }

func (s *Store) publish(topic bus.Topic, op bus.Op, m *models.SyncMeta) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Topic: topic, Op: op, OwnerID: m.OwnerID, EntityID: m.ID})
}

// Handle is the typed mutation surface for one entity collection.
type Handle[T models.Syncable] struct {
	s     *Store
	name  string
	topic bus.Topic
	repo  func(dbx.DBTX) Repo[T]
}

// Name returns the collection name.
func (h *Handle[T]) Name() string { return h.name }

// Create persists a new entity: assigns an id when absent, stamps both
// timestamps and enters the created state.
func (h *Handle[T]) Create(ctx context.Context, e T) error {
	m := e.Meta()
	if m.OwnerID == "" {
		return common.ErrOwnerRequired
	}

	unlock := h.s.gate.Lock(m.OwnerID)
	defer unlock()

	m.Init(h.s.now())
	err := dbx.WithTx(ctx, h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return h.repo(tx).Upsert(ctx, e)
	})
	if err != nil {
		return err
	}
	h.s.publish(h.topic, bus.OpCreated, m)
	return nil
}

// Get returns one entity, tombstoned or not.
func (h *Handle[T]) Get(ctx context.Context, ownerID, id string) (T, error) {
	return h.repo(h.s.db).GetByID(ctx, ownerID, id)
}

// List returns the owner's entities.
func (h *Handle[T]) List(ctx context.Context, ownerID string, includeDeleted bool) ([]T, error) {
	return h.repo(h.s.db).List(ctx, ownerID, includeDeleted)
}

// Update applies mutate to the current row inside the serialized write
// section, then advances UpdatedAt and the sync status. Tombstoned entities
// cannot be mutated; restore them first.
func (h *Handle[T]) Update(ctx context.Context, ownerID, id string, mutate func(T) error) (T, error) {
	var out T

	unlock := h.s.gate.Lock(ownerID)
	defer unlock()

	err := dbx.WithTx(ctx, h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := h.repo(tx)
		e, err := repo.GetByID(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if e.Meta().SoftDeleted {
			return common.ErrNotFound
		}
		if err := mutate(e); err != nil {
			return err
		}
		e.Meta().Touch(h.s.now())
		out = e
		return repo.Upsert(ctx, e)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	h.s.publish(h.topic, bus.OpUpdated, out.Meta())
	return out, nil
}

// SoftDelete tombstones the entity. Deleting an already-deleted entity is a
// no-op.
func (h *Handle[T]) SoftDelete(ctx context.Context, ownerID, id, by string) error {
	var m *models.SyncMeta

	unlock := h.s.gate.Lock(ownerID)
	defer unlock()

	err := dbx.WithTx(ctx, h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := h.repo(tx)
		e, err := repo.GetByID(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if e.Meta().SoftDeleted {
			return nil
		}
		e.Meta().MarkDeleted(by, h.s.now())
		m = e.Meta()
		return repo.Upsert(ctx, e)
	})
	if err != nil {
		return err
	}
	if m != nil {
		h.s.publish(h.topic, bus.OpDeleted, m)
	}
	return nil
}

// Restore clears a tombstone. check, when non-nil, runs inside the same
// transaction and can veto the restore (uniqueness collisions).
func (h *Handle[T]) Restore(ctx context.Context, ownerID, id string, check func(ctx context.Context, tx dbx.DBTX, e T) error) error {
	var m *models.SyncMeta

	unlock := h.s.gate.Lock(ownerID)
	defer unlock()

	err := dbx.WithTx(ctx, h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := h.repo(tx)
		e, err := repo.GetByID(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if !e.Meta().SoftDeleted {
			return common.ErrNotDeleted
		}
		if check != nil {
			if err := check(ctx, tx, e); err != nil {
				return err
			}
		}
		e.Meta().MarkRestored(h.s.now())
		m = e.Meta()
		return repo.Upsert(ctx, e)
	})
	if err != nil {
		return err
	}
	h.s.publish(h.topic, bus.OpRestored, m)
	return nil
}

// HardDelete removes the row permanently. guard, when non-nil, runs inside
// the transaction and can refuse the removal (dependency checks).
func (h *Handle[T]) HardDelete(ctx context.Context, ownerID, id string, guard func(ctx context.Context, tx dbx.DBTX, e T) error) error {
	var m *models.SyncMeta

	unlock := h.s.gate.Lock(ownerID)
	defer unlock()

	err := dbx.WithTx(ctx, h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := h.repo(tx)
		e, err := repo.GetByID(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, tx, e); err != nil {
				return err
			}
		}
		m = e.Meta()
		return repo.Delete(ctx, ownerID, id)
	})
	if err != nil {
		return err
	}
	h.s.publish(h.topic, bus.OpPurged, m)
	return nil
}

// Tombstones lists soft-deleted entities, optionally only those deleted
// after newerThan.
func (h *Handle[T]) Tombstones(ctx context.Context, ownerID string, newerThan *time.Time) ([]T, error) {
	return h.repo(h.s.db).ListTombstones(ctx, ownerID, newerThan)
}

// ExpiredTombstones lists tombstones with DeletedAt before cutoff.
func (h *Handle[T]) ExpiredTombstones(ctx context.Context, ownerID string, cutoff time.Time) ([]T, error) {
	return h.repo(h.s.db).ListExpiredTombstones(ctx, ownerID, cutoff)
}
