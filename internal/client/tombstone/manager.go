// Package tombstone layers soft-delete, restore, permanent-delete and
// retention sweeping on top of the entity store.
package tombstone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/budgets"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/categories"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/expenses"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/incomes"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/recurring"
	"github.com/dmitrijs2005/walletsync/internal/client/store"
	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/dbx"
	"github.com/dmitrijs2005/walletsync/internal/logging"
)

// RetentionPolicy maps a collection name to how long its tombstones are
// kept before the sweep purges them.
type RetentionPolicy map[string]time.Duration

const (
	DefaultRetention         = 30 * 24 * time.Hour
	DefaultCategoryRetention = 90 * 24 * time.Hour
)

// DefaultPolicy keeps category tombstones longer: restoring a category
// brings a whole grouping back, so users get more time to change their mind.
func DefaultPolicy() RetentionPolicy {
	return RetentionPolicy{
		"expenses":        DefaultRetention,
		"incomes":         DefaultRetention,
		"budgets":         DefaultRetention,
		"recurring_rules": DefaultRetention,
		"categories":      DefaultCategoryRetention,
	}
}

// Retention returns the policy for a collection, falling back to the
// default when the collection has no explicit entry.
func (p RetentionPolicy) Retention(collection string) time.Duration {
	if d, ok := p[collection]; ok && d > 0 {
		return d
	}
	return DefaultRetention
}

// Manager executes deletion lifecycle operations against the store.
type Manager struct {
	store  *store.Store
	policy RetentionPolicy
	log    logging.Logger
}

type Option func(*Manager)

// WithPolicy overrides the retention policy.
func WithPolicy(p RetentionPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func NewManager(s *store.Store, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{store: s, policy: DefaultPolicy(), log: log}
	for _, o := range opts {
		o(m)
	}
	return m
}

// DeleteExpense tombstones an expense. Always permitted.
func (m *Manager) DeleteExpense(ctx context.Context, ownerID, id, by string) error {
	return m.store.Expenses().SoftDelete(ctx, ownerID, id, by)
}

func (m *Manager) DeleteIncome(ctx context.Context, ownerID, id, by string) error {
	return m.store.Incomes().SoftDelete(ctx, ownerID, id, by)
}

func (m *Manager) DeleteBudget(ctx context.Context, ownerID, id, by string) error {
	return m.store.Budgets().SoftDelete(ctx, ownerID, id, by)
}

func (m *Manager) DeleteRule(ctx context.Context, ownerID, id, by string) error {
	return m.store.Rules().SoftDelete(ctx, ownerID, id, by)
}

// DeleteCategory tombstones a category. References from expenses, incomes,
// budgets and rules stay in place; they resolve again if the category is
// restored.
func (m *Manager) DeleteCategory(ctx context.Context, ownerID, id, by string) error {
	return m.store.Categories().SoftDelete(ctx, ownerID, id, by)
}

func (m *Manager) RestoreExpense(ctx context.Context, ownerID, id string) error {
	return m.store.Expenses().Restore(ctx, ownerID, id, nil)
}

func (m *Manager) RestoreIncome(ctx context.Context, ownerID, id string) error {
	return m.store.Incomes().Restore(ctx, ownerID, id, nil)
}

func (m *Manager) RestoreBudget(ctx context.Context, ownerID, id string) error {
	return m.store.Budgets().Restore(ctx, ownerID, id, nil)
}

func (m *Manager) RestoreRule(ctx context.Context, ownerID, id string) error {
	return m.store.Rules().Restore(ctx, ownerID, id, nil)
}

// RestoreCategory clears a category tombstone. The restore is refused when
// an active category with the same name and kind exists.
func (m *Manager) RestoreCategory(ctx context.Context, ownerID, id string) error {
	return m.store.Categories().Restore(ctx, ownerID, id,
		func(ctx context.Context, tx dbx.DBTX, c *models.Category) error {
			exists, err := categories.New(tx).ActiveNameExists(ctx, ownerID, c.Name, c.Kind, c.ID)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("category %q: %w", c.Name, common.ErrNameConflict)
			}
			return nil
		})
}

// PurgeExpense permanently removes an expense.
func (m *Manager) PurgeExpense(ctx context.Context, ownerID, id string) error {
	return m.store.Expenses().HardDelete(ctx, ownerID, id, nil)
}

func (m *Manager) PurgeIncome(ctx context.Context, ownerID, id string) error {
	return m.store.Incomes().HardDelete(ctx, ownerID, id, nil)
}

func (m *Manager) PurgeBudget(ctx context.Context, ownerID, id string) error {
	return m.store.Budgets().HardDelete(ctx, ownerID, id, nil)
}

func (m *Manager) PurgeRule(ctx context.Context, ownerID, id string) error {
	return m.store.Rules().HardDelete(ctx, ownerID, id, nil)
}

// PurgeCategory permanently removes a category. While active entities still
// reference it the purge is refused, unless reassign is set, in which case
// the dependents are detached to "uncategorized" (empty category id) inside
// the same transaction.
func (m *Manager) PurgeCategory(ctx context.Context, ownerID, id string, reassign bool) error {
	return m.store.Categories().HardDelete(ctx, ownerID, id,
		func(ctx context.Context, tx dbx.DBTX, c *models.Category) error {
			if reassign {
				return m.detachDependents(ctx, tx, ownerID, id)
			}
			n, err := m.countDependents(ctx, tx, ownerID, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("category %q has %d active dependents: %w", c.Name, n, common.ErrDependencyExists)
			}
			return nil
		})
}

func (m *Manager) countDependents(ctx context.Context, tx dbx.DBTX, ownerID, categoryID string) (int, error) {
	n := 0

	exp, err := expenses.New(tx).ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return 0, err
	}
	n += len(exp)

	inc, err := incomes.New(tx).ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return 0, err
	}
	n += len(inc)

	bud, err := budgets.New(tx).ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return 0, err
	}
	n += len(bud)

	rul, err := recurring.New(tx).ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return 0, err
	}
	n += len(rul)

	return n, nil
}

// detachDependents clears the category reference on every active dependent
// and touches it so the change propagates on the next sync.
func (m *Manager) detachDependents(ctx context.Context, tx dbx.DBTX, ownerID, categoryID string) error {
	now := m.store.Now()

	expRepo := expenses.New(tx)
	exp, err := expRepo.ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	for _, e := range exp {
		e.CategoryID = ""
		e.Touch(now)
		if err := expRepo.Upsert(ctx, e); err != nil {
			return err
		}
	}

	incRepo := incomes.New(tx)
	inc, err := incRepo.ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	for _, e := range inc {
		e.CategoryID = ""
		e.Touch(now)
		if err := incRepo.Upsert(ctx, e); err != nil {
			return err
		}
	}

	budRepo := budgets.New(tx)
	bud, err := budRepo.ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	for _, e := range bud {
		e.CategoryID = ""
		e.Touch(now)
		if err := budRepo.Upsert(ctx, e); err != nil {
			return err
		}
	}

	rulRepo := recurring.New(tx)
	rul, err := rulRepo.ListActiveByCategory(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	for _, e := range rul {
		e.CategoryID = ""
		e.Touch(now)
		if err := rulRepo.Upsert(ctx, e); err != nil {
			return err
		}
	}

	return nil
}

// Tombstone is a deletion audit entry for listings.
type Tombstone struct {
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	DeletedAt  time.Time  `json:"deleted_at"`
	DeletedBy  string     `json:"deleted_by,omitempty"`
	Synced     bool       `json:"synced"`
	PurgeAfter time.Time  `json:"purge_after"`
}

// FetchTombstones lists the owner's tombstones across all collections,
// optionally only those deleted after newerThan.
func (m *Manager) FetchTombstones(ctx context.Context, ownerID string, newerThan *time.Time) ([]Tombstone, error) {
	var out []Tombstone

	collect := func(collection string, metas []*models.SyncMeta) {
		retention := m.policy.Retention(collection)
		for _, meta := range metas {
			t := Tombstone{
				Collection: collection,
				ID:         meta.ID,
				DeletedBy:  meta.DeletedBy,
				Synced:     meta.SyncStatus == models.StatusSynced,
			}
			if meta.DeletedAt != nil {
				t.DeletedAt = *meta.DeletedAt
				t.PurgeAfter = meta.DeletedAt.Add(retention)
			}
			out = append(out, t)
		}
	}

	exp, err := m.store.Expenses().Tombstones(ctx, ownerID, newerThan)
	if err != nil {
		return nil, err
	}
	collect("expenses", metasOf(exp))

	inc, err := m.store.Incomes().Tombstones(ctx, ownerID, newerThan)
	if err != nil {
		return nil, err
	}
	collect("incomes", metasOf(inc))

	cat, err := m.store.Categories().Tombstones(ctx, ownerID, newerThan)
	if err != nil {
		return nil, err
	}
	collect("categories", metasOf(cat))

	bud, err := m.store.Budgets().Tombstones(ctx, ownerID, newerThan)
	if err != nil {
		return nil, err
	}
	collect("budgets", metasOf(bud))

	rul, err := m.store.Rules().Tombstones(ctx, ownerID, newerThan)
	if err != nil {
		return nil, err
	}
	collect("recurring_rules", metasOf(rul))

	return out, nil
}

func metasOf[T models.Syncable](list []T) []*models.SyncMeta {
	out := make([]*models.SyncMeta, 0, len(list))
	for _, e := range list {
		out = append(out, e.Meta())
	}
	return out
}

// SweepExpired purges every tombstone older than its collection's
// retention. Categories that still have active dependents are skipped and
// retried on a later sweep. Running the sweep again with no new expirations
// is a no-op. Returns the number of purged rows and the accumulated errors.
func (m *Manager) SweepExpired(ctx context.Context, ownerID string) (int, error) {
	now := m.store.Now()
	purged := 0
	var errs error

	sweep := func(collection string, ids []string, purge func(id string) error) {
		for _, id := range ids {
			err := purge(id)
			switch {
			case err == nil:
				purged++
			case errors.Is(err, common.ErrDependencyExists):
				m.log.Debug(ctx, "sweep deferred, dependents exist", "collection", collection, "id", id)
			case errors.Is(err, common.ErrNotFound):
				// purged by a concurrent sweep
			default:
				errs = multierr.Append(errs, fmt.Errorf("sweep %s %s: %w", collection, id, err))
			}
		}
	}

	exp, err := m.store.Expenses().ExpiredTombstones(ctx, ownerID, now.Add(-m.policy.Retention("expenses")))
	if err != nil {
		return purged, err
	}
	sweep("expenses", idsOf(exp), func(id string) error { return m.PurgeExpense(ctx, ownerID, id) })

	inc, err := m.store.Incomes().ExpiredTombstones(ctx, ownerID, now.Add(-m.policy.Retention("incomes")))
	if err != nil {
		return purged, multierr.Append(errs, err)
	}
	sweep("incomes", idsOf(inc), func(id string) error { return m.PurgeIncome(ctx, ownerID, id) })

	bud, err := m.store.Budgets().ExpiredTombstones(ctx, ownerID, now.Add(-m.policy.Retention("budgets")))
	if err != nil {
		return purged, multierr.Append(errs, err)
	}
	sweep("budgets", idsOf(bud), func(id string) error { return m.PurgeBudget(ctx, ownerID, id) })

	rul, err := m.store.Rules().ExpiredTombstones(ctx, ownerID, now.Add(-m.policy.Retention("recurring_rules")))
	if err != nil {
		return purged, multierr.Append(errs, err)
	}
	sweep("recurring_rules", idsOf(rul), func(id string) error { return m.PurgeRule(ctx, ownerID, id) })

	cat, err := m.store.Categories().ExpiredTombstones(ctx, ownerID, now.Add(-m.policy.Retention("categories")))
	if err != nil {
		return purged, multierr.Append(errs, err)
	}
	sweep("categories", idsOf(cat), func(id string) error { return m.PurgeCategory(ctx, ownerID, id, false) })

	if purged > 0 {
		m.log.Info(ctx, "tombstone sweep finished", "owner_id", ownerID, "purged", purged)
	}
	return purged, errs
}

func idsOf[T models.Syncable](list []T) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.Meta().ID)
	}
	return out
}
