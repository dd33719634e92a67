// Package budgetwatch raises alerts when spending crosses a category's
// monthly budget. It listens to expense change events so alerts fire on
// local edits and on pulled remote changes alike.
package budgetwatch

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/bus"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/budgets"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/expenses"
	"github.com/dmitrijs2005/walletsync/internal/client/store"
	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/logging"
)

// Alert reports one exceeded budget for the period containing the expense.
type Alert struct {
	BudgetID    string
	CategoryID  string
	Limit       int64
	Spent       int64
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type Watcher struct {
	store *store.Store
	log   logging.Logger

	events      <-chan bus.Event
	unsubscribe func()
}

func NewWatcher(s *store.Store, b *bus.Bus, log logging.Logger) *Watcher {
	ch, unsub := b.Subscribe(bus.TopicExpenses, 16)
	return &Watcher{store: s, log: log, events: ch, unsubscribe: unsub}
}

// Run drains expense events until ctx is cancelled, logging a warning for
// every exceeded budget.
func (w *Watcher) Run(ctx context.Context) {
	defer w.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.events:
			if !ok {
				return
			}
			if e.Op == bus.OpDeleted || e.Op == bus.OpPurged {
				continue
			}
			alerts, err := w.CheckExpense(ctx, e.OwnerID, e.EntityID)
			if err != nil {
				w.log.Error(ctx, "budget check failed", "expense_id", e.EntityID, "error", err)
				continue
			}
			for _, a := range alerts {
				w.log.Warn(ctx, "budget exceeded",
					"category_id", a.CategoryID,
					"limit", a.Limit,
					"spent", a.Spent,
					"period_start", a.PeriodStart.Format(time.DateOnly))
			}
		}
	}
}

// CheckExpense evaluates every active budget covering the expense's
// category and returns those whose period total exceeds the limit.
func (w *Watcher) CheckExpense(ctx context.Context, ownerID, expenseID string) ([]Alert, error) {
	e, err := w.store.Expenses().Get(ctx, ownerID, expenseID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.SoftDeleted || e.CategoryID == "" {
		return nil, nil
	}

	active, err := budgets.New(w.store.Reader()).ListActiveByCategory(ctx, ownerID, e.CategoryID)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	for _, b := range active {
		from, to := periodFor(b.StartDay, e.Date)
		spent, err := expenses.New(w.store.Reader()).SumForRange(ctx, ownerID, e.CategoryID, from, to)
		if err != nil {
			return nil, err
		}
		if spent > b.MonthlyLimit {
			alerts = append(alerts, Alert{
				BudgetID:    b.ID,
				CategoryID:  e.CategoryID,
				Limit:       b.MonthlyLimit,
				Spent:       spent,
				PeriodStart: from,
				PeriodEnd:   to,
			})
		}
	}
	return alerts, nil
}

// periodFor returns the budget period [from, to) containing date. Periods
// run from startDay of one month to startDay of the next; startDay is
// capped at 28 so every month has one.
func periodFor(startDay int, date time.Time) (time.Time, time.Time) {
	if startDay < 1 || startDay > 28 {
		startDay = 1
	}
	date = date.UTC()

	from := time.Date(date.Year(), date.Month(), startDay, 0, 0, 0, 0, time.UTC)
	if date.Before(from) {
		from = from.AddDate(0, -1, 0)
	}
	return from, from.AddDate(0, 1, 0)
}
