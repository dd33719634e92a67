// Package recurrence materializes concrete expenses and incomes from
// recurring rule templates. Generation is idempotent: an occurrence is
// identified by (rule id, occurrence date) and checked against the store
// before every write.
package recurrence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/expenses"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/incomes"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/recurring"
	"github.com/dmitrijs2005/walletsync/internal/client/store"
	"github.com/dmitrijs2005/walletsync/internal/logging"
)

// GenerationError is a per-rule failure. Sibling rules keep generating.
type GenerationError struct {
	RuleID string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator creates due occurrences. Safe to run at process start, on
// foreground resume and on manual trigger, concurrently with sync.
type Generator struct {
	store *store.Store
	log   logging.Logger
}

func NewGenerator(s *store.Store, log logging.Logger) *Generator {
	return &Generator{store: s, log: log}
}

// GenerateDue creates every occurrence due through today for the owner's
// active rules. Returns the number of occurrences created and the
// accumulated per-rule errors.
func (g *Generator) GenerateDue(ctx context.Context, ownerID string) (int, error) {
	rules, err := recurring.New(g.store.Reader()).ListActive(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list active rules: %w", err)
	}

	today := dateOnly(g.store.Now())
	created := 0
	var errs error

	for _, rule := range rules {
		n, err := g.generateRule(ctx, ownerID, rule, today)
		created += n
		if err != nil {
			errs = multierr.Append(errs, &GenerationError{RuleID: rule.ID, Err: err})
		}
	}

	if created > 0 {
		g.log.Info(ctx, "recurrence generation finished", "owner_id", ownerID, "created", created)
	}
	return created, errs
}

func (g *Generator) generateRule(ctx context.Context, ownerID string, rule *models.RecurringRule, today time.Time) (int, error) {
	end := today
	if rule.EndDate != nil {
		if e := dateOnly(*rule.EndDate); e.Before(end) {
			end = e
		}
	}
	start := dateOnly(rule.StartDate)
	if start.After(end) {
		return 0, nil
	}

	// resume after the newest generated occurrence; the existence check
	// below still guards every write, this only bounds the scan
	last, err := g.maxOccurrence(ctx, ownerID, rule)
	if err != nil {
		return 0, err
	}
	from := start
	if last != nil {
		if next := dateOnly(*last).AddDate(0, 0, 1); next.After(from) {
			from = next
		}
	}
	if from.After(end) {
		return 0, nil
	}

	dates, err := schedule(rule, start, from, end)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		exists, err := g.occurrenceExists(ctx, ownerID, rule, date)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := g.createOccurrence(ctx, ownerID, rule, date); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (g *Generator) maxOccurrence(ctx context.Context, ownerID string, rule *models.RecurringRule) (*time.Time, error) {
	if rule.Kind == models.KindIncome {
		return incomes.New(g.store.Reader()).MaxOccurrenceDate(ctx, ownerID, rule.ID)
	}
	return expenses.New(g.store.Reader()).MaxOccurrenceDate(ctx, ownerID, rule.ID)
}

func (g *Generator) occurrenceExists(ctx context.Context, ownerID string, rule *models.RecurringRule, date time.Time) (bool, error) {
	if rule.Kind == models.KindIncome {
		return incomes.New(g.store.Reader()).ExistsOccurrence(ctx, ownerID, rule.ID, date)
	}
	return expenses.New(g.store.Reader()).ExistsOccurrence(ctx, ownerID, rule.ID, date)
}

func (g *Generator) createOccurrence(ctx context.Context, ownerID string, rule *models.RecurringRule, date time.Time) error {
	occ := date
	if rule.Kind == models.KindIncome {
		return g.store.Incomes().Create(ctx, &models.Income{
			SyncMeta:       models.SyncMeta{OwnerID: ownerID},
			Amount:         rule.Amount,
			Date:           date,
			Note:           rule.Note,
			CategoryID:     rule.CategoryID,
			RuleID:         rule.ID,
			OccurrenceDate: &occ,
		})
	}
	return g.store.Expenses().Create(ctx, &models.Expense{
		SyncMeta:       models.SyncMeta{OwnerID: ownerID},
		Amount:         rule.Amount,
		Date:           date,
		Note:           rule.Note,
		CategoryID:     rule.CategoryID,
		RuleID:         rule.ID,
		OccurrenceDate: &occ,
	})
}

// schedule returns the rule's occurrence dates within [from, end], in
// order. start is the rule's start date; it anchors weekly and yearly
// schedules even when from has moved past it.
func schedule(rule *models.RecurringRule, start, from, end time.Time) ([]time.Time, error) {
	switch rule.Frequency {
	case models.FreqDaily:
		return daily(from, end), nil
	case models.FreqWeekly:
		return weekly(rule.DayOfMonthWeek, from, end)
	case models.FreqMonthly:
		return monthly(rule.DayOfMonthWeek, from, end)
	case models.FreqYearly:
		return yearly(start, from, end), nil
	default:
		return nil, fmt.Errorf("unknown frequency %q", rule.Frequency)
	}
}

func daily(from, end time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// weekly emits the weekday identified by anchor, 1=Sunday through
// 7=Saturday.
func weekly(anchor int, from, end time.Time) ([]time.Time, error) {
	if anchor < 1 || anchor > 7 {
		return nil, fmt.Errorf("weekly anchor %d out of range 1..7", anchor)
	}
	weekday := time.Weekday(anchor - 1)

	d := from
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, 1)
	}
	var out []time.Time
	for ; !d.After(end); d = d.AddDate(0, 0, 7) {
		out = append(out, d)
	}
	return out, nil
}

// monthly emits day-of-month day each month, clamped to the month's last
// day when the month is shorter.
func monthly(day int, from, end time.Time) ([]time.Time, error) {
	if day < 1 || day > 31 {
		return nil, fmt.Errorf("monthly day %d out of range 1..31", day)
	}
	var out []time.Time
	y, m := from.Year(), from.Month()
	for {
		d := clampToMonth(y, m, day)
		if d.After(end) {
			return out, nil
		}
		if !d.Before(from) {
			out = append(out, d)
		}
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
}

// yearly emits the anniversary of start each year, with Feb 29 clamped to
// Feb 28 in non-leap years.
func yearly(start, from, end time.Time) []time.Time {
	var out []time.Time
	for y := from.Year(); ; y++ {
		d := clampToMonth(y, start.Month(), start.Day())
		if d.After(end) {
			return out
		}
		if !d.Before(from) {
			out = append(out, d)
		}
	}
}

// clampToMonth builds the date, pulling day back to the month's last day
// when it overflows (time.Date would normalize it into the next month).
func clampToMonth(year int, month time.Month, day int) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
