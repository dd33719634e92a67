package models

import "time"

// Kind distinguishes money going out from money coming in. Categories and
// recurring rules are partitioned by it.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// Expense is one concrete spend. Amounts are integer cents.
type Expense struct {
	SyncMeta

	Amount     int64     `json:"amount"`
	Date       time.Time `json:"date"`
	Note       string    `json:"note,omitempty"`
	CategoryID string    `json:"category_id,omitempty"`

	// ReceiptKey is the object-storage key of an attached receipt image.
	ReceiptKey string `json:"receipt_key,omitempty"`

	// RuleID and OccurrenceDate are set when this expense was materialized
	// from a recurring rule; the pair is the generator's idempotence key.
	RuleID         string     `json:"rule_id,omitempty"`
	OccurrenceDate *time.Time `json:"occurrence_date,omitempty"`
}

// Income is one concrete receipt of money.
type Income struct {
	SyncMeta

	Amount     int64     `json:"amount"`
	Date       time.Time `json:"date"`
	Note       string    `json:"note,omitempty"`
	CategoryID string    `json:"category_id,omitempty"`

	RuleID         string     `json:"rule_id,omitempty"`
	OccurrenceDate *time.Time `json:"occurrence_date,omitempty"`
}

// Category groups transactions. Name is unique per owner and kind among
// non-deleted rows; the tombstone manager enforces this on restore.
type Category struct {
	SyncMeta

	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// Budget caps monthly spending for one category.
type Budget struct {
	SyncMeta

	CategoryID   string `json:"category_id"`
	MonthlyLimit int64  `json:"monthly_limit"`
	// StartDay is the day of month the budget period begins on (1–28).
	StartDay int `json:"start_day"`
}

// Frequency is the recurrence schedule of a rule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

// RecurringRule is a template that spawns concrete expenses or incomes.
//
// DayOfMonthWeek semantics depend on Frequency: day of week 1=Sunday..7=Saturday
// for weekly, day of month 1–31 for monthly (clamped to the month's last day),
// ignored for daily and yearly.
type RecurringRule struct {
	SyncMeta

	Kind       Kind   `json:"kind"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note,omitempty"`
	CategoryID string `json:"category_id,omitempty"`

	Frequency      Frequency  `json:"frequency"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	DayOfMonthWeek int        `json:"day_of_month_week,omitempty"`
	IsActive       bool       `json:"is_active"`
}
