package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/client/models"
)

func (a *App) addExpense(ctx context.Context) error {
	amount, err := GetAmount(a.reader, "Enter amount", os.Stdout)
	if err != nil {
		return err
	}
	date, err := GetDate(a.reader, "Enter date", a.store.Now().UTC().Truncate(24*time.Hour), os.Stdout)
	if err != nil {
		return err
	}
	note, err := getSimpleText(a.reader, "Enter note (optional)", os.Stdout)
	if err != nil {
		return err
	}
	categoryID, err := a.pickCategory(ctx, models.KindExpense)
	if err != nil {
		return err
	}

	e := &models.Expense{Amount: amount, Date: date, Note: note, CategoryID: categoryID}
	e.OwnerID = a.ownerID
	if err := a.store.Expenses().Create(ctx, e); err != nil {
		return err
	}
	fmt.Printf("Added expense %s\n", e.ID)
	return nil
}

func (a *App) addIncome(ctx context.Context) error {
	amount, err := GetAmount(a.reader, "Enter amount", os.Stdout)
	if err != nil {
		return err
	}
	date, err := GetDate(a.reader, "Enter date", a.store.Now().UTC().Truncate(24*time.Hour), os.Stdout)
	if err != nil {
		return err
	}
	note, err := getSimpleText(a.reader, "Enter note (optional)", os.Stdout)
	if err != nil {
		return err
	}
	categoryID, err := a.pickCategory(ctx, models.KindIncome)
	if err != nil {
		return err
	}

	e := &models.Income{Amount: amount, Date: date, Note: note, CategoryID: categoryID}
	e.OwnerID = a.ownerID
	if err := a.store.Incomes().Create(ctx, e); err != nil {
		return err
	}
	fmt.Printf("Added income %s\n", e.ID)
	return nil
}

func (a *App) addCategory(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", os.Stdout)
	if err != nil {
		return err
	}
	kindText, err := getSimpleText(a.reader, "Enter kind (expense/income)", os.Stdout)
	if err != nil {
		return err
	}
	kind := models.Kind(kindText)
	if !kind.Valid() {
		return fmt.Errorf("invalid kind %q", kindText)
	}

	c := &models.Category{Name: name, Kind: kind}
	c.OwnerID = a.ownerID
	if err := a.store.Categories().Create(ctx, c); err != nil {
		return err
	}
	fmt.Printf("Added category %s\n", c.ID)
	return nil
}

func (a *App) addBudget(ctx context.Context) error {
	categoryID, err := a.pickCategory(ctx, models.KindExpense)
	if err != nil {
		return err
	}
	if categoryID == "" {
		return fmt.Errorf("a budget needs a category")
	}
	limit, err := GetAmount(a.reader, "Enter monthly limit", os.Stdout)
	if err != nil {
		return err
	}

	b := &models.Budget{CategoryID: categoryID, MonthlyLimit: limit, StartDay: 1}
	b.OwnerID = a.ownerID
	if err := a.store.Budgets().Create(ctx, b); err != nil {
		return err
	}
	fmt.Printf("Added budget %s\n", b.ID)
	return nil
}

// pickCategory shows the owner's categories of the wanted kind and reads a
// choice. An empty answer means no category.
func (a *App) pickCategory(ctx context.Context, kind models.Kind) (string, error) {
	cats, err := a.store.Categories().List(ctx, a.ownerID, false)
	if err != nil {
		return "", err
	}
	matching := make([]*models.Category, 0, len(cats))
	for _, c := range cats {
		if c.Kind == kind {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return "", nil
	}

	fmt.Println("Categories:")
	for _, c := range matching {
		fmt.Printf("  %s  %s\n", c.ID, c.Name)
	}
	return getSimpleText(a.reader, "Enter category id (empty for none)", os.Stdout)
}

func (a *App) listExpenses(ctx context.Context) error {
	list, err := a.store.Expenses().List(ctx, a.ownerID, false)
	if err != nil {
		return err
	}
	for _, e := range list {
		receipt := ""
		if e.ReceiptKey != "" {
			receipt = " [receipt]"
		}
		fmt.Printf("%s  %s  %10s  %s%s\n", e.ID, e.Date.Format(time.DateOnly), FormatAmount(e.Amount), e.Note, receipt)
	}
	fmt.Printf("%d expense(s)\n", len(list))
	return nil
}

func (a *App) listIncomes(ctx context.Context) error {
	list, err := a.store.Incomes().List(ctx, a.ownerID, false)
	if err != nil {
		return err
	}
	for _, e := range list {
		fmt.Printf("%s  %s  %10s  %s\n", e.ID, e.Date.Format(time.DateOnly), FormatAmount(e.Amount), e.Note)
	}
	fmt.Printf("%d income(s)\n", len(list))
	return nil
}

func (a *App) listCategories(ctx context.Context) error {
	list, err := a.store.Categories().List(ctx, a.ownerID, false)
	if err != nil {
		return err
	}
	for _, c := range list {
		fmt.Printf("%s  %-8s  %s\n", c.ID, c.Kind, c.Name)
	}
	fmt.Printf("%d categorie(s)\n", len(list))
	return nil
}

func (a *App) listBudgets(ctx context.Context) error {
	list, err := a.store.Budgets().List(ctx, a.ownerID, false)
	if err != nil {
		return err
	}
	for _, b := range list {
		fmt.Printf("%s  category=%s  limit=%s\n", b.ID, b.CategoryID, FormatAmount(b.MonthlyLimit))
	}
	fmt.Printf("%d budget(s)\n", len(list))
	return nil
}

func (a *App) listRules(ctx context.Context) error {
	list, err := a.store.Rules().List(ctx, a.ownerID, false)
	if err != nil {
		return err
	}
	for _, r := range list {
		state := "active"
		if !r.IsActive {
			state = "paused"
		}
		fmt.Printf("%s  %-7s %-8s %10s  %s (%s)\n", r.ID, r.Kind, r.Frequency, FormatAmount(r.Amount), r.Note, state)
	}
	fmt.Printf("%d rule(s)\n", len(list))
	return nil
}

// deleteEntity tombstones one entity through the retention manager.
func (a *App) deleteEntity(ctx context.Context, collection, id string) error {
	by := a.email
	switch collection {
	case "expense", "expenses":
		return a.tombstones.DeleteExpense(ctx, a.ownerID, id, by)
	case "income", "incomes":
		return a.tombstones.DeleteIncome(ctx, a.ownerID, id, by)
	case "category", "categories":
		return a.tombstones.DeleteCategory(ctx, a.ownerID, id, by)
	case "budget", "budgets":
		return a.tombstones.DeleteBudget(ctx, a.ownerID, id, by)
	case "rule", "rules":
		return a.tombstones.DeleteRule(ctx, a.ownerID, id, by)
	}
	return fmt.Errorf("unknown collection %q", collection)
}

func (a *App) restoreEntity(ctx context.Context, collection, id string) error {
	switch collection {
	case "expense", "expenses":
		return a.tombstones.RestoreExpense(ctx, a.ownerID, id)
	case "income", "incomes":
		return a.tombstones.RestoreIncome(ctx, a.ownerID, id)
	case "category", "categories":
		return a.tombstones.RestoreCategory(ctx, a.ownerID, id)
	case "budget", "budgets":
		return a.tombstones.RestoreBudget(ctx, a.ownerID, id)
	case "rule", "rules":
		return a.tombstones.RestoreRule(ctx, a.ownerID, id)
	}
	return fmt.Errorf("unknown collection %q", collection)
}

func (a *App) purgeEntity(ctx context.Context, collection, id string, reassign bool) error {
	switch collection {
	case "expense", "expenses":
		return a.tombstones.PurgeExpense(ctx, a.ownerID, id)
	case "income", "incomes":
		return a.tombstones.PurgeIncome(ctx, a.ownerID, id)
	case "category", "categories":
		return a.tombstones.PurgeCategory(ctx, a.ownerID, id, reassign)
	case "budget", "budgets":
		return a.tombstones.PurgeBudget(ctx, a.ownerID, id)
	case "rule", "rules":
		return a.tombstones.PurgeRule(ctx, a.ownerID, id)
	}
	return fmt.Errorf("unknown collection %q", collection)
}
