package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/client/recurrence"
)

func (a *App) addRule(ctx context.Context) error {
	kindText, err := getSimpleText(a.reader, "Enter kind (expense/income)", os.Stdout)
	if err != nil {
		return err
	}
	kind := models.Kind(kindText)
	if !kind.Valid() {
		return fmt.Errorf("invalid kind %q", kindText)
	}

	amount, err := GetAmount(a.reader, "Enter amount", os.Stdout)
	if err != nil {
		return err
	}
	note, err := getSimpleText(a.reader, "Enter note (optional)", os.Stdout)
	if err != nil {
		return err
	}
	categoryID, err := a.pickCategory(ctx, kind)
	if err != nil {
		return err
	}

	freqText, err := getSimpleText(a.reader, "Enter frequency (daily/weekly/monthly/yearly)", os.Stdout)
	if err != nil {
		return err
	}
	freq := models.Frequency(freqText)
	if !freq.Valid() {
		return fmt.Errorf("invalid frequency %q", freqText)
	}

	var day int
	switch freq {
	case models.FreqWeekly:
		day, err = a.promptInt("Enter day of week (1=Sunday .. 7=Saturday)")
	case models.FreqMonthly:
		day, err = a.promptInt("Enter day of month (1-31)")
	}
	if err != nil {
		return err
	}

	start, err := GetDate(a.reader, "Enter start date", a.store.Now().UTC().Truncate(24*time.Hour), os.Stdout)
	if err != nil {
		return err
	}

	var end *time.Time
	endText, err := getSimpleText(a.reader, "Enter end date (YYYY-MM-DD, empty for none)", os.Stdout)
	if err != nil {
		return err
	}
	if endText != "" {
		d, err := time.ParseInLocation(time.DateOnly, endText, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date %q", endText)
		}
		end = &d
	}

	r := &models.RecurringRule{
		Kind:           kind,
		Amount:         amount,
		Note:           note,
		CategoryID:     categoryID,
		Frequency:      freq,
		StartDate:      start,
		EndDate:        end,
		DayOfMonthWeek: day,
		IsActive:       true,
	}
	r.OwnerID = a.ownerID
	if err := a.store.Rules().Create(ctx, r); err != nil {
		return err
	}
	fmt.Printf("Added rule %s\n", r.ID)
	return nil
}

func (a *App) promptInt(prompt string) (int, error) {
	text, err := getSimpleText(a.reader, prompt, os.Stdout)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", text)
	}
	return n, nil
}

// generate materializes all due occurrences of the owner's active rules.
// Failed rules are reported individually; the rest still generate.
func (a *App) generate(ctx context.Context) error {
	created, err := a.generator.GenerateDue(ctx, a.ownerID)
	if err != nil {
		var ge *recurrence.GenerationError
		if errors.As(err, &ge) {
			fmt.Printf("Some rules failed: %s\n", err.Error())
		} else {
			return err
		}
	}
	fmt.Printf("Generated %d transaction(s)\n", created)
	return nil
}
