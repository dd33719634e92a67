package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/common"
)

// sync runs one full push/pull cycle against the server.
func (a *App) sync(ctx context.Context) error {
	if a.Mode != ModeOnline {
		fmt.Println("Not online; sync needs a server connection")
		return nil
	}

	if err := a.engine.FullSync(ctx, a.ownerID); err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			fmt.Println("Sync already running")
			return nil
		}
		fmt.Printf("Sync finished with errors: %s\n", err.Error())
		return err
	}
	fmt.Println("Sync complete")
	return nil
}

func (a *App) syncStatus(ctx context.Context) error {
	st := a.engine.Status()

	if st.IsSyncing {
		fmt.Printf("Syncing: %s (%.0f%%)\n", st.CurrentOperation, st.Progress*100)
		return nil
	}
	if st.LastSyncAt != nil {
		fmt.Printf("Last sync: %s\n", st.LastSyncAt.Local().Format(time.RFC3339))
	} else {
		fmt.Println("Never synced")
	}
	if st.LastSyncError != "" {
		fmt.Printf("Last error: %s\n", st.LastSyncError)
	}
	return nil
}

func (a *App) listTombstones(ctx context.Context) error {
	stones, err := a.tombstones.FetchTombstones(ctx, a.ownerID, nil)
	if err != nil {
		return err
	}
	for _, ts := range stones {
		fmt.Printf("%s/%s  deleted %s by %s  purge after %s\n",
			ts.Collection, ts.ID,
			ts.DeletedAt.Format(time.DateOnly), ts.DeletedBy,
			ts.PurgeAfter.Format(time.DateOnly))
	}
	fmt.Printf("%d tombstone(s)\n", len(stones))
	return nil
}

// sweep purges tombstones older than their collection's retention window.
func (a *App) sweep(ctx context.Context) error {
	purged, err := a.tombstones.SweepExpired(ctx, a.ownerID)
	if err != nil {
		fmt.Printf("Sweep finished with errors: %s\n", err.Error())
	}
	fmt.Printf("Purged %d tombstone(s)\n", purged)
	return nil
}

// attachReceipt uploads a receipt image for an expense.
func (a *App) attachReceipt(ctx context.Context, expenseID, path string) error {
	if a.Mode != ModeOnline {
		fmt.Println("Not online; receipt upload needs a server connection")
		return nil
	}
	key, err := a.uploader.Attach(ctx, a.ownerID, expenseID, path)
	if err != nil {
		return err
	}
	fmt.Printf("Receipt stored as %s\n", key)
	return nil
}
