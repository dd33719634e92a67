// Package syncer reconciles the local store with the remote one: it pushes
// pending local changes, pulls remote changes newer than the checkpoint and
// resolves conflicts last-writer-wins by update time.
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/walletsync/internal/client/remote"
	"github.com/dmitrijs2005/walletsync/internal/client/store"
	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/logging"
)

// Checkpoints persists the per-owner pull cursor.
type Checkpoints interface {
	Get(ctx context.Context, ownerID string) (*time.Time, error)
	Set(ctx context.Context, ownerID string, at time.Time) error
}

// Status is the read-only observability side channel for the UI. It is not
// part of sync correctness.
type Status struct {
	IsSyncing        bool
	Progress         float64
	CurrentOperation string
	LastSyncAt       *time.Time
	LastSyncError    string
}

// Engine drives full sync cycles. One cycle at a time; a second FullSync
// while one is running is rejected with ErrSyncInProgress.
type Engine struct {
	cols    []store.Collection
	remote  remote.Store
	cp      Checkpoints
	log     logging.Logger
	workers int
	now     func() time.Time

	mu      sync.Mutex
	syncing bool
	status  Status
}

type Option func(*Engine)

// WithWorkers bounds the number of collections synced concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(s *store.Store, r remote.Store, cp Checkpoints, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		cols:    s.SyncCollections(),
		remote:  r,
		cp:      cp,
		log:     log,
		workers: 3,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Status returns a snapshot of the engine's observable state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) setOperation(op string) {
	e.mu.Lock()
	e.status.CurrentOperation = op
	e.mu.Unlock()
}

func (e *Engine) addProgress(delta float64) {
	e.mu.Lock()
	e.status.Progress += delta
	if e.status.Progress > 1 {
		e.status.Progress = 1
	}
	e.mu.Unlock()
}

// FullSync runs one push-then-pull cycle for the owner. Per-item failures
// are accumulated and returned as a composite error after the whole batch
// has been attempted; the failed items stay pending for the next cycle. A
// failure before the phases begin aborts with FatalError and leaves local
// state untouched. The pull checkpoint advances only when every pull
// completed without error.
func (e *Engine) FullSync(ctx context.Context, ownerID string) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return common.ErrSyncInProgress
	}
	e.syncing = true
	last := e.status.LastSyncAt
	e.status = Status{IsSyncing: true, CurrentOperation: "connecting", LastSyncAt: last}
	e.mu.Unlock()

	e.log.Debug(ctx, "sync cycle started", "owner_id", ownerID)
	err := e.run(ctx, ownerID)
	if err != nil {
		e.log.Warn(ctx, "sync cycle finished with errors", "owner_id", ownerID, "error", err.Error())
	} else {
		e.log.Info(ctx, "sync cycle finished", "owner_id", ownerID)
	}

	e.mu.Lock()
	e.syncing = false
	e.status.IsSyncing = false
	e.status.CurrentOperation = ""
	if err != nil {
		e.status.LastSyncError = err.Error()
	} else {
		now := e.now()
		e.status.LastSyncAt = &now
		e.status.Progress = 1
	}
	e.mu.Unlock()
	return err
}

func (e *Engine) run(ctx context.Context, ownerID string) error {
	if err := e.remote.Ping(ctx); err != nil {
		return &FatalError{Stage: "ping", Err: err}
	}

	cp, err := e.cp.Get(ctx, ownerID)
	if err != nil {
		return &FatalError{Stage: "checkpoint", Err: err}
	}
	var since time.Time
	if cp != nil {
		since = *cp
	}

	var (
		resMu     sync.Mutex
		errs      error
		pullClean = true
		newCp     = since
	)
	observe := func(t time.Time) {
		if t.After(newCp) {
			newCp = t
		}
	}

	step := 1.0 / float64(len(e.cols))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, col := range e.cols {
		col := col
		g.Go(func() error {
			// push completes for this collection before its pull begins, so a
			// pulled record can never clobber an unpushed local change
			e.setOperation("syncing " + col.Name())
			pushed, pushErrs := e.push(ctx, ownerID, col)
			pulled, pullErrs := e.pull(ctx, ownerID, col, since)

			resMu.Lock()
			errs = multierr.Append(errs, multierr.Append(pushErrs, pullErrs))
			if pullErrs != nil {
				pullClean = false
			}
			for _, t := range pushed {
				observe(t)
			}
			for _, t := range pulled {
				observe(t)
			}
			resMu.Unlock()

			e.addProgress(step)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		// confirmed items keep their synced status; the rest stays pending
		return multierr.Append(errs, ctx.Err())
	}

	if pullClean && newCp.After(since) {
		if err := e.cp.Set(ctx, ownerID, newCp); err != nil {
			errs = multierr.Append(errs, &FatalError{Stage: "checkpoint", Err: err})
		}
	}
	return errs
}

// push drains the collection's pending entities. Returns the update times
// of the confirmed pushes and the accumulated per-item errors.
func (e *Engine) push(ctx context.Context, ownerID string, col store.Collection) ([]time.Time, error) {
	recs, err := col.Pending(ctx, ownerID)
	if err != nil {
		return nil, &ItemError{Collection: col.Name(), Op: "push", Err: err}
	}

	var errs error
	confirmed := make([]time.Time, 0, len(recs))
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		var pushErr error
		if rec.Deleted {
			at := rec.UpdatedAt
			if rec.DeletedAt != nil {
				at = *rec.DeletedAt
			}
			pushErr = e.remote.MarkDeleted(ctx, col.Name(), rec.ID, at)
		} else {
			pushErr = e.remote.Upsert(ctx, col.Name(), rec)
		}
		if pushErr != nil {
			errs = multierr.Append(errs, &ItemError{Collection: col.Name(), ID: rec.ID, Op: "push", Err: pushErr})
			continue
		}
		if err := col.MarkSynced(ctx, ownerID, rec.ID, rec.UpdatedAt); err != nil {
			errs = multierr.Append(errs, &ItemError{Collection: col.Name(), ID: rec.ID, Op: "mark-synced", Err: err})
			continue
		}
		confirmed = append(confirmed, rec.UpdatedAt)
	}
	return confirmed, errs
}

// pull fetches remote changes newer than since and applies them with
// last-writer-wins. Returns the update times of the fetched records
// (applied or not: a local-wins no-op still moves the cursor past the
// record) and the per-item errors.
func (e *Engine) pull(ctx context.Context, ownerID string, col store.Collection, since time.Time) ([]time.Time, error) {
	recs, err := e.remote.FetchSince(ctx, col.Name(), since)
	if err != nil {
		return nil, &ItemError{Collection: col.Name(), Op: "pull", Err: err}
	}

	var errs error
	seen := make([]time.Time, 0, len(recs))
	for _, rec := range recs {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if err := col.ApplyRemote(ctx, ownerID, rec); err != nil {
			errs = multierr.Append(errs, &ItemError{Collection: col.Name(), ID: rec.ID, Op: "apply", Err: err})
			continue
		}
		seen = append(seen, rec.UpdatedAt)
	}
	return seen, errs
}
