// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a helper to run functions inside a transaction, and a per-owner
// writer gate that serializes the local store's write path.
package dbx

import (
	"context"
	"database/sql"
	"sync"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// WriterGate serializes write transactions per owner. Concurrent writers for
// the same owner queue behind one mutex; writers for different owners do not
// contend. This is what prevents interleaved read-modify-write races on
// sync metadata columns.
type WriterGate struct {
	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

func NewWriterGate() *WriterGate {
	return &WriterGate{owners: make(map[string]*sync.Mutex)}
}

// Lock acquires the write lock for ownerID and returns the unlock function.
func (g *WriterGate) Lock(ownerID string) func() {
	g.mu.Lock()
	m, ok := g.owners[ownerID]
	if !ok {
		m = &sync.Mutex{}
		g.owners[ownerID] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}
