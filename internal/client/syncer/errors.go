package syncer

import "fmt"

// FatalError aborts a sync cycle before or between phases. No local state
// has been modified when it is returned.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("sync aborted at %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ItemError is a per-item push or pull failure. The item keeps its pending
// status and is retried on the next cycle.
type ItemError struct {
	Collection string
	ID         string
	Op         string
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
