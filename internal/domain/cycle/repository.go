// internal/domain/cycle/repository.go
package cycle

import (
	"context"
	"errors"
)

// ErrNoChange is returned by a MutateFunc to leave the stored cycle untouched.
var ErrNoChange = errors.New("cycle unchanged")

// Tx exposes the writes allowed while a cycle row is locked.
type Tx interface {
	// CreateRecord inserts the question record owned by the locked cycle and returns its id.
	CreateRecord(ctx context.Context, groupID, questionID int64) (int64, error)
}

// MutateFunc changes c in place. Returning ErrNoChange skips the update.
type MutateFunc func(ctx context.Context, c *Cycle, tx Tx) error

// Repository defines persistence operations for question cycles.
type Repository interface {
	Create(ctx context.Context, c *Cycle) error
	GetByID(ctx context.Context, id int64) (*Cycle, error)
	GetByRecordID(ctx context.Context, recordID int64) (*Cycle, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]*Cycle, error)
	ListOpenByGroup(ctx context.Context, groupID int64) ([]*Cycle, error) // scheduled or active

	// Mutate loads the cycle under a row lock, applies fn and persists the
	// result in the same transaction. Concurrent callers are serialized.
	Mutate(ctx context.Context, id int64, fn MutateFunc) (*Cycle, error)
}
