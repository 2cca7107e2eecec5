// internal/domain/digest/digest.go
package digest

import (
	"context"
	"database/sql"
	"time"
)

// Status is the delivery state of a digest.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Digest bundles the closed question records of one group for delivery.
type Digest struct {
	ID          int64
	GroupID     int64
	WindowStart time.Time
	WindowEnd   time.Time
	RecordIDs   []int64
	Status      Status
	Error       sql.NullString
	SentAt      sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence for digests.
type Repository interface {
	Create(ctx context.Context, d *Digest) error
	// Update writes the window, record ids and delivery state of d.
	Update(ctx context.Context, d *Digest) error
	// ListByRecords returns the group's digests that contain any of recordIDs, oldest first.
	ListByRecords(ctx context.Context, groupID int64, recordIDs []int64) ([]*Digest, error)
	GetByID(ctx context.Context, id int64) (*Digest, error)
}
