package answer

import (
	"context"
	"time"
)

// Source tells how an answer reached the system.
type Source string

const (
	SourceEmail Source = "email"
	SourceWeb   Source = "web"
)

// Answer is one member's reply to one question record.
// (MemberID, QuestionRecordID) is unique.
type Answer struct {
	ID               int64
	QuestionRecordID int64
	MemberID         int64
	Content          string
	Source           Source
	CreatedAt        time.Time
}

// Repository defines persistence for answers.
type Repository interface {
	// Create must fail with a duplicate error when the member already answered the record.
	Create(ctx context.Context, a *Answer) error
	Exists(ctx context.Context, memberID, recordID int64) (bool, error)
	ListByRecord(ctx context.Context, recordID int64) ([]*Answer, error)
}
