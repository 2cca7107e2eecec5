package reply

import (
	"context"
	"time"
)

// Outcome is the structured result of processing one inbound message.
type Outcome struct {
	Success              bool   `json:"success"`
	AnswerID             int64  `json:"answer_id,omitempty"`
	QuestionRecordID     int64  `json:"question_record_id,omitempty"`
	UserID               int64  `json:"user_id,omitempty"`
	IdentificationMethod Method `json:"identification_method"`
	ErrorCode            string `json:"error_code,omitempty"`
	Error                string `json:"error,omitempty"`
}

// Rejected builds a failed outcome from a rejection error.
func Rejected(method Method, err error) Outcome {
	return Outcome{
		IdentificationMethod: method,
		ErrorCode:            Code(err),
		Error:                err.Error(),
	}
}

// EventKind distinguishes audit events.
type EventKind string

const (
	EventIdentificationAttempt EventKind = "identification_attempt"
	EventOutcome               EventKind = "outcome"
)

// Event is emitted for every identification attempt and every outcome.
type Event struct {
	ID               string
	Kind             EventKind
	Method           Method
	Success          bool
	ErrorCode        string
	Sender           string
	Subject          string
	QuestionRecordID int64
	AnswerID         int64
	OccurredAt       time.Time
}

// EventPublisher delivers audit events to the observability collaborator.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
