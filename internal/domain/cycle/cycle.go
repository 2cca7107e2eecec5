// internal/domain/cycle/cycle.go
package cycle

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDates      = errors.New("cycle dates must satisfy start_date < end_date < digest_date")
	ErrInvalidTransition = errors.New("invalid cycle status transition")
	ErrInvalidPause      = errors.New("cycle cannot be paused")
)

// Cycle is the scheduling envelope around one sending of a question to a group.
// Corresponds to the 'question_cycles' table.
type Cycle struct {
	ID               int64
	GroupID          int64
	QuestionID       int64
	QuestionRecordID sql.NullInt64 // set on first activation, never replaced
	StartDate        time.Time
	EndDate          time.Time
	DigestDate       time.Time
	Manual           bool
	Status           Status
	PausedUntil      sql.NullTime
	ActivatedAt      sql.NullTime
	ClosedAt         sql.NullTime
	CompletedAt      sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New builds a scheduled cycle and rejects bad date ordering.
func New(groupID, questionID int64, start, end, digest time.Time, manual bool) (*Cycle, error) {
	c := &Cycle{
		GroupID:    groupID,
		QuestionID: questionID,
		StartDate:  start,
		EndDate:    end,
		DigestDate: digest,
		Manual:     manual,
		Status:     StatusScheduled,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the date ordering invariant and the status value.
func (c *Cycle) Validate() error {
	if !c.EndDate.After(c.StartDate) || !c.DigestDate.After(c.EndDate) {
		return fmt.Errorf("%w (start=%s end=%s digest=%s)", ErrInvalidDates,
			c.StartDate.Format(time.RFC3339), c.EndDate.Format(time.RFC3339), c.DigestDate.Format(time.RFC3339))
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, c.Status)
	}
	return nil
}

// AcceptsAnswers reports whether answers for this cycle's record can be admitted.
func (c *Cycle) AcceptsAnswers() bool {
	return c.Status.Equal(StatusActive)
}

// IsPaused reports whether the cycle is paused at asOf.
func (c *Cycle) IsPaused(asOf time.Time) bool {
	return c.PausedUntil.Valid && c.PausedUntil.Time.After(asOf)
}

// Activate moves scheduled -> active. It returns false without error when the
// cycle is already active, so retried jobs are harmless.
func (c *Cycle) Activate(now time.Time) (bool, error) {
	changed, err := c.advance(StatusActive)
	if changed {
		c.ActivatedAt = sql.NullTime{Time: now, Valid: true}
	}
	return changed, err
}

// Close moves active -> closed. Closing an already closed cycle is a no-op.
func (c *Cycle) Close(now time.Time) (bool, error) {
	changed, err := c.advance(StatusClosed)
	if changed {
		c.ClosedAt = sql.NullTime{Time: now, Valid: true}
		c.PausedUntil = sql.NullTime{}
	}
	return changed, err
}

// Complete moves closed -> completed once the digest went out.
func (c *Cycle) Complete(now time.Time) (bool, error) {
	changed, err := c.advance(StatusCompleted)
	if changed {
		c.CompletedAt = sql.NullTime{Time: now, Valid: true}
	}
	return changed, err
}

// advance moves the cycle one step forward to target. Being in target already
// is not an error.
func (c *Cycle) advance(target Status) (bool, error) {
	if c.Status.Equal(target) {
		return false, nil
	}
	next, ok := c.Status.next()
	if !ok || !next.Equal(target) {
		return false, fmt.Errorf("%w: %s -> %s (cycle %d)", ErrInvalidTransition, c.Status, target, c.ID)
	}
	c.Status = target
	return true, nil
}

// PauseUntil suspends automatic transitions until the given time. A scheduled
// cycle starting before until is shifted so that it starts at until.
func (c *Cycle) PauseUntil(until, now time.Time) error {
	if !until.After(now) {
		return fmt.Errorf("%w: pause date %s is not in the future", ErrInvalidPause, until.Format(time.RFC3339))
	}
	switch c.Status {
	case StatusScheduled:
		if c.StartDate.Before(until) {
			c.shiftBy(until.Sub(c.StartDate))
		}
	case StatusActive:
	default:
		return fmt.Errorf("%w: cycle %d is %s", ErrInvalidPause, c.ID, c.Status)
	}
	c.PausedUntil = sql.NullTime{Time: until, Valid: true}
	return c.Validate()
}

// ResumeNow lifts a pause. A scheduled cycle is moved to start now.
func (c *Cycle) ResumeNow(now time.Time) error {
	if !c.PausedUntil.Valid {
		return nil
	}
	c.PausedUntil = sql.NullTime{}
	if c.Status.Equal(StatusScheduled) && c.StartDate.After(now) {
		c.shiftBy(now.Sub(c.StartDate))
	}
	return c.Validate()
}

func (c *Cycle) shiftBy(d time.Duration) {
	c.StartDate = c.StartDate.Add(d)
	c.EndDate = c.EndDate.Add(d)
	c.DigestDate = c.DigestDate.Add(d)
}
