// internal/app/cycle_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group_question_service/internal/domain/cycle"
	"group_question_service/internal/domain/question"
	idb "group_question_service/internal/infra/database"
	"group_question_service/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// CycleService drives question cycles through their lifecycle. Every
// transition is idempotent: calling it again on a cycle that already made the
// move changes nothing.
type CycleService struct {
	cycles       cycle.Repository
	questions    question.Repository
	dispatcher   *QuestionDispatcher
	answerWindow time.Duration
	digestDelay  time.Duration
	logger       *logrus.Entry
	now          func() time.Time
}

func NewCycleService(
	cycles cycle.Repository,
	questions question.Repository,
	dispatcher *QuestionDispatcher,
	answerWindow, digestDelay time.Duration,
	logger *logrus.Entry,
) *CycleService {
	return &CycleService{
		cycles:       cycles,
		questions:    questions,
		dispatcher:   dispatcher,
		answerWindow: answerWindow,
		digestDelay:  digestDelay,
		logger:       logger.WithField("component", "cycle_service"),
		now:          time.Now,
	}
}

// Schedule creates a cycle for (group, question) starting at start. A manual
// cycle whose start is already reached is activated right away.
func (s *CycleService) Schedule(ctx context.Context, groupID, questionID int64, start time.Time, manual bool) (*cycle.Cycle, error) {
	if _, err := s.questions.GetGroupByID(ctx, groupID); err != nil {
		return nil, fmt.Errorf("failed to load group %d: %w", groupID, err)
	}
	if _, err := s.questions.GetQuestionByID(ctx, questionID); err != nil {
		return nil, fmt.Errorf("failed to load question %d: %w", questionID, err)
	}

	end := start.Add(s.answerWindow)
	c, err := cycle.New(groupID, questionID, start, end, end.Add(s.digestDelay), manual)
	if err != nil {
		return nil, err
	}
	if err := s.cycles.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create cycle: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"cycle_id":    c.ID,
		"group_id":    groupID,
		"question_id": questionID,
		"start_date":  c.StartDate.Format(time.RFC3339),
		"manual":      manual,
	}).Info("Cycle scheduled")

	if manual && !start.After(s.now()) {
		return s.Activate(ctx, c.ID)
	}
	return c, nil
}

// ScheduleWeekly gives every weekly group without an upcoming automatic cycle
// a new one with the next question the group has not seen yet.
func (s *CycleService) ScheduleWeekly(ctx context.Context) (int, error) {
	groups, err := s.questions.ListWeeklyGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list weekly groups: %w", err)
	}

	scheduled := 0
	var errs []error
	for _, g := range groups {
		log := s.logger.WithField("group_id", g.ID)
		open, err := s.cycles.ListOpenByGroup(ctx, g.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %d: %w", g.ID, err))
			continue
		}
		if hasAutomatic(open) {
			log.Debug("Group already has an upcoming weekly cycle, skipping")
			continue
		}

		q, err := s.questions.NextUnsentQuestion(ctx, g.ID)
		if err != nil {
			if errors.Is(err, idb.ErrQuestionNotFound) {
				log.Warn("No unsent question left for group")
				continue
			}
			errs = append(errs, fmt.Errorf("group %d: %w", g.ID, err))
			continue
		}
		if _, err := s.Schedule(ctx, g.ID, q.ID, s.now(), false); err != nil {
			errs = append(errs, fmt.Errorf("group %d: %w", g.ID, err))
			continue
		}
		scheduled++
	}
	return scheduled, errors.Join(errs...)
}

func hasAutomatic(cycles []*cycle.Cycle) bool {
	for _, c := range cycles {
		if !c.Manual {
			return true
		}
	}
	return false
}

// Activate opens the cycle and creates its question record if it has none.
// Question emails go out only on the call that actually made the transition.
func (s *CycleService) Activate(ctx context.Context, id int64) (*cycle.Cycle, error) {
	now := s.now()
	var activated bool
	c, err := s.cycles.Mutate(ctx, id, func(ctx context.Context, c *cycle.Cycle, tx cycle.Tx) error {
		activated = false
		changed, err := c.Activate(now)
		if err != nil {
			return err
		}
		if c.QuestionRecordID.Valid {
			if !changed {
				return cycle.ErrNoChange
			}
			return nil
		}
		recordID, err := tx.CreateRecord(ctx, c.GroupID, c.QuestionID)
		if err != nil {
			return fmt.Errorf("failed to create question record: %w", err)
		}
		c.QuestionRecordID = sql.NullInt64{Int64: recordID, Valid: true}
		activated = changed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to activate cycle %d: %w", id, err)
	}
	if !activated {
		s.logger.WithField("cycle_id", id).Info("Cycle already active, nothing to do")
		return c, nil
	}

	metrics.RecordCycleTransition("activate")
	s.logger.WithFields(logrus.Fields{
		"cycle_id":           c.ID,
		"question_record_id": c.QuestionRecordID.Int64,
	}).Info("Cycle activated")

	if s.dispatcher != nil {
		if _, err := s.dispatcher.Dispatch(ctx, c); err != nil {
			s.logger.WithField("cycle_id", c.ID).WithError(err).Error("Failed to dispatch question")
		}
	}
	return c, nil
}

// Close stops the cycle from accepting answers.
func (s *CycleService) Close(ctx context.Context, id int64) (*cycle.Cycle, error) {
	return s.transition(ctx, id, "close", func(c *cycle.Cycle, now time.Time) (bool, error) {
		return c.Close(now)
	})
}

// Complete marks the cycle as digested.
func (s *CycleService) Complete(ctx context.Context, id int64) (*cycle.Cycle, error) {
	return s.transition(ctx, id, "complete", func(c *cycle.Cycle, now time.Time) (bool, error) {
		return c.Complete(now)
	})
}

// PauseUntil suspends automatic transitions of the cycle until the given time.
func (s *CycleService) PauseUntil(ctx context.Context, id int64, until time.Time) (*cycle.Cycle, error) {
	return s.transition(ctx, id, "pause", func(c *cycle.Cycle, now time.Time) (bool, error) {
		return true, c.PauseUntil(until, now)
	})
}

// ResumeNow lifts a pause.
func (s *CycleService) ResumeNow(ctx context.Context, id int64) (*cycle.Cycle, error) {
	return s.transition(ctx, id, "resume", func(c *cycle.Cycle, now time.Time) (bool, error) {
		if !c.PausedUntil.Valid {
			return false, nil
		}
		return true, c.ResumeNow(now)
	})
}

func (s *CycleService) transition(ctx context.Context, id int64, name string, apply func(*cycle.Cycle, time.Time) (bool, error)) (*cycle.Cycle, error) {
	now := s.now()
	var changed bool
	c, err := s.cycles.Mutate(ctx, id, func(_ context.Context, c *cycle.Cycle, _ cycle.Tx) error {
		var err error
		changed, err = apply(c, now)
		if err != nil {
			return err
		}
		if !changed {
			return cycle.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s cycle %d: %w", name, id, err)
	}

	log := s.logger.WithFields(logrus.Fields{"cycle_id": id, "transition": name, "status": c.Status})
	if !changed {
		log.Info("Cycle transition already applied, nothing to do")
		return c, nil
	}
	metrics.RecordCycleTransition(name)
	log.Info("Cycle transition applied")
	return c, nil
}

// RunLifecycle activates and closes every cycle that is due at the current
// time. One failing cycle does not stop the others.
func (s *CycleService) RunLifecycle(ctx context.Context) error {
	asOf := s.now()
	candidates, err := s.cycles.ListByStatus(ctx, cycle.StatusScheduled, cycle.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to list open cycles: %w", err)
	}

	var errs []error
	for _, c := range cycle.DueForActivation(candidates, asOf) {
		if _, err := s.Activate(ctx, c.ID); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range cycle.DueForClose(candidates, asOf) {
		if _, err := s.Close(ctx, c.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
