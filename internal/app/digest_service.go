// internal/app/digest_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group_question_service/internal/domain/answer"
	"group_question_service/internal/domain/cycle"
	"group_question_service/internal/domain/digest"
	"group_question_service/internal/domain/mail"
	"group_question_service/internal/domain/member"
	"group_question_service/internal/domain/question"
	"group_question_service/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// DigestService compiles closed cycles into one digest per group and
// completes the cycles once the digest went out.
type DigestService struct {
	cycles    cycle.Repository
	questions question.Repository
	answers   answer.Repository
	members   member.Repository
	digests   digest.Repository
	sender    mail.Sender
	lifecycle *CycleService
	logger    *logrus.Entry
	now       func() time.Time
}

func NewDigestService(
	cycles cycle.Repository,
	questions question.Repository,
	answers answer.Repository,
	members member.Repository,
	digests digest.Repository,
	sender mail.Sender,
	lifecycle *CycleService,
	logger *logrus.Entry,
) *DigestService {
	return &DigestService{
		cycles:    cycles,
		questions: questions,
		answers:   answers,
		members:   members,
		digests:   digests,
		sender:    sender,
		lifecycle: lifecycle,
		logger:    logger.WithField("component", "digest_service"),
		now:       time.Now,
	}
}

// RunDigests sends a digest for every group that has closed cycles past their
// digest date and returns how many digests were sent. A failed digest leaves
// its cycles closed so the next run picks them up again.
func (s *DigestService) RunDigests(ctx context.Context) (int, error) {
	asOf := s.now()
	closed, err := s.cycles.ListByStatus(ctx, cycle.StatusClosed)
	if err != nil {
		return 0, fmt.Errorf("failed to list closed cycles: %w", err)
	}

	due := cycle.DueForDigest(closed, asOf)
	order := make([]int64, 0)
	byGroup := make(map[int64][]*cycle.Cycle)
	for _, c := range due {
		if !c.QuestionRecordID.Valid {
			s.logger.WithField("cycle_id", c.ID).Warn("Closed cycle without question record, skipping")
			continue
		}
		if _, ok := byGroup[c.GroupID]; !ok {
			order = append(order, c.GroupID)
		}
		byGroup[c.GroupID] = append(byGroup[c.GroupID], c)
	}

	sent := 0
	var errs []error
	for _, groupID := range order {
		delivered, err := s.compile(ctx, groupID, byGroup[groupID], asOf)
		if delivered {
			sent++
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("group %d: %w", groupID, err))
		}
	}
	return sent, errors.Join(errs...)
}

// compile delivers one digest for the group's due cycles. A record belongs to
// at most one digest row: cycles whose record already went out are only
// completed, and an earlier unsent row is reused instead of adding another.
// It reports whether an email was handed to the sender.
func (s *DigestService) compile(ctx context.Context, groupID int64, cycles []*cycle.Cycle, asOf time.Time) (bool, error) {
	recordIDs := make([]int64, 0, len(cycles))
	for _, c := range cycles {
		recordIDs = append(recordIDs, c.QuestionRecordID.Int64)
	}
	existing, err := s.digests.ListByRecords(ctx, groupID, recordIDs)
	if err != nil {
		return false, fmt.Errorf("failed to look up earlier digests: %w", err)
	}

	var d *digest.Digest
	alreadySent := make(map[int64]bool)
	for _, e := range existing {
		if e.Status == digest.StatusSent {
			for _, id := range e.RecordIDs {
				alreadySent[id] = true
			}
			continue
		}
		if d == nil {
			d = e
		}
	}

	var pending, delivered []*cycle.Cycle
	for _, c := range cycles {
		if alreadySent[c.QuestionRecordID.Int64] {
			delivered = append(delivered, c)
		} else {
			pending = append(pending, c)
		}
	}

	var errs []error
	if len(delivered) > 0 {
		s.logger.WithFields(logrus.Fields{"group_id": groupID, "cycles": len(delivered)}).
			Info("Records already went out in an earlier digest, completing their cycles")
		errs = append(errs, s.completeAll(ctx, delivered))
	}
	if len(pending) == 0 {
		return false, errors.Join(errs...)
	}

	sent, err := s.deliver(ctx, d, groupID, pending, asOf)
	errs = append(errs, err)
	return sent, errors.Join(errs...)
}

func (s *DigestService) deliver(ctx context.Context, d *digest.Digest, groupID int64, cycles []*cycle.Cycle, asOf time.Time) (bool, error) {
	window := cycles[0].EndDate
	recordIDs := make([]int64, 0, len(cycles))
	for _, c := range cycles {
		if c.EndDate.Before(window) {
			window = c.EndDate
		}
		recordIDs = append(recordIDs, c.QuestionRecordID.Int64)
	}

	if d == nil {
		d = &digest.Digest{GroupID: groupID, WindowStart: window, WindowEnd: asOf, RecordIDs: recordIDs, Status: digest.StatusPending}
		if err := s.digests.Create(ctx, d); err != nil {
			return false, fmt.Errorf("failed to create digest: %w", err)
		}
	} else {
		s.logger.WithFields(logrus.Fields{"digest_id": d.ID, "previous_status": d.Status}).Info("Retrying earlier digest")
		d.WindowStart, d.WindowEnd, d.RecordIDs = window, asOf, recordIDs
		d.Error = sql.NullString{}
	}
	log := s.logger.WithFields(logrus.Fields{"digest_id": d.ID, "group_id": groupID, "records": len(d.RecordIDs)})

	d.Status = digest.StatusProcessing
	if err := s.digests.Update(ctx, d); err != nil {
		return false, fmt.Errorf("failed to mark digest %d processing: %w", d.ID, err)
	}

	email, err := s.buildEmail(ctx, groupID, cycles)
	if err == nil && len(email.To) > 0 {
		err = s.sender.SendDigest(ctx, email)
	}
	if err != nil {
		d.Status = digest.StatusFailed
		d.Error = sql.NullString{String: err.Error(), Valid: true}
		if uerr := s.digests.Update(ctx, d); uerr != nil {
			log.WithError(uerr).Error("Failed to mark digest failed")
		}
		metrics.RecordDigest(string(digest.StatusFailed))
		log.WithError(err).Error("Digest delivery failed")
		return false, err
	}

	d.Status = digest.StatusSent
	d.SentAt = sql.NullTime{Time: s.now(), Valid: true}
	if err := s.digests.Update(ctx, d); err != nil {
		return true, fmt.Errorf("failed to mark digest %d sent: %w", d.ID, err)
	}
	metrics.RecordDigest(string(digest.StatusSent))
	log.WithField("recipients", len(email.To)).Info("Digest sent")

	return true, s.completeAll(ctx, cycles)
}

func (s *DigestService) completeAll(ctx context.Context, cycles []*cycle.Cycle) error {
	var errs []error
	for _, c := range cycles {
		if _, err := s.lifecycle.Complete(ctx, c.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *DigestService) buildEmail(ctx context.Context, groupID int64, cycles []*cycle.Cycle) (mail.DigestEmail, error) {
	group, err := s.questions.GetGroupByID(ctx, groupID)
	if err != nil {
		return mail.DigestEmail{}, fmt.Errorf("failed to load group: %w", err)
	}
	recipients, err := s.members.ListActiveByGroup(ctx, groupID)
	if err != nil {
		return mail.DigestEmail{}, fmt.Errorf("failed to list recipients: %w", err)
	}

	email := mail.DigestEmail{GroupName: group.Name}
	for _, m := range recipients {
		email.To = append(email.To, m.Email)
	}

	authors := make(map[int64]string)
	for _, c := range cycles {
		q, err := s.questions.GetQuestionByID(ctx, c.QuestionID)
		if err != nil {
			return mail.DigestEmail{}, fmt.Errorf("failed to load question %d: %w", c.QuestionID, err)
		}
		answers, err := s.answers.ListByRecord(ctx, c.QuestionRecordID.Int64)
		if err != nil {
			return mail.DigestEmail{}, fmt.Errorf("failed to list answers of record %d: %w", c.QuestionRecordID.Int64, err)
		}

		entry := mail.DigestEntry{Question: q.Content}
		for _, a := range answers {
			author, ok := authors[a.MemberID]
			if !ok {
				author = s.authorName(ctx, a.MemberID)
				authors[a.MemberID] = author
			}
			entry.Answers = append(entry.Answers, mail.DigestAnswer{
				Author:  author,
				Content: a.Content,
			})
		}
		email.Entries = append(email.Entries, entry)
	}
	return email, nil
}

func (s *DigestService) authorName(ctx context.Context, memberID int64) string {
	m, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		s.logger.WithField("member_id", memberID).WithError(err).Warn("Failed to load answer author")
		return "A member"
	}
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Email
}
