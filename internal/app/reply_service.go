// internal/app/reply_service.go
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"group_question_service/internal/domain/answer"
	"group_question_service/internal/domain/reply"
	"group_question_service/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RejectionAlerter tells a human about messages that need manual reconciliation.
type RejectionAlerter interface {
	AlertRejected(ctx context.Context, msg *reply.Message, outcome reply.Outcome) error
}

// FormSubmission is an answer posted from the web form linked in question emails.
type FormSubmission struct {
	Token   string `json:"token"`
	Email   string `json:"email"`
	Content string `json:"content"`
}

// ReplyService processes inbound replies end to end.
type ReplyService struct {
	identity    *IdentityResolver
	locator     *RecordLocator
	extractor   *ContentExtractor
	admission   *AdmissionController
	events      reply.EventPublisher
	alerter     RejectionAlerter
	replyDomain string
	logger      *logrus.Entry
	now         func() time.Time
}

func NewReplyService(
	identity *IdentityResolver,
	locator *RecordLocator,
	extractor *ContentExtractor,
	admission *AdmissionController,
	events reply.EventPublisher,
	alerter RejectionAlerter,
	replyDomain string,
	logger *logrus.Entry,
) *ReplyService {
	return &ReplyService{
		identity:    identity,
		locator:     locator,
		extractor:   extractor,
		admission:   admission,
		events:      events,
		alerter:     alerter,
		replyDomain: replyDomain,
		logger:      logger.WithField("component", "reply_service"),
		now:         time.Now,
	}
}

// ProcessInbound handles one inbound email. Rejections are reported in the
// outcome; the returned error is non-nil only for transient failures that
// make the message worth retrying.
func (s *ReplyService) ProcessInbound(ctx context.Context, msg *reply.Message) (reply.Outcome, error) {
	return s.process(ctx, msg, answer.SourceEmail)
}

// ProcessForm handles a web form answer. The form carries the same signed
// token as the reply-to address of the question email.
func (s *ReplyService) ProcessForm(ctx context.Context, sub FormSubmission) (reply.Outcome, error) {
	msg := &reply.Message{
		From: sub.Email,
		To:   []string{ReplyAddress(sub.Token, s.replyDomain)},
		Text: sub.Content,
	}
	return s.process(ctx, msg, answer.SourceWeb)
}

func (s *ReplyService) process(ctx context.Context, msg *reply.Message, source answer.Source) (reply.Outcome, error) {
	m, err := s.identity.Resolve(ctx, msg.From)
	if err != nil {
		return s.finish(ctx, msg, reply.MethodNone, 0, 0, err)
	}

	rec, method, err := s.locator.Locate(ctx, msg)
	if err != nil {
		return s.finish(ctx, msg, method, m.ID, 0, err)
	}

	content := strings.TrimSpace(msg.Text)
	if source == answer.SourceEmail {
		content = s.extractor.Extract(msg)
	}
	ans, err := s.admission.Admit(ctx, m, rec, content, source)
	if err != nil {
		return s.finish(ctx, msg, method, m.ID, rec.ID, err)
	}

	outcome := reply.Outcome{
		Success:              true,
		AnswerID:             ans.ID,
		QuestionRecordID:     rec.ID,
		UserID:               m.ID,
		IdentificationMethod: method,
	}
	s.logger.WithFields(logrus.Fields{
		"identification_method": method,
		"question_record_id":    rec.ID,
		"answer_id":             ans.ID,
		"user_id":               m.ID,
		"source":                source,
	}).Info("Answer accepted")
	metrics.RecordInbound("accepted")
	s.publishOutcome(ctx, msg, outcome)
	return outcome, nil
}

// finish reports a failed message. Transient errors are passed back to the caller.
func (s *ReplyService) finish(ctx context.Context, msg *reply.Message, method reply.Method, userID, recordID int64, err error) (reply.Outcome, error) {
	outcome := reply.Rejected(method, err)
	outcome.UserID = userID
	outcome.QuestionRecordID = recordID
	log := s.logger.WithFields(logrus.Fields{
		"sender":                msg.From,
		"subject":               msg.Subject,
		"identification_method": method,
		"error_code":            outcome.ErrorCode,
	}).WithError(err)

	if !reply.IsRejection(err) {
		log.Error("Inbound message failed")
		metrics.RecordInbound(outcome.ErrorCode)
		s.publishOutcome(ctx, msg, outcome)
		if !errors.Is(err, reply.ErrTransient) {
			err = errors.Join(reply.ErrTransient, err)
		}
		return outcome, err
	}

	log.Warn("Inbound message rejected")
	metrics.RecordInbound(outcome.ErrorCode)
	s.publishOutcome(ctx, msg, outcome)
	if alertErr := s.alerter.AlertRejected(ctx, msg, outcome); alertErr != nil {
		s.logger.WithError(alertErr).Warn("Failed to send rejection alert")
	}
	return outcome, nil
}

func (s *ReplyService) publishOutcome(ctx context.Context, msg *reply.Message, outcome reply.Outcome) {
	ev := reply.Event{
		ID:               uuid.New().String(),
		Kind:             reply.EventOutcome,
		Method:           outcome.IdentificationMethod,
		Success:          outcome.Success,
		ErrorCode:        outcome.ErrorCode,
		Sender:           msg.From,
		Subject:          msg.Subject,
		QuestionRecordID: outcome.QuestionRecordID,
		AnswerID:         outcome.AnswerID,
		OccurredAt:       s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WithError(err).Warn("Failed to publish outcome event")
	}
}
