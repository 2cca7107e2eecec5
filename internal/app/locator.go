// internal/app/locator.go
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"group_question_service/internal/domain/cycle"
	"group_question_service/internal/domain/question"
	"group_question_service/internal/domain/reply"
	idb "group_question_service/internal/infra/database"
	"group_question_service/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TokenSigner binds reply tokens to question record ids.
type TokenSigner interface {
	Sign(recordID int64) (string, error)
	// Verify returns an error wrapping reply.ErrInvalidSignature for forged or corrupt tokens.
	Verify(token string) (int64, error)
}

// RecordStrategy is one way of identifying the question record a message answers.
// Locate returns reply.ErrNoMatch (or another locator signal) to let the next
// strategy try, and reply.ErrTransient when storage failed.
type RecordStrategy interface {
	Method() reply.Method
	Locate(ctx context.Context, msg *reply.Message) (*question.Record, error)
}

// RecordLocator runs its strategies in order and returns the first record found.
type RecordLocator struct {
	strategies []RecordStrategy
	events     reply.EventPublisher
	logger     *logrus.Entry
	now        func() time.Time
}

func NewRecordLocator(events reply.EventPublisher, logger *logrus.Entry, strategies ...RecordStrategy) *RecordLocator {
	return &RecordLocator{
		strategies: strategies,
		events:     events,
		logger:     logger.WithField("component", "record_locator"),
		now:        time.Now,
	}
}

// Locate returns the record and the method that found it. When every strategy
// gives way the error wraps reply.ErrRecordNotFound.
func (l *RecordLocator) Locate(ctx context.Context, msg *reply.Message) (*question.Record, reply.Method, error) {
	for _, s := range l.strategies {
		method := s.Method()
		rec, err := s.Locate(ctx, msg)
		if err == nil && rec == nil {
			err = reply.ErrNoMatch
		}
		l.recordAttempt(ctx, msg, method, rec, err)

		switch {
		case err == nil:
			return rec, method, nil
		case errors.Is(err, reply.ErrTransient):
			return nil, method, err
		case errors.Is(err, reply.ErrInvalidSignature):
			l.logger.WithFields(logrus.Fields{"method": method, "sender": msg.From}).WithError(err).Warn("Reply token rejected, trying next method")
		default:
			l.logger.WithFields(logrus.Fields{"method": method, "reason": err.Error()}).Debug("Method did not identify a record")
		}
	}
	return nil, reply.MethodNone, reply.ErrRecordNotFound
}

func (l *RecordLocator) recordAttempt(ctx context.Context, msg *reply.Message, method reply.Method, rec *question.Record, err error) {
	result := "success"
	if err != nil {
		result = reply.Code(err)
		if errors.Is(err, reply.ErrNoMatch) {
			result = "no_match"
		}
	}
	metrics.RecordIdentificationAttempt(string(method), result)

	ev := reply.Event{
		ID:         uuid.New().String(),
		Kind:       reply.EventIdentificationAttempt,
		Method:     method,
		Success:    err == nil,
		ErrorCode:  result,
		Sender:     msg.From,
		Subject:    msg.Subject,
		OccurredAt: l.now(),
	}
	if err == nil {
		ev.ErrorCode = ""
		ev.QuestionRecordID = rec.ID
	}
	if pubErr := l.events.Publish(ctx, ev); pubErr != nil {
		l.logger.WithError(pubErr).Warn("Failed to publish identification event")
	}
}

// recordResolver holds the lookups shared by the strategies.
type recordResolver struct {
	questions question.Repository
	cycles    cycle.Repository
}

func (r recordResolver) byID(ctx context.Context, id int64) (*question.Record, error) {
	rec, err := r.questions.GetRecordByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: question record %d", reply.ErrNoMatch, id)
		}
		return nil, fmt.Errorf("%w: loading question record %d: %w", reply.ErrTransient, id, err)
	}
	return rec, nil
}

// preferActive picks the record of (group, question) whose cycle is active,
// falling back to the most recently created record.
func (r recordResolver) preferActive(ctx context.Context, groupID, questionID int64) (*question.Record, error) {
	records, err := r.questions.ListRecords(ctx, groupID, questionID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing records for group %d question %d: %w", reply.ErrTransient, groupID, questionID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no record for group %d question %d", reply.ErrNoMatch, groupID, questionID)
	}
	for _, rec := range records {
		c, err := r.cycles.GetByRecordID(ctx, rec.ID)
		if err != nil {
			if errors.Is(err, idb.ErrCycleNotFound) {
				continue
			}
			return nil, fmt.Errorf("%w: loading cycle of record %d: %w", reply.ErrTransient, rec.ID, err)
		}
		if c.Status.Equal(cycle.StatusActive) {
			return rec, nil
		}
	}
	return records[0], nil
}

var replyAddress = regexp.MustCompile(`(?i)^reply\+([^@\s]+)@(\S+)$`)

// ReplyAddress builds the reply-to address carrying a signed token.
func ReplyAddress(token, domain string) string {
	return fmt.Sprintf("reply+%s@%s", token, domain)
}

// TokenStrategy reads a signed token from a reply+<token>@<domain> recipient.
type TokenStrategy struct {
	signer   TokenSigner
	domain   string
	resolver recordResolver
}

func NewTokenStrategy(signer TokenSigner, domain string, questions question.Repository, cycles cycle.Repository) *TokenStrategy {
	return &TokenStrategy{signer: signer, domain: domain, resolver: recordResolver{questions: questions, cycles: cycles}}
}

func (s *TokenStrategy) Method() reply.Method { return reply.MethodSignedToken }

func (s *TokenStrategy) Locate(ctx context.Context, msg *reply.Message) (*question.Record, error) {
	var invalid error
	for _, to := range msg.To {
		m := replyAddress.FindStringSubmatch(strings.TrimSpace(ExtractAddress(to)))
		if m == nil || (s.domain != "" && !strings.EqualFold(m[2], s.domain)) {
			continue
		}
		recordID, err := s.signer.Verify(m[1])
		if err != nil {
			invalid = err
			continue
		}
		return s.resolver.byID(ctx, recordID)
	}
	if invalid != nil {
		return nil, invalid
	}
	return nil, fmt.Errorf("%w: no reply+token recipient", reply.ErrNoMatch)
}

// HeaderStrategy uses X-QuestionRecord-Id, or X-Group-Id with X-Question-Id,
// possibly recovered from threading headers.
type HeaderStrategy struct {
	resolver recordResolver
}

func NewHeaderStrategy(questions question.Repository, cycles cycle.Repository) *HeaderStrategy {
	return &HeaderStrategy{resolver: recordResolver{questions: questions, cycles: cycles}}
}

func (s *HeaderStrategy) Method() reply.Method { return reply.MethodHeaders }

func (s *HeaderStrategy) Locate(ctx context.Context, msg *reply.Message) (*question.Record, error) {
	refs, ok := ParseHeaderRefs(msg)
	if !ok {
		return nil, fmt.Errorf("%w: no identifying headers", reply.ErrNoMatch)
	}
	if refs.RecordID > 0 {
		rec, err := s.resolver.byID(ctx, refs.RecordID)
		if err == nil || !refs.hasPair() || !errors.Is(err, reply.ErrNoMatch) {
			return rec, err
		}
	}
	return s.resolver.preferActive(ctx, refs.GroupID, refs.QuestionID)
}

// SubjectStrategy parses the canonical question subject. Last resort.
type SubjectStrategy struct {
	questions question.Repository
	resolver  recordResolver
}

func NewSubjectStrategy(questions question.Repository, cycles cycle.Repository) *SubjectStrategy {
	return &SubjectStrategy{questions: questions, resolver: recordResolver{questions: questions, cycles: cycles}}
}

func (s *SubjectStrategy) Method() reply.Method { return reply.MethodSubjectParsing }

func (s *SubjectStrategy) Locate(ctx context.Context, msg *reply.Message) (*question.Record, error) {
	parsed, err := ParseSubject(msg.Subject)
	if err != nil {
		return nil, err
	}

	q, err := s.questions.FindQuestionByContent(ctx, parsed.QuestionText)
	if err != nil {
		if errors.Is(err, idb.ErrQuestionNotFound) {
			return nil, fmt.Errorf("%w: no question %q", reply.ErrNoMatch, parsed.QuestionText)
		}
		return nil, fmt.Errorf("%w: finding question: %w", reply.ErrTransient, err)
	}

	groups, err := s.questions.ListGroupsByName(ctx, parsed.GroupName)
	if err != nil {
		return nil, fmt.Errorf("%w: listing groups named %q: %w", reply.ErrTransient, parsed.GroupName, err)
	}
	for _, g := range groups {
		rec, err := s.resolver.preferActive(ctx, g.ID, q.ID)
		if errors.Is(err, reply.ErrNoMatch) {
			continue
		}
		return rec, err
	}
	return nil, fmt.Errorf("%w: no record of %q for group %q", reply.ErrNoMatch, parsed.QuestionText, parsed.GroupName)
}
