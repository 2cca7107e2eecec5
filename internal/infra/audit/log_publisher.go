package audit

import (
	"context"

	"group_question_service/internal/domain/reply"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the log. Used when no Redis is configured.
type LogPublisher struct {
	logger *logrus.Entry
}

func NewLogPublisher(logger *logrus.Entry) *LogPublisher {
	return &LogPublisher{logger: logger.WithField("component", "audit")}
}

func (p *LogPublisher) Publish(_ context.Context, ev reply.Event) error {
	p.logger.WithFields(logrus.Fields{
		"event_id":           ev.ID,
		"kind":               ev.Kind,
		"method":             ev.Method,
		"success":            ev.Success,
		"error_code":         ev.ErrorCode,
		"sender":             ev.Sender,
		"question_record_id": ev.QuestionRecordID,
		"answer_id":          ev.AnswerID,
	}).Info("Audit event")
	return nil
}
