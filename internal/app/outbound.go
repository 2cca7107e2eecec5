// internal/app/outbound.go
package app

import (
	"context"
	"fmt"
	"strconv"

	"group_question_service/internal/domain/cycle"
	"group_question_service/internal/domain/mail"
	"group_question_service/internal/domain/member"
	"group_question_service/internal/domain/question"

	"github.com/sirupsen/logrus"
)

// QuestionDispatcher sends the question of a freshly activated cycle to every
// active member of its group. Every email carries all three identification
// signals the record locator understands.
type QuestionDispatcher struct {
	questions   question.Repository
	members     member.Repository
	signer      TokenSigner
	sender      mail.Sender
	replyDomain string
	logger      *logrus.Entry
}

func NewQuestionDispatcher(questions question.Repository, members member.Repository, signer TokenSigner, sender mail.Sender, replyDomain string, logger *logrus.Entry) *QuestionDispatcher {
	return &QuestionDispatcher{
		questions:   questions,
		members:     members,
		signer:      signer,
		sender:      sender,
		replyDomain: replyDomain,
		logger:      logger.WithField("component", "question_dispatcher"),
	}
}

// Dispatch returns the number of emails handed to the sender. Individual send
// failures are logged and skipped; delivery is at-most-once.
func (d *QuestionDispatcher) Dispatch(ctx context.Context, c *cycle.Cycle) (int, error) {
	if !c.QuestionRecordID.Valid {
		return 0, fmt.Errorf("cycle %d has no question record", c.ID)
	}
	recordID := c.QuestionRecordID.Int64

	group, err := d.questions.GetGroupByID(ctx, c.GroupID)
	if err != nil {
		return 0, fmt.Errorf("failed to load group %d: %w", c.GroupID, err)
	}
	q, err := d.questions.GetQuestionByID(ctx, c.QuestionID)
	if err != nil {
		return 0, fmt.Errorf("failed to load question %d: %w", c.QuestionID, err)
	}
	recipients, err := d.members.ListActiveByGroup(ctx, c.GroupID)
	if err != nil {
		return 0, fmt.Errorf("failed to list members of group %d: %w", c.GroupID, err)
	}
	token, err := d.signer.Sign(recordID)
	if err != nil {
		return 0, fmt.Errorf("failed to sign reply token for record %d: %w", recordID, err)
	}

	prefix := MessageIDPrefixQuestion
	if !c.Manual {
		prefix = MessageIDPrefixWeeklyQuestion
	}

	sent := 0
	for _, m := range recipients {
		email := BuildQuestionEmail(group, q, recordID, m, token, prefix, d.replyDomain)
		if err := d.sender.SendQuestion(ctx, email); err != nil {
			d.logger.WithFields(logrus.Fields{
				"cycle_id":  c.ID,
				"member_id": m.ID,
			}).WithError(err).Error("Failed to send question email")
			continue
		}
		sent++
	}
	d.logger.WithFields(logrus.Fields{
		"cycle_id":           c.ID,
		"question_record_id": recordID,
		"recipients":         len(recipients),
		"sent":               sent,
	}).Info("Question dispatched")
	return sent, nil
}

// BuildQuestionEmail assembles the envelope of one question email.
func BuildQuestionEmail(group *question.Group, q *question.Question, recordID int64, m *member.Member, token, prefix, domain string) mail.QuestionEmail {
	return mail.QuestionEmail{
		To:        m.Email,
		Subject:   BuildSubject(group.Name, q.Content),
		ReplyTo:   ReplyAddress(token, domain),
		MessageID: BuildMessageID(prefix, q.ID, group.ID, m.ID, domain),
		Headers: map[string]string{
			HeaderGroupID:          strconv.FormatInt(group.ID, 10),
			HeaderQuestionID:       strconv.FormatInt(q.ID, 10),
			HeaderQuestionRecordID: strconv.FormatInt(recordID, 10),
		},
		Question:  q.Content,
		GroupName: group.Name,
	}
}
