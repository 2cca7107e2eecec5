package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"group_question_service/internal/domain/reply"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// alertQueueSize bounds the alerts waiting for the Telegram API.
const alertQueueSize = 64

// ErrAlertQueueFull is returned when alerts arrive faster than they can be sent.
var ErrAlertQueueFull = errors.New("rejection alert queue is full")

// RejectionNotifier tells the admin chat about inbound messages that were
// rejected and may need to be reconciled by hand. AlertRejected only queues
// the alert; Run delivers queued alerts so a slow Telegram API never holds up
// the request that produced them.
type RejectionNotifier struct {
	client      ChatSender
	adminChatID int64
	queue       chan string
	logger      *logrus.Entry
}

func NewRejectionNotifier(client ChatSender, adminChatID int64, logger *logrus.Entry) *RejectionNotifier {
	return &RejectionNotifier{
		client:      client,
		adminChatID: adminChatID,
		queue:       make(chan string, alertQueueSize),
		logger:      logger.WithField("component", "rejection_notifier"),
	}
}

func (n *RejectionNotifier) AlertRejected(ctx context.Context, msg *reply.Message, outcome reply.Outcome) error {
	// Duplicates are the member's own doing and need no follow-up.
	if outcome.ErrorCode == reply.Code(reply.ErrDuplicateAnswer) {
		return nil
	}
	select {
	case n.queue <- FormatRejection(msg, outcome):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrAlertQueueFull
	}
}

// Run sends queued alerts until ctx is done.
func (n *RejectionNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if pending := len(n.queue); pending > 0 {
				n.logger.WithField("pending", pending).Warn("Dropping unsent rejection alerts on shutdown")
			}
			return
		case text := <-n.queue:
			if err := n.client.SendMessage(n.adminChatID, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
				n.logger.WithError(err).Error("Failed to send rejection alert")
				continue
			}
			n.logger.Debug("Rejection alert sent")
		}
	}
}

// FormatRejection renders the alert text.
func FormatRejection(msg *reply.Message, outcome reply.Outcome) string {
	var b strings.Builder
	b.WriteString("Reply rejected: ")
	b.WriteString(outcome.ErrorCode)
	b.WriteString("\nFrom: ")
	b.WriteString(msg.From)
	if msg.Subject != "" {
		b.WriteString("\nSubject: ")
		b.WriteString(msg.Subject)
	}
	if outcome.IdentificationMethod != reply.MethodNone {
		fmt.Fprintf(&b, "\nIdentified by: %s", outcome.IdentificationMethod)
	}
	if outcome.QuestionRecordID > 0 {
		fmt.Fprintf(&b, "\nQuestion record: %d", outcome.QuestionRecordID)
	}
	return b.String()
}

// NoopNotifier drops alerts. Used when no admin bot is configured.
type NoopNotifier struct{}

func (NoopNotifier) AlertRejected(context.Context, *reply.Message, reply.Outcome) error { return nil }
