// internal/domain/mail/sender.go
package mail

import "context"

// QuestionEmail is the envelope of an outbound question. Rendering and
// transport belong to the Sender implementation.
type QuestionEmail struct {
	To        string
	Subject   string
	ReplyTo   string
	MessageID string
	Headers   map[string]string
	Question  string
	GroupName string
}

// DigestEntry is one question with the answers it collected.
type DigestEntry struct {
	Question string
	Answers  []DigestAnswer
}

type DigestAnswer struct {
	Author  string
	Content string
}

// DigestEmail is the compiled digest for one group.
type DigestEmail struct {
	To        []string
	GroupName string
	Entries   []DigestEntry
}

// Sender hands emails to the transport layer. Delivery is at-most-once.
type Sender interface {
	SendQuestion(ctx context.Context, email QuestionEmail) error
	SendDigest(ctx context.Context, email DigestEmail) error
}
