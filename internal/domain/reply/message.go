// internal/domain/reply/message.go
package reply

import "strings"

// Message is an inbound reply as delivered by the mail provider webhook or
// built from a web form submission.
type Message struct {
	From      string            `json:"from"`
	To        []string          `json:"to"`
	Subject   string            `json:"subject"`
	Text      string            `json:"text"`
	HTML      string            `json:"html"`
	Headers   map[string]string `json:"headers"`
	InReplyTo string            `json:"in_reply_to"`
}

// Header looks a header up case-insensitively.
func (m *Message) Header(name string) string {
	if v, ok := m.Headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Method names the strategy that identified the question record.
type Method string

const (
	MethodNone           Method = ""
	MethodSignedToken    Method = "signed_token"
	MethodHeaders        Method = "headers"
	MethodSubjectParsing Method = "subject_parsing"
)
