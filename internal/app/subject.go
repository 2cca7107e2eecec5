// internal/app/subject.go
package app

import (
	"fmt"
	"regexp"
	"strings"

	"group_question_service/internal/domain/question"
	"group_question_service/internal/domain/reply"
)

var replyPrefix = regexp.MustCompile(`(?i)^\s*((re|fwd?)\s*:\s*)+`)

// ParsedSubject is what a canonical question subject carries.
type ParsedSubject struct {
	GroupName    string
	QuestionText string // normalized with question.NormalizeContent
}

// BuildSubject renders the subject of an outbound question email.
func BuildSubject(groupName, questionText string) string {
	return fmt.Sprintf("%s - QUESTION: * %s *", groupName, questionText)
}

// ParseSubject reverses BuildSubject on a possibly re-prefixed reply subject.
// The group name is everything before the first '-', the question text sits
// between the first pair of '*'.
func ParseSubject(subject string) (ParsedSubject, error) {
	s := replyPrefix.ReplaceAllString(subject, "")

	dash := strings.Index(s, "-")
	if dash < 0 {
		return ParsedSubject{}, fmt.Errorf("%w: no group separator in %q", reply.ErrMalformedSubject, subject)
	}
	groupName := strings.TrimSpace(s[:dash])

	open := strings.Index(s, "*")
	if open < 0 {
		return ParsedSubject{}, fmt.Errorf("%w: no question delimiters in %q", reply.ErrMalformedSubject, subject)
	}
	length := strings.Index(s[open+1:], "*")
	if length < 0 {
		return ParsedSubject{}, fmt.Errorf("%w: unterminated question in %q", reply.ErrMalformedSubject, subject)
	}
	text := question.NormalizeContent(s[open+1 : open+1+length])

	if groupName == "" || text == "" {
		return ParsedSubject{}, fmt.Errorf("%w: empty group or question in %q", reply.ErrMalformedSubject, subject)
	}
	return ParsedSubject{GroupName: groupName, QuestionText: text}, nil
}
