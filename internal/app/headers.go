// internal/app/headers.go
package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"group_question_service/internal/domain/reply"
)

const (
	HeaderGroupID          = "X-Group-Id"
	HeaderQuestionID       = "X-Question-Id"
	HeaderQuestionRecordID = "X-QuestionRecord-Id"

	MessageIDPrefixQuestion       = "question"
	MessageIDPrefixWeeklyQuestion = "weekly-question"
)

var threadIDPattern = regexp.MustCompile(`(?:^|[<\s,])(?:weekly-question|question)-(\d+)-group-(\d+)-user-(\d+)@`)

// HeaderRefs are the identifiers an inbound message carries about the question it answers.
type HeaderRefs struct {
	RecordID   int64
	GroupID    int64
	QuestionID int64
	UserID     int64
}

func (r HeaderRefs) hasPair() bool { return r.GroupID > 0 && r.QuestionID > 0 }

// BuildMessageID renders the Message-ID of an outbound question email.
func BuildMessageID(prefix string, questionID, groupID, userID int64, domain string) string {
	return fmt.Sprintf("<%s-%d-group-%d-user-%d@%s>", prefix, questionID, groupID, userID, domain)
}

// ParseHeaderRefs reads the X- headers first and fills whatever is missing
// from threading headers that carry one of our Message-IDs.
func ParseHeaderRefs(msg *reply.Message) (HeaderRefs, bool) {
	refs := HeaderRefs{
		RecordID:   parseID(msg.Header(HeaderQuestionRecordID)),
		GroupID:    parseID(msg.Header(HeaderGroupID)),
		QuestionID: parseID(msg.Header(HeaderQuestionID)),
	}

	if !refs.hasPair() {
		candidates := []string{msg.InReplyTo, msg.Header("In-Reply-To"), msg.Header("References"), msg.Header("Message-ID")}
		for _, value := range candidates {
			m := threadIDPattern.FindStringSubmatch(value)
			if m == nil {
				continue
			}
			refs.QuestionID = parseID(m[1])
			refs.GroupID = parseID(m[2])
			refs.UserID = parseID(m[3])
			break
		}
	}
	return refs, refs.RecordID > 0 || refs.hasPair()
}

func parseID(v string) int64 {
	id, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(v), "<>"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
