// internal/domain/question/question.go
package question

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Question is reusable prompt text. Content never changes after creation.
type Question struct {
	ID        int64
	Content   string
	CreatorID int64
	CreatedAt time.Time
}

// Group receives questions. WeeklyEnabled opts the group into automatic scheduling.
type Group struct {
	ID            int64
	Name          string
	WeeklyEnabled bool
	CreatedAt     time.Time
}

// Record is one sending of a Question to a Group. It owns the answers given to it.
type Record struct {
	ID         int64
	QuestionID int64
	GroupID    int64
	CreatedAt  time.Time
}

// NormalizeContent applies the comparison form used when matching question
// text taken from a subject line: NFC, whitespace runs collapsed, trimmed.
// Storage keeps the normalized form next to the content.
func NormalizeContent(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
