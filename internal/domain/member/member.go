package member

import (
	"strings"
	"time"
)

// Member is a person who can receive questions and reply to them.
type Member struct {
	ID          int64
	Email       string // normalized at creation, see NormalizeEmail
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a member to a group. Only active memberships authorize answers.
type Membership struct {
	MemberID int64
	GroupID  int64
	Active   bool
}

// NormalizeEmail is applied once when a member is created; lookups compare
// against the stored value verbatim.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
