// internal/domain/question/repository.go
package question

import "context"

// Repository covers questions, groups and question records.
type Repository interface {
	CreateQuestion(ctx context.Context, q *Question) error
	GetQuestionByID(ctx context.Context, id int64) (*Question, error)
	// FindQuestionByContent matches against NormalizeContent(stored content).
	FindQuestionByContent(ctx context.Context, normalized string) (*Question, error)
	// NextUnsentQuestion returns the oldest question never recorded for the group.
	NextUnsentQuestion(ctx context.Context, groupID int64) (*Question, error)

	CreateGroup(ctx context.Context, g *Group) error
	GetGroupByID(ctx context.Context, id int64) (*Group, error)
	ListGroupsByName(ctx context.Context, name string) ([]*Group, error)
	ListWeeklyGroups(ctx context.Context) ([]*Group, error)

	GetRecordByID(ctx context.Context, id int64) (*Record, error)
	// ListRecords returns the records for (group, question), newest first.
	ListRecords(ctx context.Context, groupID, questionID int64) ([]*Record, error)
}
