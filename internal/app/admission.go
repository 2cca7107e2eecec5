// internal/app/admission.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"group_question_service/internal/domain/answer"
	"group_question_service/internal/domain/cycle"
	"group_question_service/internal/domain/member"
	"group_question_service/internal/domain/question"
	"group_question_service/internal/domain/reply"
	idb "group_question_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// AdmissionController decides whether an answer may be stored.
type AdmissionController struct {
	members member.Repository
	cycles  cycle.Repository
	answers answer.Repository
	logger  *logrus.Entry
}

func NewAdmissionController(members member.Repository, cycles cycle.Repository, answers answer.Repository, logger *logrus.Entry) *AdmissionController {
	return &AdmissionController{
		members: members,
		cycles:  cycles,
		answers: answers,
		logger:  logger.WithField("component", "admission"),
	}
}

// Admit checks, in order: record present, member active in the record's
// group, cycle accepting answers (a record without a cycle is a legacy record
// and always accepts), content non-empty, no earlier answer. The first answer
// of a member wins; later ones are rejected as duplicates.
func (a *AdmissionController) Admit(ctx context.Context, m *member.Member, rec *question.Record, content string, source answer.Source) (*answer.Answer, error) {
	if rec == nil {
		return nil, reply.ErrRecordNotFound
	}

	active, err := a.members.IsActiveInGroup(ctx, m.ID, rec.GroupID)
	if err != nil {
		return nil, fmt.Errorf("%w: checking membership: %w", reply.ErrTransient, err)
	}
	if !active {
		return nil, fmt.Errorf("%w: member %d, group %d", reply.ErrUnauthorizedSender, m.ID, rec.GroupID)
	}

	c, err := a.cycles.GetByRecordID(ctx, rec.ID)
	switch {
	case errors.Is(err, idb.ErrCycleNotFound):
		a.logger.WithField("question_record_id", rec.ID).Debug("Record has no cycle, accepting as legacy record")
	case err != nil:
		return nil, fmt.Errorf("%w: loading cycle: %w", reply.ErrTransient, err)
	case !c.AcceptsAnswers():
		return nil, fmt.Errorf("%w: cycle %d is %s", reply.ErrCycleNotAccepting, c.ID, c.Status)
	}

	if strings.TrimSpace(content) == "" {
		return nil, reply.ErrEmptyAnswer
	}

	exists, err := a.answers.Exists(ctx, m.ID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: checking existing answer: %w", reply.ErrTransient, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: member %d, record %d", reply.ErrDuplicateAnswer, m.ID, rec.ID)
	}

	ans := &answer.Answer{
		QuestionRecordID: rec.ID,
		MemberID:         m.ID,
		Content:          content,
		Source:           source,
	}
	if err := a.answers.Create(ctx, ans); err != nil {
		// The unique constraint settles races between concurrent submissions.
		if errors.Is(err, idb.ErrDuplicateAnswer) {
			return nil, fmt.Errorf("%w: member %d, record %d", reply.ErrDuplicateAnswer, m.ID, rec.ID)
		}
		return nil, fmt.Errorf("%w: storing answer: %w", reply.ErrTransient, err)
	}
	return ans, nil
}
