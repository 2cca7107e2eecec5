package database

import (
	"context"
	"database/sql"
	"fmt"

	"group_question_service/internal/domain/answer"
)

type PostgresAnswerRepository struct {
	db *sql.DB
}

func NewPostgresAnswerRepository(db *sql.DB) *PostgresAnswerRepository {
	return &PostgresAnswerRepository{db: db}
}

// Create relies on answers_member_record_unique for the one-answer-per-member rule.
func (r *PostgresAnswerRepository) Create(ctx context.Context, a *answer.Answer) error {
	query := `INSERT INTO answers (question_record_id, member_id, content, source)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, a.QuestionRecordID, a.MemberID, a.Content, a.Source).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "answers_member_record_unique") {
			return ErrDuplicateAnswer
		}
		return fmt.Errorf("error creating answer: %w", err)
	}
	return nil
}

func (r *PostgresAnswerRepository) Exists(ctx context.Context, memberID, recordID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM answers WHERE member_id = $1 AND question_record_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, memberID, recordID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking answer existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresAnswerRepository) ListByRecord(ctx context.Context, recordID int64) ([]*answer.Answer, error) {
	query := `SELECT id, question_record_id, member_id, content, source, created_at
               FROM answers
               WHERE question_record_id = $1
               ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("error querying answers by record: %w", err)
	}
	defer rows.Close()

	answers := make([]*answer.Answer, 0)
	for rows.Next() {
		a := &answer.Answer{}
		if err := rows.Scan(&a.ID, &a.QuestionRecordID, &a.MemberID, &a.Content, &a.Source, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning answer row: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answer rows: %w", err)
	}
	return answers, nil
}
