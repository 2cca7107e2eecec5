package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group_question_service/internal/domain/question"
)

type PostgresQuestionRepository struct {
	db *sql.DB
}

func NewPostgresQuestionRepository(db *sql.DB) *PostgresQuestionRepository {
	return &PostgresQuestionRepository{db: db}
}

const selectQuestion = `SELECT id, content, creator_id, created_at FROM questions`

// --- Questions ---

func (r *PostgresQuestionRepository) CreateQuestion(ctx context.Context, q *question.Question) error {
	creator := sql.NullInt64{Int64: q.CreatorID, Valid: q.CreatorID > 0}
	query := `INSERT INTO questions (content, normalized_content, creator_id) VALUES ($1, $2, $3) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, q.Content, question.NormalizeContent(q.Content), creator).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating question: %w", err)
	}
	return nil
}

func (r *PostgresQuestionRepository) GetQuestionByID(ctx context.Context, id int64) (*question.Question, error) {
	return r.getQuestion(ctx, selectQuestion+` WHERE id = $1`, id)
}

// FindQuestionByContent matches against normalized_content, which is written
// with question.NormalizeContent when the question is created.
func (r *PostgresQuestionRepository) FindQuestionByContent(ctx context.Context, normalized string) (*question.Question, error) {
	query := selectQuestion + ` WHERE normalized_content = $1 ORDER BY id LIMIT 1`
	return r.getQuestion(ctx, query, normalized)
}

func (r *PostgresQuestionRepository) NextUnsentQuestion(ctx context.Context, groupID int64) (*question.Question, error) {
	query := selectQuestion + ` q
               WHERE NOT EXISTS (SELECT 1 FROM question_records r WHERE r.question_id = q.id AND r.group_id = $1)
                 AND NOT EXISTS (SELECT 1 FROM question_cycles c WHERE c.question_id = q.id AND c.group_id = $1)
               ORDER BY q.created_at, q.id LIMIT 1`
	return r.getQuestion(ctx, query, groupID)
}

func (r *PostgresQuestionRepository) getQuestion(ctx context.Context, query string, arg any) (*question.Question, error) {
	q := &question.Question{}
	var creator sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&q.ID, &q.Content, &creator, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("error getting question: %w", err)
	}
	q.CreatorID = creator.Int64
	return q, nil
}

// --- Groups ---

func (r *PostgresQuestionRepository) CreateGroup(ctx context.Context, g *question.Group) error {
	query := `INSERT INTO groups (name, weekly_enabled) VALUES ($1, $2) RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, g.Name, g.WeeklyEnabled).Scan(&g.ID, &g.CreatedAt); err != nil {
		return fmt.Errorf("error creating group: %w", err)
	}
	return nil
}

func (r *PostgresQuestionRepository) GetGroupByID(ctx context.Context, id int64) (*question.Group, error) {
	query := `SELECT id, name, weekly_enabled, created_at FROM groups WHERE id = $1`
	g := &question.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.WeeklyEnabled, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("error getting group by ID: %w", err)
	}
	return g, nil
}

func (r *PostgresQuestionRepository) ListGroupsByName(ctx context.Context, name string) ([]*question.Group, error) {
	query := `SELECT id, name, weekly_enabled, created_at FROM groups WHERE name = $1 ORDER BY id`
	return r.listGroups(ctx, query, name)
}

func (r *PostgresQuestionRepository) ListWeeklyGroups(ctx context.Context) ([]*question.Group, error) {
	query := `SELECT id, name, weekly_enabled, created_at FROM groups WHERE weekly_enabled = TRUE ORDER BY id`
	return r.listGroups(ctx, query)
}

func (r *PostgresQuestionRepository) listGroups(ctx context.Context, query string, args ...any) ([]*question.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*question.Group, 0)
	for rows.Next() {
		g := &question.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.WeeklyEnabled, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

// --- Question records ---

func (r *PostgresQuestionRepository) GetRecordByID(ctx context.Context, id int64) (*question.Record, error) {
	query := `SELECT id, question_id, group_id, created_at FROM question_records WHERE id = $1`
	rec := &question.Record{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.QuestionID, &rec.GroupID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting question record by ID: %w", err)
	}
	return rec, nil
}

func (r *PostgresQuestionRepository) ListRecords(ctx context.Context, groupID, questionID int64) ([]*question.Record, error) {
	query := `SELECT id, question_id, group_id, created_at
               FROM question_records
               WHERE group_id = $1 AND question_id = $2
               ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, groupID, questionID)
	if err != nil {
		return nil, fmt.Errorf("error querying question records: %w", err)
	}
	defer rows.Close()

	records := make([]*question.Record, 0)
	for rows.Next() {
		rec := &question.Record{}
		if err := rows.Scan(&rec.ID, &rec.QuestionID, &rec.GroupID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning question record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question record rows: %w", err)
	}
	return records, nil
}
