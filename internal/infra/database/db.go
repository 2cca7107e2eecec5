package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"group_question_service/internal/domain/question"

	"github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

//go:embed schema.sql
var schema string

// Repository errors
var (
	ErrMemberNotFound   = errors.New("member not found")
	ErrDuplicateEmail   = errors.New("member with this email already exists")
	ErrGroupNotFound    = errors.New("group not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrRecordNotFound   = errors.New("question record not found")
	ErrCycleNotFound    = errors.New("question cycle not found")
	ErrDuplicateRecord  = errors.New("question cycle already owns a question record")
	ErrDuplicateAnswer  = errors.New("duplicate answer (member_id, question_record_id)")
	ErrDigestNotFound   = errors.New("digest not found")
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return backfillNormalizedContent(ctx, db)
}

// backfillNormalizedContent fills normalized_content for questions stored
// before the column existed.
func backfillNormalizedContent(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT id, content FROM questions WHERE normalized_content = '' AND content <> ''`)
	if err != nil {
		return fmt.Errorf("failed to list questions to normalize: %w", err)
	}
	pending := make(map[int64]string)
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			rows.Close()
			return fmt.Errorf("error scanning question row: %w", err)
		}
		pending[id] = question.NormalizeContent(content)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating question rows: %w", err)
	}

	for id, normalized := range pending {
		if _, err := db.ExecContext(ctx, `UPDATE questions SET normalized_content = $1 WHERE id = $2`, normalized, id); err != nil {
			return fmt.Errorf("failed to normalize question %d: %w", id, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a unique_violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
}

// isCheckViolation reports whether err is a check_violation on the named constraint.
func isCheckViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23514" && pqErr.Constraint == constraint
}
