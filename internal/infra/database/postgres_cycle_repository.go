// internal/infra/database/postgres_cycle_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group_question_service/internal/domain/cycle"

	"github.com/lib/pq"
)

type PostgresCycleRepository struct {
	db *sql.DB
}

func NewPostgresCycleRepository(db *sql.DB) *PostgresCycleRepository {
	return &PostgresCycleRepository{db: db}
}

const selectCycle = `SELECT id, group_id, question_id, question_record_id, start_date, end_date, digest_date,
               manual, status, paused_until, activated_at, closed_at, completed_at, created_at, updated_at
               FROM question_cycles`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (*cycle.Cycle, error) {
	c := &cycle.Cycle{}
	err := row.Scan(
		&c.ID, &c.GroupID, &c.QuestionID, &c.QuestionRecordID, &c.StartDate, &c.EndDate, &c.DigestDate,
		&c.Manual, &c.Status, &c.PausedUntil, &c.ActivatedAt, &c.ClosedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCycleRepository) Create(ctx context.Context, c *cycle.Cycle) error {
	if err := c.Validate(); err != nil {
		return err
	}
	query := `INSERT INTO question_cycles (group_id, question_id, start_date, end_date, digest_date, manual, status, paused_until)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.GroupID, c.QuestionID, c.StartDate, c.EndDate, c.DigestDate, c.Manual, c.Status, c.PausedUntil,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isCheckViolation(err, "question_cycles_dates_check") {
			return fmt.Errorf("%w: %v", cycle.ErrInvalidDates, err)
		}
		return fmt.Errorf("error creating question cycle: %w", err)
	}
	return nil
}

func (r *PostgresCycleRepository) GetByID(ctx context.Context, id int64) (*cycle.Cycle, error) {
	return r.getOne(ctx, selectCycle+` WHERE id = $1`, id)
}

func (r *PostgresCycleRepository) GetByRecordID(ctx context.Context, recordID int64) (*cycle.Cycle, error) {
	return r.getOne(ctx, selectCycle+` WHERE question_record_id = $1`, recordID)
}

func (r *PostgresCycleRepository) getOne(ctx context.Context, query string, arg any) (*cycle.Cycle, error) {
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting question cycle: %w", err)
	}
	return c, nil
}

func (r *PostgresCycleRepository) ListByStatus(ctx context.Context, statuses ...cycle.Status) ([]*cycle.Cycle, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	query := selectCycle + ` WHERE status = ANY($1::varchar[]) ORDER BY id`
	return r.list(ctx, query, pq.Array(values))
}

func (r *PostgresCycleRepository) ListOpenByGroup(ctx context.Context, groupID int64) ([]*cycle.Cycle, error) {
	query := selectCycle + ` WHERE group_id = $1 AND status IN ('scheduled', 'active') ORDER BY start_date`
	return r.list(ctx, query, groupID)
}

func (r *PostgresCycleRepository) list(ctx context.Context, query string, args ...any) ([]*cycle.Cycle, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying question cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]*cycle.Cycle, 0)
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning question cycle row: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question cycle rows: %w", err)
	}
	return cycles, nil
}

// Mutate holds a row lock on the cycle for the whole callback, so retried or
// concurrent transitions of the same cycle run one after another.
func (r *PostgresCycleRepository) Mutate(ctx context.Context, id int64, fn cycle.MutateFunc) (*cycle.Cycle, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for cycle %d: %w", id, err)
	}
	defer txn.Rollback() // Rollback if not committed

	c, err := scanCycle(txn.QueryRowContext(ctx, selectCycle+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error locking question cycle %d: %w", id, err)
	}

	if err := fn(ctx, c, &cycleTx{txn: txn}); err != nil {
		if errors.Is(err, cycle.ErrNoChange) {
			return c, nil
		}
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	query := `UPDATE question_cycles
               SET question_record_id = $1, start_date = $2, end_date = $3, digest_date = $4, status = $5,
                   paused_until = $6, activated_at = $7, closed_at = $8, completed_at = $9, updated_at = NOW()
               WHERE id = $10
               RETURNING updated_at`
	err = txn.QueryRowContext(ctx, query,
		c.QuestionRecordID, c.StartDate, c.EndDate, c.DigestDate, c.Status,
		c.PausedUntil, c.ActivatedAt, c.ClosedAt, c.CompletedAt, c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "question_cycles_record_unique") {
			return nil, ErrDuplicateRecord
		}
		return nil, fmt.Errorf("error updating question cycle %d: %w", id, err)
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cycle %d: %w", id, err)
	}
	return c, nil
}

// cycleTx is the cycle.Tx handed to Mutate callbacks.
type cycleTx struct {
	txn *sql.Tx
}

func (t *cycleTx) CreateRecord(ctx context.Context, groupID, questionID int64) (int64, error) {
	var id int64
	query := `INSERT INTO question_records (question_id, group_id) VALUES ($1, $2) RETURNING id`
	if err := t.txn.QueryRowContext(ctx, query, questionID, groupID).Scan(&id); err != nil {
		return 0, fmt.Errorf("error creating question record: %w", err)
	}
	return id, nil
}
