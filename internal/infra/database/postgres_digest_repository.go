package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group_question_service/internal/domain/digest"

	"github.com/lib/pq" // For pq.Array
)

type PostgresDigestRepository struct {
	db *sql.DB
}

func NewPostgresDigestRepository(db *sql.DB) *PostgresDigestRepository {
	return &PostgresDigestRepository{db: db}
}

func (r *PostgresDigestRepository) Create(ctx context.Context, d *digest.Digest) error {
	query := `INSERT INTO digests (group_id, window_start, window_end, record_ids, status)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, d.GroupID, d.WindowStart, d.WindowEnd, pq.Array(d.RecordIDs), d.Status).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating digest: %w", err)
	}
	return nil
}

func (r *PostgresDigestRepository) Update(ctx context.Context, d *digest.Digest) error {
	query := `UPDATE digests
               SET window_start = $1, window_end = $2, record_ids = $3, status = $4, error = $5, sent_at = $6,
                   updated_at = NOW()
               WHERE id = $7
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		d.WindowStart, d.WindowEnd, pq.Array(d.RecordIDs), d.Status, d.Error, d.SentAt, d.ID,
	).Scan(&d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDigestNotFound
		}
		return fmt.Errorf("error updating digest: %w", err)
	}
	return nil
}

const selectDigest = `SELECT id, group_id, window_start, window_end, record_ids, status, error, sent_at, created_at, updated_at
               FROM digests`

func scanDigest(row rowScanner) (*digest.Digest, error) {
	d := &digest.Digest{}
	err := row.Scan(
		&d.ID, &d.GroupID, &d.WindowStart, &d.WindowEnd, pq.Array(&d.RecordIDs),
		&d.Status, &d.Error, &d.SentAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresDigestRepository) GetByID(ctx context.Context, id int64) (*digest.Digest, error) {
	d, err := scanDigest(r.db.QueryRowContext(ctx, selectDigest+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDigestNotFound
		}
		return nil, fmt.Errorf("error getting digest by ID: %w", err)
	}
	return d, nil
}

func (r *PostgresDigestRepository) ListByRecords(ctx context.Context, groupID int64, recordIDs []int64) ([]*digest.Digest, error) {
	query := selectDigest + ` WHERE group_id = $1 AND record_ids && $2::bigint[] ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, groupID, pq.Array(recordIDs))
	if err != nil {
		return nil, fmt.Errorf("error querying digests by records: %w", err)
	}
	defer rows.Close()

	digests := make([]*digest.Digest, 0)
	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning digest row: %w", err)
		}
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating digest rows: %w", err)
	}
	return digests, nil
}
