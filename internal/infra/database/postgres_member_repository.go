package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group_question_service/internal/domain/member"
)

type PostgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

// Create stores a member. The email is normalized here, once; lookups use it verbatim.
func (r *PostgresMemberRepository) Create(ctx context.Context, m *member.Member) error {
	m.Email = member.NormalizeEmail(m.Email)
	query := `INSERT INTO members (email, display_name)
               VALUES ($1, $2)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, m.Email, m.DisplayName).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "members_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("error creating member: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) GetByID(ctx context.Context, id int64) (*member.Member, error) {
	query := `SELECT id, email, display_name, created_at, updated_at FROM members WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresMemberRepository) GetByEmail(ctx context.Context, email string) (*member.Member, error) {
	query := `SELECT id, email, display_name, created_at, updated_at FROM members WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresMemberRepository) getOne(ctx context.Context, query string, arg any) (*member.Member, error) {
	m := &member.Member{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&m.ID, &m.Email, &m.DisplayName, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting member: %w", err)
	}
	return m, nil
}

func (r *PostgresMemberRepository) IsActiveInGroup(ctx context.Context, memberID, groupID int64) (bool, error) {
	query := `SELECT EXISTS (
                  SELECT 1 FROM memberships WHERE member_id = $1 AND group_id = $2 AND active = TRUE
              )`
	var active bool
	if err := r.db.QueryRowContext(ctx, query, memberID, groupID).Scan(&active); err != nil {
		return false, fmt.Errorf("error checking membership: %w", err)
	}
	return active, nil
}

func (r *PostgresMemberRepository) ListActiveByGroup(ctx context.Context, groupID int64) ([]*member.Member, error) {
	query := `SELECT m.id, m.email, m.display_name, m.created_at, m.updated_at
               FROM members m
               JOIN memberships ms ON ms.member_id = m.id
               WHERE ms.group_id = $1 AND ms.active = TRUE
               ORDER BY m.id`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing active members: %w", err)
	}
	defer rows.Close()

	members := make([]*member.Member, 0)
	for rows.Next() {
		m := &member.Member{}
		if err := rows.Scan(&m.ID, &m.Email, &m.DisplayName, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func (r *PostgresMemberRepository) SetMembership(ctx context.Context, ms member.Membership) error {
	query := `INSERT INTO memberships (member_id, group_id, active)
               VALUES ($1, $2, $3)
               ON CONFLICT (member_id, group_id) DO UPDATE SET active = EXCLUDED.active`
	if _, err := r.db.ExecContext(ctx, query, ms.MemberID, ms.GroupID, ms.Active); err != nil {
		return fmt.Errorf("error setting membership: %w", err)
	}
	return nil
}
