package member

import "context"

// Repository defines the operations for persisting and retrieving members and
// reading their group memberships.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id int64) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	IsActiveInGroup(ctx context.Context, memberID, groupID int64) (bool, error)
	ListActiveByGroup(ctx context.Context, groupID int64) ([]*Member, error)
	SetMembership(ctx context.Context, ms Membership) error
}
