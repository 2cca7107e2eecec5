// internal/app/identity.go
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"group_question_service/internal/domain/member"
	"group_question_service/internal/domain/reply"
	idb "group_question_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var bracketedAddress = regexp.MustCompile(`<([^<>]*)>`)

// ExtractAddress returns the part of a From value inside <...>, or the value
// unchanged when there are no brackets.
func ExtractAddress(from string) string {
	if m := bracketedAddress.FindStringSubmatch(from); m != nil {
		return m[1]
	}
	return from
}

// IdentityResolver maps the sender of an inbound message to a member.
type IdentityResolver struct {
	members member.Repository
	logger  *logrus.Entry
}

func NewIdentityResolver(members member.Repository, logger *logrus.Entry) *IdentityResolver {
	return &IdentityResolver{members: members, logger: logger.WithField("component", "identity_resolver")}
}

// Resolve looks the extracted address up verbatim. Addresses are normalized
// when members are created, not here.
func (r *IdentityResolver) Resolve(ctx context.Context, from string) (*member.Member, error) {
	address := ExtractAddress(from)
	m, err := r.members.GetByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, idb.ErrMemberNotFound) {
			r.logger.WithField("address", address).Info("No member for sender address")
			return nil, fmt.Errorf("%w: %s", reply.ErrUnknownSender, address)
		}
		return nil, fmt.Errorf("%w: looking up sender %s: %w", reply.ErrTransient, address, err)
	}
	return m, nil
}
