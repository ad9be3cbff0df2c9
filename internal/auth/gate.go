package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"library-api/internal/domain"
	"library-api/internal/repository"
)

const bearerScheme = "bearer"

// UserLookup resolves the user a verified token points at.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Gate turns an Authorization header into the request's current user.
type Gate struct {
	tokens *TokenManager
	users  UserLookup
}

func NewGate(tokens *TokenManager, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate returns the current user for the header value, or nil when
// the header is absent, names another scheme, or the token's user no longer
// exists. A bearer header without a credential, or with a token that fails
// verification, yields ErrInvalidToken.
func (g *Gate) Authenticate(ctx context.Context, header string) (*domain.User, error) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return nil, nil
	}

	// header is trimmed, so a bare scheme leaves rest empty
	rest := header[len(bearerScheme):]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return nil, fmt.Errorf("%w: malformed bearer credential", ErrInvalidToken)
	}

	claims, err := g.tokens.Verify(strings.TrimSpace(rest))
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup current user: %w", err)
	}
	return user, nil
}

type currentUserKey struct{}

// WithUser returns a copy of ctx carrying the current user; nil is allowed.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, currentUserKey{}, user)
}

// UserFromContext returns the current user, or nil when unauthenticated.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(currentUserKey{}).(*domain.User)
	return user
}
