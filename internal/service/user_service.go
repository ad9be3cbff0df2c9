package service

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"

	"library-api/internal/domain"
	"library-api/internal/repository"
)

// ErrInvalidLogin indicates that provided login credentials were rejected.
var ErrInvalidLogin = errors.New("invalid login")

// LoginPolicy selects how login credentials are judged.
type LoginPolicy int

const (
	// LoginPolicyLiteral rejects a login only when the user is missing and
	// the password differs from the shared one. An existing user is let in
	// with any password.
	LoginPolicyLiteral LoginPolicy = iota
	// LoginPolicyStrict requires both an existing user and the shared password.
	LoginPolicyStrict
)

// TokenIssuer signs the credential returned by a successful login.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

// UserService describes user lifecycle operations.
type UserService interface {
	Create(ctx context.Context, username, favoriteGenre string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type userService struct {
	users        repository.UserRepository
	tokens       TokenIssuer
	passwordHash []byte
	policy       LoginPolicy
}

// NewUserService builds the service. passwordHash is the bcrypt hash of the
// shared login password.
func NewUserService(users repository.UserRepository, tokens TokenIssuer, passwordHash []byte, policy LoginPolicy) UserService {
	return &userService{
		users:        users,
		tokens:       tokens,
		passwordHash: passwordHash,
		policy:       policy,
	}
}

// HashLoginPassword hashes the shared login password once at startup.
func HashLoginPassword(password string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash login password: %w", err)
	}
	return hash, nil
}

func (s *userService) Create(ctx context.Context, username, favoriteGenre string) (*domain.User, error) {
	user := &domain.User{
		Username:      username,
		FavoriteGenre: favoriteGenre,
	}

	err := validation.ValidateStruct(user,
		validation.Field(&user.Username, validation.Required),
		validation.Field(&user.FavoriteGenre, validation.Required),
	)
	if err != nil {
		return nil, inputError("User creation failed", username, err)
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, inputError("User creation failed", username, err)
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		user = nil
	}

	switch s.policy {
	case LoginPolicyStrict:
		if user == nil || !s.passwordMatches(password) {
			return "", inputError("Invalid login", username, ErrInvalidLogin)
		}
	default:
		if user == nil && !s.passwordMatches(password) {
			return "", inputError("Invalid login", username, ErrInvalidLogin)
		}
	}

	// under the literal policy user may still be nil here; the issuer refuses it
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) passwordMatches(password string) bool {
	return bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
}
