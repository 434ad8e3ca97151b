package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/crate/internal/apperror"
	"github.com/splax/crate/internal/domain"
	"github.com/splax/crate/internal/repository"
)

// MsgEmailTaken is returned when an email is already registered.
const MsgEmailTaken = "Email is already registered"

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) ([]byte, error)
	Compare(hash []byte, plain string) (bool, error)
}

// TokenCodec issues and validates access tokens.
type TokenCodec interface {
	Issue(email string) string
	Validate(tok string) (string, error)
}

// Service owns user records and access tokens.
type Service struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenCodec
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, hasher PasswordHasher, tokens TokenCodec, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, hasher: hasher, tokens: tokens, logger: logger, now: time.Now}
}

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
}

// Create registers a user. Callers check for an existing email first; a
// registration racing past that check still fails with a bad request.
func (s Service) Create(ctx context.Context, in SignupInput) (*domain.User, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", in.Role)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperror.BadRequest(MsgEmailTaken)
		}
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// FindByEmail returns the user or nil when none is registered.
func (s Service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// VerifyPassword reports whether candidate matches the user's password.
// An empty candidate never reaches the hasher.
func (s Service) VerifyPassword(candidate string, user *domain.User) (bool, error) {
	if candidate == "" || user == nil {
		return false, nil
	}
	return s.hasher.Compare(user.PasswordHash, candidate)
}

// IssueToken returns a fresh access token for email.
func (s Service) IssueToken(email string) string {
	return s.tokens.Issue(email)
}

// Authenticate resolves a token to the email it was issued for.
func (s Service) Authenticate(tok string) (string, error) {
	if tok == "" {
		return "", errors.New("token required")
	}
	return s.tokens.Validate(tok)
}

// PublicView strips the id and password hash.
func PublicView(user *domain.User) domain.UserView {
	return domain.UserView{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}
}
