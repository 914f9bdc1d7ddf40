package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookshelf/internal/apperr"
	"bookshelf/internal/platform/crypto"
)

type Service struct {
	repo     Repository
	secret   string
	tokenTTL time.Duration
}

func NewService(repo Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, secret: secret, tokenTTL: tokenTTL}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and returns it together with an access
// token.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, string, error) {
	email = NormalizeEmail(email)

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return User{}, "", apperr.Conflict("Email already exists")
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, "", apperr.Internal("Failed to register user", err)
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return User{}, "", apperr.Internal("Failed to register user", err)
	}

	newUser := &User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: hashed,
	}
	if err := s.repo.Create(ctx, newUser); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, ErrAlreadyExists) {
			return User{}, "", apperr.Conflict("Email already exists")
		}
		return User{}, "", apperr.Internal("Failed to register user", err)
	}

	token, _, err := crypto.GenerateToken(s.secret, newUser.ID, s.tokenTTL)
	if err != nil {
		return User{}, "", apperr.Internal("Failed to issue token", err)
	}
	return *newUser, token, nil
}

// Login checks the credentials and issues an access token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", apperr.Unauthorized("Invalid email or password")
		}
		return "", apperr.Internal("Failed to log in", err)
	}
	if !crypto.VerifyPassword(u.Password, password) {
		return "", apperr.Unauthorized("Invalid email or password")
	}

	token, _, err := crypto.GenerateToken(s.secret, u.ID, s.tokenTTL)
	if err != nil {
		return "", apperr.Internal("Failed to issue token", err)
	}
	return token, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, apperr.NotFound("User not found")
		}
		return User{}, apperr.Internal("Failed to load user", err)
	}
	return u, nil
}
