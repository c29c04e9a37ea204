// Package authpw provides email/password sign-in for the site owner.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"portfolio/api/internal/rbac"
	"portfolio/api/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Service provides email/password authentication
type Service struct {
	store UserStore
	newID func() string
	cost  int
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	UpsertUser(ctx context.Context, user store.User) error
}

func NewService(s UserStore, newID func() string) *Service {
	return &Service{store: s, newID: newID, cost: bcrypt.DefaultCost}
}

// BootstrapRequest describes the owner account configured at startup.
type BootstrapRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// BootstrapOwner creates the owner account, or resets its password and name
// when the account exists.
func (s *Service) BootstrapOwner(ctx context.Context, req BootstrapRequest) (store.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return store.User{}, errors.New("owner email and password are required")
	}
	if len(req.Password) < 8 {
		return store.User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           s.newID(),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        email,
		PasswordHash: string(hash),
		Role:         string(rbac.RoleOwner),
	}
	if user.DisplayName == "" {
		user.DisplayName = "Owner"
	}
	existing, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user.ID = existing.ID
	case !errors.Is(err, store.ErrNotFound):
		return store.User{}, fmt.Errorf("lookup owner: %w", err)
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("save owner: %w", err)
	}
	return user, nil
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates a user
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 {
		return ErrWeakPassword
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
