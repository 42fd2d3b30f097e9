package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/store"
	"github.com/incidentdesk/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) (types.User, error)
}

// RegisterInput carries the fields accepted when creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateUserInput replaces the mutable user fields. An empty Password keeps
// the current hash.
type UpdateUserInput struct {
	Name     string
	Email    string
	Role     string
	Password string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register hashes the password and stores a new account. The role defaults
// to the ordinary user role. A duplicate email yields store.ErrConflict.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return types.User{}, fmt.Errorf("%w: name, email and secret are required", ErrValidation)
	}

	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = types.RoleUser
	}
	if !types.ValidRole(role) {
		return types.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	})
}

// Authenticate checks the secret for the account registered under email.
// Unknown emails and wrong secrets both yield auth.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, fmt.Errorf("%w: email and secret are required", ErrValidation)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, auth.ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (types.User, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		current.Name = name
	}
	if email := normalizeEmail(in.Email); email != "" {
		current.Email = email
	}
	if role := strings.TrimSpace(in.Role); role != "" {
		if !types.ValidRole(role) {
			return types.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
		}
		current.Role = role
	}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return types.User{}, err
		}
		current.PasswordHash = hash
	}

	return s.repo.Update(ctx, current)
}

// Delete removes the account and returns the deleted row.
func (s *UserService) Delete(ctx context.Context, id string) (types.User, error) {
	return s.repo.Delete(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
