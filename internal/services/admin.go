package services

import (
	"context"
	"errors"
	"net/mail"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/models"
)

// AdminStore is the part of the store behind the admin user and key views.
type AdminStore interface {
	ListUsers(ctx context.Context) ([]database.UserOverview, error)
	UpdateUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) error
	UpdateUser(ctx context.Context, id uuid.UUID, email string, role models.Role, status models.UserStatus) error
	SetMonthlyLimit(ctx context.Context, userID uuid.UUID, limit int64) error
	ListAllAPIKeys(ctx context.Context) ([]database.KeyOwner, error)
}

type AdminService struct {
	store AdminStore
}

func NewAdminService(store AdminStore) *AdminService {
	return &AdminService{store: store}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]database.UserOverview, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, internal("list users", err)
	}
	return users, nil
}

// SetUserStatus suspends or reactivates a user. Suspension takes effect on
// the next login and the next API-key request.
func (s *AdminService) SetUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) error {
	if !status.Valid() {
		return newError(KindValidation, "Invalid status")
	}
	return userWriteError(s.store.UpdateUserStatus(ctx, id, status), "update user status")
}

// UserUpdate is the body of the full admin user update.
type UserUpdate struct {
	Email  string            `json:"email"`
	Role   models.Role       `json:"role"`
	Status models.UserStatus `json:"status"`
}

func (s *AdminService) UpdateUser(ctx context.Context, id uuid.UUID, in UserUpdate) error {
	email := normalizeEmail(in.Email)
	if email == "" || in.Role == "" || in.Status == "" {
		return newError(KindValidation, "All fields are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return newError(KindValidation, "Invalid email address")
	}
	if !in.Role.Valid() {
		return newError(KindValidation, "Invalid role")
	}
	if !in.Status.Valid() {
		return newError(KindValidation, "Invalid status")
	}
	return userWriteError(s.store.UpdateUser(ctx, id, email, in.Role, in.Status), "update user")
}

// SetMonthlyLimit changes a user's allowance. Usage is left untouched.
func (s *AdminService) SetMonthlyLimit(ctx context.Context, id uuid.UUID, limit int64) error {
	if limit < 0 {
		return newError(KindValidation, "Monthly limit must not be negative")
	}
	return userWriteError(s.store.SetMonthlyLimit(ctx, id, limit), "set monthly limit")
}

func (s *AdminService) ListAPIKeys(ctx context.Context) ([]database.KeyOwner, error) {
	keys, err := s.store.ListAllAPIKeys(ctx)
	if err != nil {
		return nil, internal("list api keys", err)
	}
	return keys, nil
}

func userWriteError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return newError(KindNotFound, "User not found")
	case errors.Is(err, database.ErrConflict):
		return newError(KindConflict, "Email already registered")
	default:
		return internal(op, err)
	}
}
