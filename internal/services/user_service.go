package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"productapi/internal/apperrors"
	"productapi/internal/models"
	"productapi/internal/repositories"
	"productapi/internal/validation"
)

// UserService keeps the users table in step with the identity provider.
type UserService struct {
	store     *repositories.Store
	validator *validation.Validator
	now       func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store *repositories.Store, v *validation.Validator) *UserService {
	return &UserService{
		store:     store,
		validator: v,
		now:       time.Now,
	}
}

// SyncUser inserts the principal's user on first sight. Afterwards it refreshes
// email and name when the token carries a different non-empty value, and always
// records the login time.
func (s *UserService) SyncUser(ctx context.Context, principal models.Principal) (*models.User, error) {
	id, ok := principal.ActorID()
	if !ok {
		return nil, apperrors.NewValidation("sub", "required", "token subject is required")
	}

	now := s.now().UTC()
	uow := s.store.Begin(principal)
	user, err := uow.FindUser(ctx, id)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		user = &models.User{
			ID:          id,
			Email:       principal.Email,
			Name:        principal.Name,
			LastLoginAt: &now,
			IsActive:    true,
		}
		if err := s.validator.Struct(user); err != nil {
			return nil, err
		}
		uow.AddUser(user)
	case err != nil:
		return nil, fmt.Errorf("sync user: %w", err)
	default:
		if principal.Email != "" && principal.Email != user.Email {
			user.Email = principal.Email
		}
		if principal.Name != "" && principal.Name != user.Name {
			user.Name = principal.Name
		}
		user.LastLoginAt = &now
		if err := s.validator.Struct(user); err != nil {
			return nil, err
		}
		if err := uow.UpdateUser(user); err != nil {
			return nil, fmt.Errorf("sync user: %w", err)
		}
	}

	if _, err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("sync user: %w", err)
	}
	return user, nil
}

// GetUser returns the stored user with id.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
