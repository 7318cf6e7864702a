package repositories

import (
	"context"

	"productapi/internal/models"
)

// UserRepository defines detached user reads.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
