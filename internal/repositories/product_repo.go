package repositories

import (
	"context"

	"github.com/google/uuid"

	"productapi/internal/models"
)

// ProductRepository defines detached product reads. Returned values are copies
// and never take part in a later commit.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}
