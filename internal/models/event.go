package models

import (
	"time"

	"github.com/google/uuid"
)

// Product event types published after a successful commit.
const (
	ProductCreated = "product.created"
	ProductUpdated = "product.updated"
	ProductDeleted = "product.deleted"
)

// ProductEvent describes a committed change to a product.
type ProductEvent struct {
	Type       string           `json:"type"`
	ProductID  uuid.UUID        `json:"product_id"`
	ActorID    string           `json:"actor_id"`
	OccurredAt time.Time        `json:"occurred_at"`
	Product    *ProductResponse `json:"product,omitempty"`
}
