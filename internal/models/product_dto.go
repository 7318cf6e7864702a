package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest is the payload for creating a product.
type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=50"`
	Description string           `json:"description" validate:"max=150"`
	Price       *decimal.Decimal `json:"price" validate:"required,money"`
}

// UpdateProductRequest replaces every mutable field of a product.
type UpdateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=50"`
	Description string           `json:"description" validate:"max=150"`
	Price       *decimal.Decimal `json:"price" validate:"required,money"`
}

// PatchProductRequest is a sparse change-set. A nil field is left untouched;
// a non-nil field, including a pointer to "", overwrites the stored value.
type PatchProductRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=50"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=150"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitempty,money"`
}

// ProductResponse is the outbound representation of a product.
type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// MarshalJSON renders the price as a number with exactly two decimals,
// matching the decimal(7,2) column.
func (r ProductResponse) MarshalJSON() ([]byte, error) {
	type plain ProductResponse
	return json.Marshal(struct {
		plain
		Price json.RawMessage `json:"price"`
	}{plain(r), json.RawMessage(r.Price.StringFixed(2))})
}

// NewProductResponse maps a stored product to its response shape.
func NewProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
	}
}
