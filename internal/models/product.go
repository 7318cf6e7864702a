package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire, into the cache and onto the broker as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a product in the catalog.
// Audit columns are owned by the pre-commit stamping pipeline and are never
// written from request payloads.
type Product struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string          `json:"name" gorm:"type:varchar(50);not null" validate:"required,max=50"`
	Description   string          `json:"description" gorm:"type:varchar(150)" validate:"max=150"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(7,2);not null" validate:"money"`
	CreatedByID   string          `json:"created_by_id" gorm:"type:varchar(128);not null;index"`
	CreatedAtUtc  time.Time       `json:"created_at_utc" gorm:"not null"`
	ModifiedByID  *string         `json:"modified_by_id,omitempty" gorm:"type:varchar(128);index"`
	ModifiedAtUtc *time.Time      `json:"modified_at_utc,omitempty"`
}

// TableName returns the table name for Product model.
func (Product) TableName() string {
	return "products"
}

// Clone returns a deep copy, so the nullable audit pointers are not shared.
func (p Product) Clone() Product {
	out := p
	if p.ModifiedByID != nil {
		v := *p.ModifiedByID
		out.ModifiedByID = &v
	}
	if p.ModifiedAtUtc != nil {
		v := *p.ModifiedAtUtc
		out.ModifiedAtUtc = &v
	}
	return out
}

// Product columns that a caller may change. Audit and key columns are excluded.
const (
	ProductFieldName        = "name"
	ProductFieldDescription = "description"
	ProductFieldPrice       = "price"
)

// ChangedFields lists the mutable columns whose values differ between p and other.
func (p Product) ChangedFields(other Product) []string {
	var changed []string
	if p.Name != other.Name {
		changed = append(changed, ProductFieldName)
	}
	if p.Description != other.Description {
		changed = append(changed, ProductFieldDescription)
	}
	if !p.Price.Equal(other.Price) {
		changed = append(changed, ProductFieldPrice)
	}
	return changed
}
