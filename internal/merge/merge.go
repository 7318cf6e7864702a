// Package merge applies partial updates to products.
package merge

import (
	"productapi/internal/models"
	"productapi/internal/validation"
)

// Apply copies every present field of patch onto target and returns the
// names of the fields that were present. Absent fields are left untouched.
func Apply(target *models.Product, patch models.PatchProductRequest) []string {
	var applied []string
	if patch.Name != nil {
		target.Name = *patch.Name
		applied = append(applied, models.ProductFieldName)
	}
	if patch.Description != nil {
		target.Description = *patch.Description
		applied = append(applied, models.ProductFieldDescription)
	}
	if patch.Price != nil {
		target.Price = *patch.Price
		applied = append(applied, models.ProductFieldPrice)
	}
	return applied
}

// Engine merges change-sets and re-validates the merged entity.
type Engine struct {
	validator *validation.Validator
}

// NewEngine creates an Engine validating with v.
func NewEngine(v *validation.Validator) *Engine {
	return &Engine{validator: v}
}

// Merge applies patch to a copy of target and validates the result. target is
// only modified when the merged entity is valid.
func (e *Engine) Merge(target *models.Product, patch models.PatchProductRequest) ([]string, error) {
	working := target.Clone()
	applied := Apply(&working, patch)
	if err := e.validator.Struct(&working); err != nil {
		return nil, err
	}
	*target = working
	return applied, nil
}
