package merge

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/shopspring/decimal"

	"productapi/internal/apperrors"
	"productapi/internal/models"
)

// pricePath is the JSON pointer of the price in the patchable view.
const pricePath = "/" + models.ProductFieldPrice

// patchDocument is the patchable view of a product.
type patchDocument struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
}

// FromJSONPatch runs RFC 6902 operations against the patchable view of
// current and returns the equivalent sparse change-set. A removed name or
// description becomes an empty string; a removed price is rejected.
func FromJSONPatch(current models.Product, ops []byte) (models.PatchProductRequest, error) {
	ops, err := canonicalPrices(ops)
	if err != nil {
		return models.PatchProductRequest{}, apperrors.NewValidation("patch", "json-patch", fmt.Sprintf("patch document is invalid: %v", err))
	}
	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return models.PatchProductRequest{}, apperrors.NewValidation("patch", "json-patch", fmt.Sprintf("patch document is invalid: %v", err))
	}

	doc, err := json.Marshal(map[string]any{
		models.ProductFieldName:        current.Name,
		models.ProductFieldDescription: current.Description,
		models.ProductFieldPrice:       json.RawMessage(current.Price.String()),
	})
	if err != nil {
		return models.PatchProductRequest{}, fmt.Errorf("encode patch target: %w", err)
	}

	patched, err := patch.Apply(doc)
	if err != nil {
		return models.PatchProductRequest{}, apperrors.NewValidation("patch", "json-patch", fmt.Sprintf("patch could not be applied: %v", err))
	}

	var out patchDocument
	dec := json.NewDecoder(bytes.NewReader(patched))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return models.PatchProductRequest{}, apperrors.NewValidation("patch", "json-patch", fmt.Sprintf("patched product is invalid: %v", err))
	}
	if out.Price == nil {
		return models.PatchProductRequest{}, apperrors.NewValidation(models.ProductFieldPrice, "required", "price is required")
	}

	empty := ""
	if out.Name == nil {
		out.Name = &empty
	}
	if out.Description == nil {
		out.Description = &empty
	}
	return models.PatchProductRequest{
		Name:        out.Name,
		Description: out.Description,
		Price:       out.Price,
	}, nil
}

// canonicalPrices rewrites numeric values aimed at the price into decimal's
// canonical text. The document carries the price in the same form, so a
// "test" of 499.00 matches a stored 499.
func canonicalPrices(ops []byte) ([]byte, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(ops, &raw); err != nil {
		return nil, err
	}

	changed := false
	for _, op := range raw {
		var path string
		if err := json.Unmarshal(op["path"], &path); err != nil || path != pricePath {
			continue
		}
		value, ok := op["value"]
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(string(bytes.TrimSpace(value)))
		if err != nil {
			continue
		}
		op["value"] = json.RawMessage(d.String())
		changed = true
	}
	if !changed {
		return ops, nil
	}
	return json.Marshal(raw)
}
