// Package validation wraps go-playground/validator with the product rules:
// field names are reported by their json names and prices use the "money" tag.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"productapi/internal/apperrors"
)

// maxPrice is the exclusive upper bound of a decimal(7,2) column.
var maxPrice = decimal.New(100000, 0)

// Validator validates request payloads and entities.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the custom money rule registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	if err := v.RegisterValidation("money", validateMoney); err != nil {
		panic(fmt.Sprintf("register money validation: %v", err))
	}
	return &Validator{validate: v}
}

// Struct validates s and returns a *apperrors.ValidationError on failure.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &apperrors.ValidationError{Errors: make([]apperrors.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, apperrors.FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "money":
		return fmt.Sprintf("%s must be a non-negative amount with at most 7 digits and 2 decimals", fe.Field())
	default:
		return fmt.Sprintf("Field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// decimalValue lets the validator treat decimals as their canonical string.
func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return IsMoney(d)
}

// IsMoney reports whether d fits a non-negative decimal(7,2).
func IsMoney(d decimal.Decimal) bool {
	if d.IsNegative() {
		return false
	}
	if !d.Equal(d.Round(2)) {
		return false
	}
	return d.LessThan(maxPrice)
}
