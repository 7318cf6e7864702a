// Package apperrors defines the error taxonomy shared by the store, the
// services and the HTTP error handler.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrStore      = errors.New("store failure")
)

// NotFoundError is returned when a lookup by id yields nothing.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with Id '%s' was not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a NotFoundError for resource and id.
func NewNotFound(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// FieldError describes a failed constraint on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError carries every failed constraint of a payload or entity.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "one or more validation failures have occurred"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return "validation: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a ValidationError for a single field.
func NewValidation(field, tag, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// NewStore wraps err as a StoreError; nil stays nil.
func NewStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsDomain reports whether err already belongs to the taxonomy above and
// needs no further wrapping.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrStore)
}
