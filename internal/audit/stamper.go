// Package audit stamps creation and modification metadata on staged entities
// right before they are committed.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"productapi/internal/models"
	"productapi/internal/repositories"
)

// Scope is the per-commit context every step sees. All entries in one commit
// share the same actor and the same instant.
type Scope struct {
	ActorID string
	Now     time.Time
	NewID   func() (uuid.UUID, error)
}

// Step is one stage of the stamping pipeline.
type Step func(scope Scope, e *repositories.Entry) error

// DefaultSteps is the pipeline used when no steps are configured.
var DefaultSteps = []Step{AssignIdentifiers, StampCreated, StampModified}

// Stamper runs an ordered list of steps over every staged entry.
type Stamper struct {
	steps []Step
	clock func() time.Time
	newID func() (uuid.UUID, error)
}

// Option configures a Stamper.
type Option func(*Stamper)

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Stamper) { s.clock = clock }
}

// WithIDGenerator replaces the identifier generator.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(s *Stamper) { s.newID = gen }
}

// WithSteps replaces the pipeline.
func WithSteps(steps ...Step) Option {
	return func(s *Stamper) { s.steps = steps }
}

// New creates a Stamper. Ids default to UUIDv7 so they sort by creation time.
func New(opts ...Option) *Stamper {
	s := &Stamper{
		steps: DefaultSteps,
		clock: time.Now,
		newID: uuid.NewV7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hook exposes the stamper as a store pre-commit hook.
func (s *Stamper) Hook() repositories.PreCommitHook {
	return s.Stamp
}

// Stamp runs the pipeline for actor over entries.
func (s *Stamper) Stamp(_ context.Context, actor models.Actor, entries []*repositories.Entry) error {
	scope := Scope{
		ActorID: models.ResolveActorID(actor),
		Now:     s.clock().UTC(),
		NewID:   s.newID,
	}
	for _, e := range entries {
		for _, step := range s.steps {
			if err := step(scope, e); err != nil {
				return fmt.Errorf("audit %s %s: %w", e.State, e.Kind, err)
			}
		}
	}
	return nil
}

// AssignIdentifiers gives new products without an id a fresh one.
func AssignIdentifiers(scope Scope, e *repositories.Entry) error {
	if e.Kind != repositories.KindProduct || e.State != repositories.StateAdded {
		return nil
	}
	if e.Product.ID != uuid.Nil {
		return nil
	}
	id, err := scope.NewID()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	e.Product.ID = id
	return nil
}

// StampCreated sets creator and creation time on inserted rows. Modifier
// columns of a new product are cleared.
func StampCreated(scope Scope, e *repositories.Entry) error {
	if e.State != repositories.StateAdded {
		return nil
	}
	switch e.Kind {
	case repositories.KindProduct:
		e.Product.CreatedByID = scope.ActorID
		e.Product.CreatedAtUtc = scope.Now
		e.Product.ModifiedByID = nil
		e.Product.ModifiedAtUtc = nil
	case repositories.KindUser:
		e.User.CreatedAtUtc = scope.Now
		e.User.UpdatedAtUtc = nil
	}
	return nil
}

// StampModified sets modifier and modification time on updated rows.
// Deleted rows are left alone.
func StampModified(scope Scope, e *repositories.Entry) error {
	if e.State != repositories.StateModified {
		return nil
	}
	now := scope.Now
	switch e.Kind {
	case repositories.KindProduct:
		actor := scope.ActorID
		e.Product.ModifiedByID = &actor
		e.Product.ModifiedAtUtc = &now
	case repositories.KindUser:
		e.User.UpdatedAtUtc = &now
	}
	return nil
}
