package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"productapi/internal/apperrors"
	"productapi/internal/models"
)

// State is the kind of write staged for an entity.
type State int

const (
	StateAdded State = iota + 1
	StateModified
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateAdded:
		return "added"
	case StateModified:
		return "modified"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind tags which entity an Entry carries.
type Kind int

const (
	KindProduct Kind = iota + 1
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindProduct:
		return "product"
	case KindUser:
		return "user"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is one staged write. Exactly one of Product or User is set, matching Kind.
type Entry struct {
	Kind    Kind
	State   State
	Product *models.Product
	User    *models.User

	// Fields holds the mutable columns that differ from the loaded snapshot.
	// It is only filled for StateModified and may be empty.
	Fields []string
}

// PreCommitHook runs over every staged entry before anything is written.
// An error aborts the commit.
type PreCommitHook func(ctx context.Context, actor models.Actor, entries []*Entry) error

// Committer writes staged entries atomically and returns the number of
// affected rows.
type Committer interface {
	Commit(ctx context.Context, entries []*Entry) (int64, error)
}

// ErrNotTracked is returned when an entity is staged for update or removal
// without having been loaded through the same unit of work.
var ErrNotTracked = errors.New("entity is not tracked by this unit of work")

// ErrCommitted is returned when a unit of work is used after Commit.
var ErrCommitted = errors.New("unit of work already committed")

// Store is the entity store gateway: detached reads plus units of work for writes.
type Store struct {
	products  ProductRepository
	users     UserRepository
	committer Committer
	hooks     []PreCommitHook
}

// NewStore creates a Store. Hooks run in the given order on every commit.
func NewStore(products ProductRepository, users UserRepository, committer Committer, hooks ...PreCommitHook) *Store {
	return &Store{
		products:  products,
		users:     users,
		committer: committer,
		hooks:     hooks,
	}
}

// Products returns the detached product reader.
func (s *Store) Products() ProductRepository { return s.products }

// Users returns the detached user reader.
func (s *Store) Users() UserRepository { return s.users }

// Begin starts a unit of work attributed to actor.
func (s *Store) Begin(actor models.Actor) *UnitOfWork {
	return &UnitOfWork{
		store:    s,
		actor:    actor,
		products: make(map[uuid.UUID]models.Product),
		users:    make(map[string]models.User),
	}
}

// UnitOfWork collects explicit writes for a single request. Entities loaded
// through it are working copies; changes only reach the store when the copy
// is staged and Commit succeeds.
type UnitOfWork struct {
	store     *Store
	actor     models.Actor
	entries   []*Entry
	products  map[uuid.UUID]models.Product
	users     map[string]models.User
	committed bool
}

// Actor returns the actor the unit of work is attributed to.
func (u *UnitOfWork) Actor() models.Actor { return u.actor }

// FindProduct loads a product for mutation and remembers its snapshot.
func (u *UnitOfWork) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := u.store.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.products[p.ID] = p.Clone()
	return p, nil
}

// FindUser loads a user for mutation and remembers its snapshot.
func (u *UnitOfWork) FindUser(ctx context.Context, id string) (*models.User, error) {
	usr, err := u.store.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.users[usr.ID] = usr.Clone()
	return usr, nil
}

// AddProduct stages p for insert. A zero ID is filled in at commit.
func (u *UnitOfWork) AddProduct(p *models.Product) {
	u.entries = append(u.entries, &Entry{Kind: KindProduct, State: StateAdded, Product: p})
}

// UpdateProduct stages a tracked product for update.
func (u *UnitOfWork) UpdateProduct(p *models.Product) error {
	if _, ok := u.products[p.ID]; !ok {
		return fmt.Errorf("update product %s: %w", p.ID, ErrNotTracked)
	}
	u.entries = append(u.entries, &Entry{Kind: KindProduct, State: StateModified, Product: p})
	return nil
}

// RemoveProduct stages a tracked product for delete.
func (u *UnitOfWork) RemoveProduct(p *models.Product) error {
	if _, ok := u.products[p.ID]; !ok {
		return fmt.Errorf("remove product %s: %w", p.ID, ErrNotTracked)
	}
	u.entries = append(u.entries, &Entry{Kind: KindProduct, State: StateDeleted, Product: p})
	return nil
}

// AddUser stages usr for insert. Inserting an id that already exists is a no-op.
func (u *UnitOfWork) AddUser(usr *models.User) {
	u.entries = append(u.entries, &Entry{Kind: KindUser, State: StateAdded, User: usr})
}

// UpdateUser stages a tracked user for update.
func (u *UnitOfWork) UpdateUser(usr *models.User) error {
	if _, ok := u.users[usr.ID]; !ok {
		return fmt.Errorf("update user %s: %w", usr.ID, ErrNotTracked)
	}
	u.entries = append(u.entries, &Entry{Kind: KindUser, State: StateModified, User: usr})
	return nil
}

// Commit diffs every staged update against its snapshot, runs the pre-commit
// hooks and writes all entries atomically.
func (u *UnitOfWork) Commit(ctx context.Context) (int64, error) {
	if u.committed {
		return 0, ErrCommitted
	}
	if len(u.entries) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewStore("commit", err)
	}

	for _, e := range u.entries {
		if e.State != StateModified {
			continue
		}
		switch e.Kind {
		case KindProduct:
			e.Fields = e.Product.ChangedFields(u.products[e.Product.ID])
		case KindUser:
			e.Fields = e.User.ChangedFields(u.users[e.User.ID])
		}
	}

	for _, hook := range u.store.hooks {
		if err := hook(ctx, u.actor, u.entries); err != nil {
			return 0, fmt.Errorf("pre-commit: %w", err)
		}
	}

	n, err := u.store.committer.Commit(ctx, u.entries)
	if err != nil {
		return 0, err
	}
	u.committed = true
	return n, nil
}
