package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"productapi/internal/apperrors"
	"productapi/internal/models"
)

// MemoryStore is an in-memory backing store. It serves as product reader,
// user reader and committer, and applies commits with the same column rules
// as the GORM implementation.
type MemoryStore struct {
	products map[uuid.UUID]models.Product
	users    map[string]models.User
	mu       sync.RWMutex
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[uuid.UUID]models.Product),
		users:    make(map[string]models.User),
	}
}

// NewMemoryBackedStore wires a Store whose reads and writes go to m.
func NewMemoryBackedStore(m *MemoryStore, hooks ...PreCommitHook) *Store {
	return NewStore(m.Products(), m.Users(), m, hooks...)
}

// Products returns the product reader backed by m.
func (m *MemoryStore) Products() ProductRepository { return memoryProducts{m} }

// Users returns the user reader backed by m.
func (m *MemoryStore) Users() UserRepository { return memoryUsers{m} }

type memoryProducts struct{ m *MemoryStore }

// GetAll returns all products ordered by id.
func (r memoryProducts) GetAll(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStore("list products", err)
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.m.products))
	for _, p := range r.m.products {
		productList = append(productList, p.Clone())
	}
	sort.Slice(productList, func(i, j int) bool {
		return productList[i].ID.String() < productList[j].ID.String()
	})
	return productList, nil
}

// GetByID returns a copy of the product with the given id.
func (r memoryProducts) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStore("get product", err)
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	product, ok := r.m.products[id]
	if !ok {
		return nil, apperrors.NewNotFound("Product", id)
	}
	out := product.Clone()
	return &out, nil
}

type memoryUsers struct{ m *MemoryStore }

// GetByID returns a copy of the user with the given id.
func (r memoryUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStore("get user", err)
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	user, ok := r.m.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("User", id)
	}
	out := user.Clone()
	return &out, nil
}

// Commit checks every entry first and only then applies them, so a failing
// entry leaves the store untouched.
func (m *MemoryStore) Commit(ctx context.Context, entries []*Entry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewStore("commit", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if err := m.check(e); err != nil {
			return 0, err
		}
	}

	var affected int64
	for _, e := range entries {
		affected += m.apply(e)
	}
	return affected, nil
}

func (m *MemoryStore) check(e *Entry) error {
	switch e.Kind {
	case KindProduct:
		_, exists := m.products[e.Product.ID]
		switch e.State {
		case StateAdded:
			if exists {
				return apperrors.NewStore("commit", fmt.Errorf("product %s already exists", e.Product.ID))
			}
		case StateModified, StateDeleted:
			if !exists {
				return apperrors.NewNotFound("Product", e.Product.ID)
			}
		default:
			return apperrors.NewStore("commit", fmt.Errorf("unsupported product state %s", e.State))
		}
	case KindUser:
		_, exists := m.users[e.User.ID]
		switch e.State {
		case StateAdded:
		case StateModified:
			if !exists {
				return apperrors.NewNotFound("User", e.User.ID)
			}
		default:
			return apperrors.NewStore("commit", fmt.Errorf("unsupported user state %s", e.State))
		}
	default:
		return apperrors.NewStore("commit", fmt.Errorf("unknown entry kind %s", e.Kind))
	}
	return nil
}

func (m *MemoryStore) apply(e *Entry) int64 {
	switch e.Kind {
	case KindProduct:
		switch e.State {
		case StateAdded:
			m.products[e.Product.ID] = e.Product.Clone()
		case StateModified:
			stored := m.products[e.Product.ID]
			for _, f := range e.Fields {
				switch f {
				case models.ProductFieldName:
					stored.Name = e.Product.Name
				case models.ProductFieldDescription:
					stored.Description = e.Product.Description
				case models.ProductFieldPrice:
					stored.Price = e.Product.Price
				}
			}
			src := e.Product.Clone()
			stored.ModifiedByID = src.ModifiedByID
			stored.ModifiedAtUtc = src.ModifiedAtUtc
			m.products[e.Product.ID] = stored
		case StateDeleted:
			delete(m.products, e.Product.ID)
		}
	case KindUser:
		switch e.State {
		case StateAdded:
			if _, exists := m.users[e.User.ID]; exists {
				return 0
			}
			m.users[e.User.ID] = e.User.Clone()
		case StateModified:
			stored := m.users[e.User.ID]
			src := e.User.Clone()
			if slices.Contains(e.Fields, models.UserFieldEmail) {
				stored.Email = src.Email
			}
			if slices.Contains(e.Fields, models.UserFieldName) {
				stored.Name = src.Name
			}
			if slices.Contains(e.Fields, models.UserFieldLastLoginAt) {
				stored.LastLoginAt = src.LastLoginAt
			}
			if slices.Contains(e.Fields, models.UserFieldIsActive) {
				stored.IsActive = src.IsActive
			}
			stored.UpdatedAtUtc = src.UpdatedAtUtc
			m.users[e.User.ID] = stored
		}
	}
	return 1
}
