package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"productapi/internal/apperrors"
	"productapi/internal/audit"
	"productapi/internal/models"
	"productapi/internal/repositories"
	"productapi/internal/services"
	"productapi/internal/validation"
)

// MockProductCache is a mock implementation of services.ProductCache
type MockProductCache struct {
	mock.Mock
}

func (m *MockProductCache) Get(ctx context.Context, id uuid.UUID) (*models.ProductResponse, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.ProductResponse), args.Bool(1), args.Error(2)
}

func (m *MockProductCache) Fill(ctx context.Context, resp models.ProductResponse) error {
	args := m.Called(ctx, resp)
	return args.Error(0)
}

func (m *MockProductCache) Set(ctx context.Context, resp models.ProductResponse) error {
	args := m.Called(ctx, resp)
	return args.Error(0)
}

func (m *MockProductCache) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishProductEvent(ctx context.Context, event models.ProductEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// tickingClock advances by one second on every call.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store   *repositories.Store
	service *services.ProductService
}

func newFixture(t *testing.T, opts ...services.ProductServiceOption) fixture {
	t.Helper()
	clock := &tickingClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	stamper := audit.New(audit.WithClock(clock.Now))
	store := repositories.NewMemoryBackedStore(repositories.NewMemoryStore(), stamper.Hook())
	return fixture{
		store:   store,
		service: services.NewProductService(store, validation.New(), opts...),
	}
}

var (
	alice = models.Principal{Subject: "auth0|alice", Email: "alice@example.com"}
	bob   = models.Principal{Subject: "auth0|bob", Email: "bob@example.com"}
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string { return &s }

func (f fixture) create(t *testing.T, name, description, price string) models.ProductResponse {
	t.Helper()
	resp, err := f.service.CreateProduct(context.Background(), alice, models.CreateProductRequest{
		Name: name, Description: description, Price: dec(price),
	})
	require.NoError(t, err)
	return resp
}

func (f fixture) stored(t *testing.T, id uuid.UUID) *models.Product {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestProductService_CreateProduct(t *testing.T) {
	f := newFixture(t)

	resp := f.create(t, "Laptop", "High performance laptop", "1999.99")

	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, "Laptop", resp.Name)
	assert.True(t, decimal.RequireFromString("1999.99").Equal(resp.Price))

	p := f.stored(t, resp.ID)
	assert.False(t, p.CreatedAtUtc.IsZero())
	assert.Equal(t, "auth0|alice", p.CreatedByID)
	assert.Nil(t, p.ModifiedAtUtc)
	assert.Nil(t, p.ModifiedByID)
}

func TestProductService_CreateProduct_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateProductRequest
	}{
		{"missing name", models.CreateProductRequest{Price: dec("1.00")}},
		{"missing price", models.CreateProductRequest{Name: "Mouse"}},
		{"negative price", models.CreateProductRequest{Name: "Mouse", Price: dec("-1")}},
		{"too many decimals", models.CreateProductRequest{Name: "Mouse", Price: dec("1.001")}},
		{"name too long", models.CreateProductRequest{Name: string(make([]byte, 51)), Price: dec("1.00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateProduct(ctx, alice, tt.req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	all, err := f.service.GetAllProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProductService_CreateProduct_AnonymousActor(t *testing.T) {
	f := newFixture(t)
	resp, err := f.service.CreateProduct(context.Background(), models.Principal{}, models.CreateProductRequest{
		Name: "Keyboard", Price: dec("79.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SystemActorID, f.stored(t, resp.ID).CreatedByID)
}

func TestProductService_GetAllProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.service.GetAllProducts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	f.create(t, "Laptop", "", "1999.99")
	f.create(t, "Monitor", "", "499.00")

	all, err = f.service.GetAllProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProductService_UpdateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "Laptop", "High performance laptop", "1999.99")
	before := f.stored(t, created.ID)

	resp, err := f.service.UpdateProduct(ctx, bob, created.ID, models.UpdateProductRequest{
		Name: "Gaming Laptop", Description: "", Price: dec("2499.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Gaming Laptop", resp.Name)
	assert.Equal(t, "", resp.Description)

	after := f.stored(t, created.ID)
	assert.Equal(t, before.CreatedAtUtc, after.CreatedAtUtc)
	assert.Equal(t, "auth0|alice", after.CreatedByID)
	require.NotNil(t, after.ModifiedByID)
	assert.Equal(t, "auth0|bob", *after.ModifiedByID)
	require.NotNil(t, after.ModifiedAtUtc)
	assert.True(t, after.ModifiedAtUtc.After(after.CreatedAtUtc))
}

func TestProductService_PatchPriceOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "Laptop", "High performance laptop", "1999.99")

	_, err := f.service.PatchProduct(ctx, bob, created.ID, models.PatchProductRequest{Price: dec("1799.00")})
	require.NoError(t, err)
	first := f.stored(t, created.ID)
	require.NotNil(t, first.ModifiedAtUtc)

	_, err = f.service.PatchProduct(ctx, bob, created.ID, models.PatchProductRequest{Price: dec("1599.00")})
	require.NoError(t, err)
	second := f.stored(t, created.ID)

	assert.Equal(t, "Laptop", second.Name)
	assert.Equal(t, "High performance laptop", second.Description)
	assert.True(t, decimal.RequireFromString("1599.00").Equal(second.Price))
	require.NotNil(t, second.ModifiedAtUtc)
	assert.True(t, second.ModifiedAtUtc.After(*first.ModifiedAtUtc))
}

func TestProductService_PatchEmptyTouches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "Laptop", "High performance laptop", "1999.99")

	resp, err := f.service.PatchProduct(ctx, bob, created.ID, models.PatchProductRequest{})
	require.NoError(t, err)
	assert.Equal(t, created, resp)

	p := f.stored(t, created.ID)
	assert.Equal(t, "Laptop", p.Name)
	assert.True(t, decimal.RequireFromString("1999.99").Equal(p.Price))
	require.NotNil(t, p.ModifiedAtUtc)
	require.NotNil(t, p.ModifiedByID)
	assert.Equal(t, "auth0|bob", *p.ModifiedByID)
}

func TestProductService_PatchEmptyNameRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "Laptop", "High performance laptop", "1999.99")
	before := f.stored(t, created.ID)

	_, err := f.service.PatchProduct(ctx, bob, created.ID, models.PatchProductRequest{
		Name:  str(""),
		Price: dec("5.00"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Errors[0].Field)

	after := f.stored(t, created.ID)
	assert.Equal(t, before, after)
}

func TestProductService_PatchProductJSON(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "Laptop", "High performance laptop", "1999.99")

	resp, err := f.service.PatchProductJSON(ctx, bob, created.ID, []byte(`[
		{"op":"test","path":"/name","value":"Laptop"},
		{"op":"replace","path":"/price","value":1899.5}
	]`))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1899.50").Equal(resp.Price))

	_, err = f.service.PatchProductJSON(ctx, bob, created.ID, []byte(`[{"op":"remove","path":"/name"}]`))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Laptop", f.stored(t, created.ID).Name)
}

func TestProductService_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := f.service.GetProductByID(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.UpdateProduct(ctx, alice, id, models.UpdateProductRequest{Name: "X", Price: dec("1.00")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.PatchProduct(ctx, alice, id, models.PatchProductRequest{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.PatchProductJSON(ctx, alice, id, []byte(`[]`))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.service.DeleteProduct(ctx, alice, id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	var nf *apperrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Product with Id '"+id.String()+"' was not found", nf.Error())
}

func TestProductService_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, "Laptop", "Fast", "999.99")
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Laptop", created.Name)
	assert.Equal(t, "Fast", created.Description)
	assert.True(t, decimal.RequireFromString("999.99").Equal(created.Price))

	got, err := f.service.GetProductByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Description, got.Description)
	assert.True(t, created.Price.Equal(got.Price))

	require.NoError(t, f.service.DeleteProduct(ctx, alice, created.ID))
	_, err = f.service.GetProductByID(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_CacheHit(t *testing.T) {
	cache := new(MockProductCache)
	f := newFixture(t, services.WithProductCache(cache))

	id := uuid.New()
	cached := &models.ProductResponse{ID: id, Name: "Cached", Price: decimal.RequireFromString("1.00")}
	cache.On("Get", mock.Anything, id).Return(cached, true, nil).Once()

	got, err := f.service.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Cached", got.Name)
	cache.AssertExpectations(t)
}

func TestProductService_CacheMissPopulates(t *testing.T) {
	cache := new(MockProductCache)
	f := newFixture(t, services.WithProductCache(cache))

	cache.On("Set", mock.Anything, mock.Anything).Return(nil).Once()
	created := f.create(t, "Monitor", "27-inch 4K monitor", "499.00")

	cache.On("Get", mock.Anything, created.ID).Return(nil, false, errors.New("redis down")).Once()
	cache.On("Fill", mock.Anything, mock.MatchedBy(func(r models.ProductResponse) bool {
		return r.ID == created.ID
	})).Return(nil).Once()

	got, err := f.service.GetProductByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Monitor", got.Name)
	cache.AssertExpectations(t)
}

func TestProductService_WritesGoThroughCacheAndPublish(t *testing.T) {
	cache := new(MockProductCache)
	publisher := new(MockEventPublisher)
	f := newFixture(t, services.WithProductCache(cache), services.WithEventPublisher(publisher))
	ctx := context.Background()

	cache.On("Set", mock.Anything, mock.MatchedBy(func(r models.ProductResponse) bool {
		return r.Name == "Headphones"
	})).Return(nil).Twice()
	cache.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()
	publisher.On("PublishProductEvent", mock.Anything, mock.MatchedBy(func(e models.ProductEvent) bool {
		return e.Type == models.ProductCreated && e.ActorID == "auth0|alice"
	})).Return(nil).Once()
	created := f.create(t, "Headphones", "Noise-cancelling headphones", "149.95")

	publisher.On("PublishProductEvent", mock.Anything, mock.MatchedBy(func(e models.ProductEvent) bool {
		return e.Type == models.ProductUpdated && e.ProductID == created.ID && e.ActorID == "auth0|bob"
	})).Return(errors.New("broker unavailable")).Once()
	_, err := f.service.PatchProduct(ctx, bob, created.ID, models.PatchProductRequest{Price: dec("129.95")})
	require.NoError(t, err, "publish failures never fail the request")

	publisher.On("PublishProductEvent", mock.Anything, mock.MatchedBy(func(e models.ProductEvent) bool {
		return e.Type == models.ProductDeleted && e.Product == nil
	})).Return(nil).Once()
	require.NoError(t, f.service.DeleteProduct(ctx, bob, created.ID))

	cache.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestProductService_FailedCommitSkipsSideEffects(t *testing.T) {
	cache := new(MockProductCache)
	publisher := new(MockEventPublisher)
	boom := errors.New("disk full")
	store := repositories.NewMemoryBackedStore(repositories.NewMemoryStore(),
		func(context.Context, models.Actor, []*repositories.Entry) error { return boom })
	service := services.NewProductService(store, validation.New(),
		services.WithProductCache(cache), services.WithEventPublisher(publisher))

	_, err := service.CreateProduct(context.Background(), alice, models.CreateProductRequest{Name: "Mouse", Price: dec("9.99")})
	assert.ErrorIs(t, err, boom)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishProductEvent", mock.Anything, mock.Anything)
}

// memoryCache follows the ProductCache contract: Fill only writes absent
// keys and Delete leaves a marker that blocks later fills.
type memoryCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.ProductResponse
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[uuid.UUID]*models.ProductResponse)}
}

func (c *memoryCache) Get(_ context.Context, id uuid.UUID) (*models.ProductResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[id]
	if !ok || resp == nil {
		return nil, false, nil
	}
	out := *resp
	return &out, true, nil
}

func (c *memoryCache) Fill(_ context.Context, resp models.ProductResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[resp.ID]; !ok {
		c.entries[resp.ID] = &resp
	}
	return nil
}

func (c *memoryCache) Set(_ context.Context, resp models.ProductResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[resp.ID] = &resp
	return nil
}

func (c *memoryCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = nil
	return nil
}

// expire drops id as if its TTL ran out.
func (c *memoryCache) expire(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// gatedProducts parks the next armed GetByID after it has read the row,
// until release is closed.
type gatedProducts struct {
	repositories.ProductRepository
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (g *gatedProducts) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := g.ProductRepository.GetByID(ctx, id)
	if g.armed.CompareAndSwap(true, false) {
		close(g.read)
		<-g.release
	}
	return p, err
}

func newGatedFixture(t *testing.T, cache services.ProductCache) (fixture, *gatedProducts) {
	t.Helper()
	mem := repositories.NewMemoryStore()
	gate := &gatedProducts{
		ProductRepository: mem.Products(),
		read:              make(chan struct{}),
		release:           make(chan struct{}),
	}
	store := repositories.NewStore(gate, mem.Users(), mem, audit.New().Hook())
	return fixture{
		store:   store,
		service: services.NewProductService(store, validation.New(), services.WithProductCache(cache)),
	}, gate
}

func TestProductService_MissDuringPatchKeepsFreshCache(t *testing.T) {
	cache := newMemoryCache()
	f, gate := newGatedFixture(t, cache)
	ctx := context.Background()

	created := f.create(t, "Old", "", "10.00")
	cache.expire(created.ID)

	gate.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := f.service.GetProductByID(ctx, created.ID)
		done <- err
	}()
	<-gate.read

	_, err := f.service.PatchProduct(ctx, bob, created.ID, models.PatchProductRequest{Name: str("New")})
	require.NoError(t, err)

	close(gate.release)
	require.NoError(t, <-done)

	got, err := f.service.GetProductByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
}

func TestProductService_MissDuringDeleteDoesNotResurrect(t *testing.T) {
	cache := newMemoryCache()
	f, gate := newGatedFixture(t, cache)
	ctx := context.Background()

	created := f.create(t, "Doomed", "", "10.00")
	cache.expire(created.ID)

	gate.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := f.service.GetProductByID(ctx, created.ID)
		done <- err
	}()
	<-gate.read

	require.NoError(t, f.service.DeleteProduct(ctx, bob, created.ID))

	close(gate.release)
	require.NoError(t, <-done)

	_, err := f.service.GetProductByID(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
