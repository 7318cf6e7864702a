package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"productapi/internal/logger"
	"productapi/internal/merge"
	"productapi/internal/models"
	"productapi/internal/repositories"
	"productapi/internal/validation"
)

// ProductCache is the cache in front of product lookups. Committed writes go
// through Set and Delete; misses are filled with Fill, which must never
// replace an existing entry or a deletion marker.
type ProductCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ProductResponse, bool, error)
	Fill(ctx context.Context, resp models.ProductResponse) error
	Set(ctx context.Context, resp models.ProductResponse) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventPublisher receives product events after a successful commit.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event models.ProductEvent) error
}

// ProductService handles business logic related to products.
type ProductService struct {
	store     *repositories.Store
	validator *validation.Validator
	merger    *merge.Engine
	cache     ProductCache
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
	sfGroup   singleflight.Group
}

// ProductServiceOption configures optional collaborators.
type ProductServiceOption func(*ProductService)

// WithProductCache enables the read-through cache.
func WithProductCache(c ProductCache) ProductServiceOption {
	return func(s *ProductService) { s.cache = c }
}

// WithEventPublisher enables product events.
func WithEventPublisher(p EventPublisher) ProductServiceOption {
	return func(s *ProductService) { s.publisher = p }
}

// WithProductLogger sets the logger. Defaults to a no-op logger.
func WithProductLogger(l *logger.Logger) ProductServiceOption {
	return func(s *ProductService) { s.log = l }
}

// NewProductService creates a new ProductService.
func NewProductService(store *repositories.Store, v *validation.Validator, opts ...ProductServiceOption) *ProductService {
	s := &ProductService{
		store:     store,
		validator: v,
		merger:    merge.NewEngine(v),
		log:       logger.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAllProducts retrieves all products. The result is never nil.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.ProductResponse, error) {
	products, err := s.store.Products().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all products: %w", err)
	}
	out := make([]models.ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, models.NewProductResponse(&products[i]))
	}
	return out, nil
}

// GetProductByID retrieves a single product, going through the cache when one
// is configured. Concurrent misses for the same id share one store read.
func (s *ProductService) GetProductByID(ctx context.Context, id uuid.UUID) (models.ProductResponse, error) {
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn("product cache read failed", "product_id", id, "error", err)
		}
		if found {
			return *cached, nil
		}
	}

	val, err, _ := s.sfGroup.Do(id.String(), func() (any, error) {
		return s.store.Products().GetByID(ctx, id)
	})
	if err != nil {
		return models.ProductResponse{}, fmt.Errorf("get product: %w", err)
	}
	resp := models.NewProductResponse(val.(*models.Product))

	if s.cache != nil {
		if err := s.cache.Fill(ctx, resp); err != nil {
			s.log.Warn("product cache fill failed", "product_id", id, "error", err)
		}
	}
	return resp, nil
}

// CreateProduct validates req, stages a new product and commits it.
func (s *ProductService) CreateProduct(ctx context.Context, actor models.Actor, req models.CreateProductRequest) (models.ProductResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ProductResponse{}, err
	}
	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
	}
	if err := s.validator.Struct(product); err != nil {
		return models.ProductResponse{}, err
	}

	uow := s.store.Begin(actor)
	uow.AddProduct(product)
	if _, err := uow.Commit(ctx); err != nil {
		return models.ProductResponse{}, fmt.Errorf("create product: %w", err)
	}

	resp := models.NewProductResponse(product)
	s.afterCommit(ctx, models.ProductCreated, actor, product.ID, &resp)
	return resp, nil
}

// UpdateProduct replaces every mutable field of the product with id.
func (s *ProductService) UpdateProduct(ctx context.Context, actor models.Actor, id uuid.UUID, req models.UpdateProductRequest) (models.ProductResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ProductResponse{}, err
	}

	uow := s.store.Begin(actor)
	product, err := uow.FindProduct(ctx, id)
	if err != nil {
		return models.ProductResponse{}, fmt.Errorf("update product: %w", err)
	}
	product.Name = req.Name
	product.Description = req.Description
	product.Price = *req.Price
	if err := s.validator.Struct(product); err != nil {
		return models.ProductResponse{}, err
	}

	return s.commitUpdate(ctx, uow, product)
}

// PatchProduct applies a sparse change-set to the product with id. An empty
// change-set still commits and refreshes the modification stamp.
func (s *ProductService) PatchProduct(ctx context.Context, actor models.Actor, id uuid.UUID, req models.PatchProductRequest) (models.ProductResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ProductResponse{}, err
	}

	uow := s.store.Begin(actor)
	product, err := uow.FindProduct(ctx, id)
	if err != nil {
		return models.ProductResponse{}, fmt.Errorf("patch product: %w", err)
	}
	return s.mergeAndCommit(ctx, uow, product, req)
}

// PatchProductJSON applies an RFC 6902 document to the product with id.
func (s *ProductService) PatchProductJSON(ctx context.Context, actor models.Actor, id uuid.UUID, ops []byte) (models.ProductResponse, error) {
	uow := s.store.Begin(actor)
	product, err := uow.FindProduct(ctx, id)
	if err != nil {
		return models.ProductResponse{}, fmt.Errorf("patch product: %w", err)
	}

	req, err := merge.FromJSONPatch(*product, ops)
	if err != nil {
		return models.ProductResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return models.ProductResponse{}, err
	}
	return s.mergeAndCommit(ctx, uow, product, req)
}

// DeleteProduct removes the product with id.
func (s *ProductService) DeleteProduct(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	uow := s.store.Begin(actor)
	product, err := uow.FindProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if err := uow.RemoveProduct(product); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if _, err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.afterCommit(ctx, models.ProductDeleted, actor, id, nil)
	return nil
}

func (s *ProductService) mergeAndCommit(ctx context.Context, uow *repositories.UnitOfWork, product *models.Product, req models.PatchProductRequest) (models.ProductResponse, error) {
	if _, err := s.merger.Merge(product, req); err != nil {
		return models.ProductResponse{}, err
	}
	return s.commitUpdate(ctx, uow, product)
}

func (s *ProductService) commitUpdate(ctx context.Context, uow *repositories.UnitOfWork, product *models.Product) (models.ProductResponse, error) {
	if err := uow.UpdateProduct(product); err != nil {
		return models.ProductResponse{}, fmt.Errorf("update product: %w", err)
	}
	if _, err := uow.Commit(ctx); err != nil {
		return models.ProductResponse{}, fmt.Errorf("update product: %w", err)
	}

	resp := models.NewProductResponse(product)
	s.afterCommit(ctx, models.ProductUpdated, uow.Actor(), product.ID, &resp)
	return resp, nil
}

// afterCommit writes the committed state through to the cache and announces
// the change. Neither step can fail the request; the write is already durable.
// A nil resp means the product was deleted.
func (s *ProductService) afterCommit(ctx context.Context, eventType string, actor models.Actor, id uuid.UUID, resp *models.ProductResponse) {
	log := s.log.With("product_id", id, "event", eventType)

	if s.cache != nil {
		if resp != nil {
			if err := s.cache.Set(ctx, *resp); err != nil {
				log.Warn("product cache write failed", "error", err)
			}
		} else if err := s.cache.Delete(ctx, id); err != nil {
			log.Warn("product cache invalidation failed", "error", err)
		}
	}
	if s.publisher != nil {
		event := models.ProductEvent{
			Type:       eventType,
			ProductID:  id,
			ActorID:    models.ResolveActorID(actor),
			OccurredAt: s.now().UTC(),
			Product:    resp,
		}
		if err := s.publisher.PublishProductEvent(ctx, event); err != nil {
			log.Warn("product event publish failed", "error", err)
		}
	}
	log.Debug("product committed")
}
