package handlers

import (
	"encoding/json"
	"mime"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"productapi/internal/apperrors"
	"productapi/internal/middleware"
	"productapi/internal/models"
	"productapi/internal/services"
	"productapi/internal/validation"
)

// Content types accepted by PATCH.
const (
	MIMEMergePatchJSON = "application/merge-patch+json"
	MIMEJSONPatchJSON  = "application/json-patch+json"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validation.Validator
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, v *validation.Validator) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: v,
	}
}

// RegisterRoutes registers the product routes. readGuards run in front of the
// read endpoints only.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, readGuards ...fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", guarded(readGuards, h.HandleGetProducts)...)
	productRoutes.Get("/:id", guarded(readGuards, h.HandleGetProductByID)...)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Patch("/:id", h.HandlePatchProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

func guarded(guards []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, h)
}

// HandleGetProducts retrieves all products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	product, err := h.service.GetProductByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product and points Location at it.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req models.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	product, err := h.service.CreateProduct(c.UserContext(), middleware.ActorFrom(c), req)
	if err != nil {
		return err
	}
	c.Location(strings.TrimSuffix(c.Path(), "/") + "/" + product.ID.String())
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	var req models.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	product, err := h.service.UpdateProduct(c.UserContext(), middleware.ActorFrom(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandlePatchProduct accepts either a merge patch or an RFC 6902 JSON Patch
// document, chosen by Content-Type.
func (h *ProductHandler) HandlePatchProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	var product models.ProductResponse
	switch mediaType(c.Get(fiber.HeaderContentType)) {
	case MIMEJSONPatchJSON:
		product, err = h.service.PatchProductJSON(c.UserContext(), middleware.ActorFrom(c), id, c.Body())
	case fiber.MIMEApplicationJSON, MIMEMergePatchJSON, "":
		var req models.PatchProductRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return invalidBody(err)
		}
		if err := h.validate.Struct(req); err != nil {
			return err
		}
		product, err = h.service.PatchProduct(c.UserContext(), middleware.ActorFrom(c), id, req)
	default:
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "Content-Type must be application/json, "+MIMEMergePatchJSON+" or "+MIMEJSONPatchJSON)
	}
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteProduct(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func productID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("id", "uuid", "id must be a valid UUID")
	}
	return id, nil
}

func invalidBody(err error) error {
	return apperrors.NewValidation("body", "json", "request body is not valid JSON: "+err.Error())
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}
