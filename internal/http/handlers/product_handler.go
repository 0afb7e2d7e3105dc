package handlers

import (
	"database/sql"
	"errors"
	"strconv"

	"shopline/internal/domain"
	applog "shopline/internal/log"
	"shopline/internal/repos"
	"shopline/internal/services"
	"shopline/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Products *repos.ProductRepo
	Auth     *services.AuthService
}

func (h *ProductHandler) callerIsAdmin(c *fiber.Ctx) bool {
	u, _ := h.Auth.CurrentUser(c.Cookies("sid"))
	return u != nil && u.IsAdmin()
}

// redact hides the raw stock figure from plain shoppers; they only see
// whether the product can be bought right now.
func redact(p domain.Product, admin bool) domain.Product {
	if admin {
		return p
	}
	p.Available = p.Purchasable()
	p.Stock = 0
	return p
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	products, err := h.Products.List(limit, offset)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	admin := h.callerIsAdmin(c)
	for i := range products {
		products[i] = redact(products[i], admin)
	}
	return c.JSON(fiber.Map{"products": products})
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	ref, ok := validate.ID(c.Params("ref"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad product reference"})
	}
	p, err := h.Products.ByIDOrSlug(ref)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(redact(p, h.callerIsAdmin(c)))
}

// SetStock is the admin restock/override endpoint.
func (h *ProductHandler) SetStock(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad product id"})
	}
	var body struct {
		Stock     *int  `json:"stock"`
		Available *bool `json:"available"`
	}
	if err := c.BodyParser(&body); err != nil || body.Stock == nil || *body.Stock < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "stock required"})
	}

	p, err := h.Products.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	if err != nil {
		return fiber.ErrInternalServerError
	}

	available := p.Available
	if body.Available != nil {
		available = *body.Available
	}
	if err := h.Products.SetStock(id, *body.Stock, available); err != nil {
		return fiber.ErrInternalServerError
	}

	applog.Audit(c, "product.stock.set", map[string]any{"product": id, "stock": *body.Stock, "available": available})
	p.Stock = *body.Stock
	p.Available = available
	return c.JSON(p)
}
