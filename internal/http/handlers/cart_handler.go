package handlers

import (
	"errors"

	"shopline/internal/repos"
	"shopline/internal/services"
	"shopline/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cart, err := h.Cart.View(currentUser(c).ID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(cart)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var body struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	ref, ok := validate.ID(body.Product)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "product reference required"})
	}
	cart, err := h.Cart.AddItem(currentUser(c).ID, ref, validate.AddQty(body.Quantity))
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	ref, ok := validate.ID(c.Params("ref"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad product reference"})
	}
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := c.BodyParser(&body); err != nil || body.Quantity == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity required"})
	}
	qty, ok := validate.UpdateQty(*body.Quantity)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity out of range"})
	}

	cart, err := h.Cart.UpdateItem(currentUser(c).ID, ref, qty)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	ref, ok := validate.ID(c.Params("ref"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad product reference"})
	}
	cart, err := h.Cart.RemoveItem(currentUser(c).ID, ref)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) ApplyVoucher(c *fiber.Ctx) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	code, ok := validate.VoucherCode(body.Code)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad voucher code"})
	}

	cart, err := h.Cart.ApplyVoucher(currentUser(c).ID, code)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) RemoveVoucher(c *fiber.Ctx) error {
	cart, err := h.Cart.RemoveVoucher(currentUser(c).ID)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(cart)
}

// cartError maps service failures onto stable client-facing statuses.
func cartError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrProductUnavailable),
		errors.Is(err, repos.ErrInsufficientStock),
		errors.Is(err, services.ErrItemNotInCart):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrVoucherRejected):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		return fiber.ErrInternalServerError
	}
}
