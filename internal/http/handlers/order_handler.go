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

type OrderHandler struct {
	Checkout *services.CheckoutService
	Orders   *repos.OrderRepo
}

func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var body struct {
		DeliveryAddress string `json:"deliveryAddress"`
		PaymentMethod   string `json:"paymentMethod"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	address, ok := validate.Address(body.DeliveryAddress)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": services.ErrMissingAddress.Error()})
	}

	u := currentUser(c)
	order, err := h.Checkout.PlaceOrder(u.ID, address, validate.PaymentMethod(body.PaymentMethod))
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrVoucherRejected):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		applog.Error(c, "checkout.failed", err, map[string]any{"user": u.ID})
		return fiber.ErrInternalServerError
	}

	applog.Audit(c, "checkout.ok", map[string]any{"user": u.ID, "order": order.ID})
	return c.Status(fiber.StatusCreated).JSON(order)
}

// History lists the caller's orders, optionally limited to the last N days.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad days value"})
		}
		days = n
	}

	orders, err := h.Orders.ListByUser(currentUser(c).ID, days)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// Get returns one order with its lines; owners and admins only.
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad order id"})
	}

	order, items, err := h.Orders.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	if err != nil {
		return fiber.ErrInternalServerError
	}

	u := currentUser(c)
	if order.UserID != u.ID && !u.IsAdmin() {
		applog.Security(c, "order.access.denied", map[string]any{"user": u.ID, "order": id})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}

	return c.JSON(fiber.Map{"order": order, "items": items})
}

// ListLatest is the admin overview feed.
func (h *OrderHandler) ListLatest(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	orders, err := h.Orders.ListLatest(limit)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// UpdateStatus is the operator path that advances an order and fires the
// order-updated signal.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad order id"})
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || !domain.ValidStatus(body.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad status"})
	}

	err := h.Orders.UpdateStatusTx(id, body.Status)
	if errors.Is(err, repos.ErrOrderNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	if err != nil {
		return fiber.ErrInternalServerError
	}

	if h.Checkout.Kick != nil {
		h.Checkout.Kick()
	}
	applog.Audit(c, "order.status.updated", map[string]any{"order": id, "status": body.Status})
	return c.JSON(fiber.Map{"id": id, "status": body.Status})
}
