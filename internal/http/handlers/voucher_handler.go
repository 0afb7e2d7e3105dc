package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"shopline/internal/domain"
	applog "shopline/internal/log"
	"shopline/internal/repos"
	"shopline/internal/services"
	"shopline/internal/validate"

	"github.com/gofiber/fiber/v2"
)

// VoucherHandler is the admin CRUD surface for voucher definitions.
type VoucherHandler struct {
	Vouchers *services.VoucherService
}

type voucherBody struct {
	Code          string   `json:"code"`
	Type          string   `json:"type"`
	Value         float64  `json:"value"`
	MaxDiscount   *float64 `json:"maxDiscount"`
	MinOrderValue *float64 `json:"minOrderValue"`
	IsGlobal      *bool    `json:"isGlobal"`
	AllowedUsers  []string `json:"allowedUsers"`
	MaxTotalUsage *int     `json:"maxTotalUsage"`
	OncePerUser   bool     `json:"oncePerUser"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	Status        string   `json:"status"`
}

func (b voucherBody) toDomain(code string) (domain.Voucher, string) {
	if b.Type != domain.VoucherPercentage && b.Type != domain.VoucherFixed {
		return domain.Voucher{}, "type must be PERCENTAGE or FIXED"
	}
	if b.Value < 0 {
		return domain.Voucher{}, "value must not be negative"
	}
	if b.Type == domain.VoucherPercentage && b.Value > 100 {
		return domain.Voucher{}, "percentage value must not exceed 100"
	}
	for _, s := range []string{b.StartDate, b.EndDate} {
		if s == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return domain.Voucher{}, "dates must be RFC3339"
		}
	}
	status := b.Status
	if status == "" {
		status = domain.VoucherActive
	}
	if status != domain.VoucherActive && status != domain.VoucherDisabled {
		return domain.Voucher{}, "status must be ACTIVE or DISABLED"
	}

	isGlobal := true
	if b.IsGlobal != nil {
		isGlobal = *b.IsGlobal
	}
	allowed := ""
	if len(b.AllowedUsers) > 0 {
		raw, _ := json.Marshal(b.AllowedUsers)
		allowed = string(raw)
	}

	return domain.Voucher{
		Code:          code,
		Type:          b.Type,
		Value:         b.Value,
		MaxDiscount:   b.MaxDiscount,
		MinOrderValue: b.MinOrderValue,
		IsGlobal:      isGlobal,
		AllowedJSON:   allowed,
		MaxTotalUsage: b.MaxTotalUsage,
		OncePerUser:   b.OncePerUser,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		Status:        status,
	}, ""
}

func (h *VoucherHandler) List(c *fiber.Ctx) error {
	vouchers, err := h.Vouchers.List()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"vouchers": vouchers})
}

func (h *VoucherHandler) Get(c *fiber.Ctx) error {
	code, ok := validate.VoucherCode(c.Params("code"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad voucher code"})
	}
	v, err := h.Vouchers.Get(code)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "voucher not found"})
	}
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(v)
}

func (h *VoucherHandler) Create(c *fiber.Ctx) error {
	var body voucherBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	code, ok := validate.VoucherCode(body.Code)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad voucher code"})
	}
	v, msg := body.toDomain(code)
	if msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	err := h.Vouchers.Create(v)
	if errors.Is(err, repos.ErrCodeExists) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return fiber.ErrInternalServerError
	}

	applog.Audit(c, "voucher.created", map[string]any{"code": code})
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (h *VoucherHandler) Update(c *fiber.Ctx) error {
	code, ok := validate.VoucherCode(c.Params("code"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad voucher code"})
	}
	var body voucherBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	v, msg := body.toDomain(code)
	if msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	found, err := h.Vouchers.Update(v)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "voucher not found"})
	}

	applog.Audit(c, "voucher.updated", map[string]any{"code": code})
	return c.JSON(v)
}

func (h *VoucherHandler) Delete(c *fiber.Ctx) error {
	code, ok := validate.VoucherCode(c.Params("code"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad voucher code"})
	}
	found, err := h.Vouchers.Delete(code)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "voucher not found"})
	}

	applog.Audit(c, "voucher.deleted", map[string]any{"code": code})
	return c.JSON(fiber.Map{"ok": true})
}
