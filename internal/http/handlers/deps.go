package handlers

import (
	"shopline/internal/repos"
	"shopline/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth           *services.AuthService
	AuthHandler    *AuthHandler
	ProductHandler *ProductHandler
	CartHandler    *CartHandler
	OrderHandler   *OrderHandler
	VoucherHandler *VoucherHandler
}

// NewDeps wires repos, services and handlers. kick nudges the outbox
// dispatcher after state changes that enqueue events; pass nil in tests that
// drain the outbox by hand.
func NewDeps(db *sqlx.DB, kick func()) *Deps {
	userRepo := repos.NewUserRepo(db)
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	cartRepo := repos.NewCartRepo(db)
	voucherRepo := repos.NewVoucherRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	authSvc := services.NewAuthService(userRepo)
	voucherSvc := services.NewVoucherService(voucherRepo)
	cartSvc := services.NewCartService(cartRepo, prodRepo, invRepo, voucherSvc)
	checkoutSvc := services.NewCheckoutService(cartRepo, orderRepo, voucherSvc, kick)

	return &Deps{
		Auth:           authSvc,
		AuthHandler:    &AuthHandler{Auth: authSvc},
		ProductHandler: &ProductHandler{Products: prodRepo, Auth: authSvc},
		CartHandler:    &CartHandler{Cart: cartSvc},
		OrderHandler:   &OrderHandler{Checkout: checkoutSvc, Orders: orderRepo},
		VoucherHandler: &VoucherHandler{Vouchers: voucherSvc},
	}
}

// Register mounts the API surface.
func (d *Deps) Register(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/auth/login", d.AuthHandler.Login)
	api.Post("/auth/logout", d.AuthHandler.Logout)
	api.Get("/auth/me", RequireUser(d.Auth), d.AuthHandler.Me)

	api.Get("/products", d.ProductHandler.List)
	api.Get("/products/:ref", d.ProductHandler.Get)

	user := RequireUser(d.Auth)
	api.Get("/cart", user, d.CartHandler.View)
	api.Post("/cart/items", user, d.CartHandler.AddItem)
	api.Put("/cart/items/:ref", user, d.CartHandler.UpdateItem)
	api.Delete("/cart/items/:ref", user, d.CartHandler.RemoveItem)
	api.Post("/cart/voucher", user, d.CartHandler.ApplyVoucher)
	api.Delete("/cart/voucher", user, d.CartHandler.RemoveVoucher)
	api.Post("/orders", user, d.OrderHandler.Place)
	api.Get("/orders", user, d.OrderHandler.History)
	api.Get("/orders/:id", user, d.OrderHandler.Get)

	admin := api.Group("/admin", RequireAdmin(d.Auth))
	admin.Get("/orders", d.OrderHandler.ListLatest)
	admin.Put("/orders/:id/status", d.OrderHandler.UpdateStatus)
	admin.Get("/vouchers", d.VoucherHandler.List)
	admin.Post("/vouchers", d.VoucherHandler.Create)
	admin.Get("/vouchers/:code", d.VoucherHandler.Get)
	admin.Put("/vouchers/:code", d.VoucherHandler.Update)
	admin.Delete("/vouchers/:code", d.VoucherHandler.Delete)
	admin.Put("/products/:id/stock", d.ProductHandler.SetStock)
}
