package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"shopline/internal/http/handlers"
	"shopline/internal/repos"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	app := fiber.New()
	handlers.NewDeps(db, nil).Register(app)
	return app
}

func jsonReq(method, target, sid, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return req
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp, err := app.Test(jsonReq("POST", "/api/v1/auth/login", "",
		`{"email":"`+email+`","password":"Passw0rd!"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("login failed with %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			return c.Value
		}
	}
	t.Fatal("no sid cookie set")
	return ""
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("bad json %s: %v", raw, err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(jsonReq("POST", "/api/v1/auth/login", "",
		`{"email":"alice@shopline.test","password":"wrong-password"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestCartRequiresLogin(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/cart", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRejectPlainUsers(t *testing.T) {
	app := newApp(t)
	sid := login(t, app, "alice@shopline.test")

	resp, err := app.Test(jsonReq("GET", "/api/v1/admin/vouchers", sid, ""))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 403 {
		t.Fatalf("want 403, got %d", resp.StatusCode)
	}
}

func TestShoppingFlowEndToEnd(t *testing.T) {
	app := newApp(t)
	alice := login(t, app, "alice@shopline.test")

	// Add two french presses: 2 x 24.50.
	resp, err := app.Test(jsonReq("POST", "/api/v1/cart/items", alice,
		`{"product":"french-press","quantity":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("add item: want 200, got %d", resp.StatusCode)
	}
	var cart struct {
		Items   []struct{ Quantity int }
		Total   float64 `json:"totalPrice"`
		Savings float64 `json:"savings"`
		After   float64 `json:"totalPriceAfterCode"`
	}
	decode(t, resp, &cart)
	if len(cart.Items) != 1 || cart.Total != 49.00 {
		t.Fatalf("bad cart: %+v", cart)
	}

	// Voucher codes normalize to upper case on the way in.
	resp, err = app.Test(jsonReq("POST", "/api/v1/cart/voucher", alice, `{"code":"save5"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("apply voucher: want 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &cart)
	if cart.Savings != 5 || cart.After != 44.00 {
		t.Fatalf("bad voucher math: %+v", cart)
	}

	// Checkout.
	resp, err = app.Test(jsonReq("POST", "/api/v1/orders", alice,
		`{"deliveryAddress":"1 Test Lane","paymentMethod":"CARD"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("checkout: want 201, got %d", resp.StatusCode)
	}
	var order struct {
		ID     string
		Status string
	}
	decode(t, resp, &order)
	if order.ID == "" || order.Status != "PENDING" {
		t.Fatalf("bad order: %+v", order)
	}

	// The owner sees the order; another shopper gets a 404, not a 403.
	resp, err = app.Test(jsonReq("GET", "/api/v1/orders/"+order.ID, alice, ""))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("owner read: want 200, got %d", resp.StatusCode)
	}

	bob := login(t, app, "bob@shopline.test")
	resp, err = app.Test(jsonReq("GET", "/api/v1/orders/"+order.ID, bob, ""))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("foreign read: want 404, got %d", resp.StatusCode)
	}

	// An operator moves the order along.
	admin := login(t, app, "admin@shopline.test")
	resp, err = app.Test(jsonReq("PUT", "/api/v1/admin/orders/"+order.ID+"/status", admin,
		`{"status":"SHIPPED"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status update: want 200, got %d", resp.StatusCode)
	}

	resp, err = app.Test(jsonReq("GET", "/api/v1/orders/"+order.ID, alice, ""))
	if err != nil {
		t.Fatal(err)
	}
	var detail struct {
		Order struct{ Status string } `json:"order"`
	}
	decode(t, resp, &detail)
	if detail.Order.Status != "SHIPPED" {
		t.Fatalf("want SHIPPED, got %+v", detail)
	}
}

func TestAdminVoucherCRUD(t *testing.T) {
	app := newApp(t)
	admin := login(t, app, "admin@shopline.test")

	resp, err := app.Test(jsonReq("POST", "/api/v1/admin/vouchers", admin,
		`{"code":"spring20","type":"PERCENTAGE","value":20,"maxDiscount":10}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("create: want 201, got %d", resp.StatusCode)
	}

	// Duplicate create conflicts.
	resp, err = app.Test(jsonReq("POST", "/api/v1/admin/vouchers", admin,
		`{"code":"SPRING20","type":"PERCENTAGE","value":20}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("duplicate create: want 409, got %d", resp.StatusCode)
	}

	resp, err = app.Test(jsonReq("PUT", "/api/v1/admin/vouchers/SPRING20", admin,
		`{"type":"PERCENTAGE","value":25,"status":"DISABLED"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("update: want 200, got %d", resp.StatusCode)
	}

	resp, err = app.Test(jsonReq("GET", "/api/v1/admin/vouchers/SPRING20", admin, ""))
	if err != nil {
		t.Fatal(err)
	}
	var v struct {
		Value  float64
		Status string
	}
	decode(t, resp, &v)
	if v.Value != 25 || v.Status != "DISABLED" {
		t.Fatalf("update not applied: %+v", v)
	}

	resp, err = app.Test(jsonReq("DELETE", "/api/v1/admin/vouchers/SPRING20", admin, ""))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("delete: want 200, got %d", resp.StatusCode)
	}
	resp, err = app.Test(jsonReq("GET", "/api/v1/admin/vouchers/SPRING20", admin, ""))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("read after delete: want 404, got %d", resp.StatusCode)
	}
}

func TestAdminRestockMakesProductPurchasable(t *testing.T) {
	app := newApp(t)
	admin := login(t, app, "admin@shopline.test")

	// pour-over-scale starts with zero stock.
	resp, err := app.Test(jsonReq("PUT", "/api/v1/admin/products/p-scale/stock", admin,
		`{"stock":5,"available":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("restock: want 200, got %d", resp.StatusCode)
	}

	alice := login(t, app, "alice@shopline.test")
	resp, err = app.Test(jsonReq("POST", "/api/v1/cart/items", alice,
		`{"product":"pour-over-scale","quantity":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("add after restock: want 200, got %d", resp.StatusCode)
	}
}
