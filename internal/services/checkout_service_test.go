package services_test

import (
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	"shopline/internal/domain"
	"shopline/internal/repos"
	"shopline/internal/services"
)

type checkoutFixture struct {
	cart     *services.CartService
	checkout *services.CheckoutService
	orders   *repos.OrderRepo
	outbox   *repos.OutboxRepo
	vouchers *repos.VoucherRepo
	products *repos.ProductRepo
}

func newCheckoutFixture(t *testing.T) checkoutFixture {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	cartRepo := repos.NewCartRepo(db)
	voucherRepo := repos.NewVoucherRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	voucherSvc := services.NewVoucherService(voucherRepo)

	return checkoutFixture{
		cart:     services.NewCartService(cartRepo, prodRepo, invRepo, voucherSvc),
		checkout: services.NewCheckoutService(cartRepo, orderRepo, voucherSvc, nil),
		orders:   orderRepo,
		outbox:   repos.NewOutboxRepo(db),
		vouchers: voucherRepo,
		products: prodRepo,
	}
}

func TestCheckoutRejectsEmptyCartAndMissingAddress(t *testing.T) {
	f := newCheckoutFixture(t)

	if _, err := f.checkout.PlaceOrder("u-alice", "", "CASH"); !errors.Is(err, services.ErrMissingAddress) {
		t.Fatalf("want missing address, got %v", err)
	}
	if _, err := f.checkout.PlaceOrder("u-alice", "1 Test Lane", "CASH"); !errors.Is(err, services.ErrEmptyCart) {
		t.Fatalf("want empty cart, got %v", err)
	}
}

func TestCheckoutSnapshotsCartAndClearsIt(t *testing.T) {
	f := newCheckoutFixture(t)

	if _, err := f.cart.AddItem("u-alice", "stovetop-kettle", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := f.cart.ApplyVoucher("u-alice", "WELCOME10"); err != nil {
		t.Fatal(err)
	}

	order, err := f.checkout.PlaceOrder("u-alice", "1 Test Lane", "CARD")
	if err != nil {
		t.Fatal(err)
	}
	// 79.80 minus 10% = 7.98 off, under the 15 cap.
	if !approx(order.TotalPrice, 79.80) || !approx(order.Savings, 7.98) || !approx(order.TotalAfterCode, 71.82) {
		t.Fatalf("bad order totals: %+v", order)
	}
	if order.Status != domain.StatusPending {
		t.Fatalf("new order must be PENDING, got %s", order.Status)
	}

	// The cart is cleared but still readable.
	cart, err := f.cart.View("u-alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(cart.Items) != 0 || cart.VoucherCode != "" || !approx(cart.TotalPrice, 0) {
		t.Fatalf("cart should be empty after checkout: %+v", cart)
	}

	// The snapshot keeps the price paid even after a repricing.
	if err := f.products.SetStock("p-kettle", 99, true); err != nil {
		t.Fatal(err)
	}
	got, items, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !approx(items[0].Price, 39.90) {
		t.Fatalf("snapshot price drifted: %+v", items)
	}
	if got.CustomerEmail == "" {
		t.Fatal("order should carry the customer email")
	}

	// Voucher usage was consumed atomically with the order.
	v, err := f.vouchers.ByCode("WELCOME10")
	if err != nil {
		t.Fatal(err)
	}
	if v.UsedCount != 1 {
		t.Fatalf("want used_count 1, got %d", v.UsedCount)
	}
}

func TestCheckoutWritesOutboxTrigger(t *testing.T) {
	f := newCheckoutFixture(t)

	if _, err := f.cart.AddItem("u-alice", "french-press", 1); err != nil {
		t.Fatal(err)
	}
	order, err := f.checkout.PlaceOrder("u-alice", "1 Test Lane", "CASH")
	if err != nil {
		t.Fatal(err)
	}

	rows, err := f.outbox.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Topic != repos.TopicOrderCreated || rows[0].OrderID != order.ID {
		t.Fatalf("want one order.created row, got %+v", rows)
	}
}

func TestCheckoutOncePerUserVoucher(t *testing.T) {
	f := newCheckoutFixture(t)

	if _, err := f.cart.AddItem("u-alice", "stovetop-kettle", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.cart.ApplyVoucher("u-alice", "WELCOME10"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.checkout.PlaceOrder("u-alice", "1 Test Lane", "CASH"); err != nil {
		t.Fatal(err)
	}

	// The same user cannot attach the once-per-user code a second time.
	if _, err := f.cart.AddItem("u-alice", "stovetop-kettle", 1); err != nil {
		t.Fatal(err)
	}
	_, err := f.cart.ApplyVoucher("u-alice", "WELCOME10")
	if !errors.Is(err, services.ErrVoucherRejected) {
		t.Fatalf("want once-per-user rejection, got %v", err)
	}
}

func TestCheckoutReValidatesVoucherCap(t *testing.T) {
	f := newCheckoutFixture(t)

	one := 1
	if err := f.vouchers.Create(domain.Voucher{
		Code: "LAST1", Type: domain.VoucherFixed, Value: 2,
		IsGlobal: true, MaxTotalUsage: &one, Status: domain.VoucherActive,
	}); err != nil {
		t.Fatal(err)
	}

	// Two shoppers both hold the voucher in their carts.
	for _, user := range []string{"u-alice", "u-bob"} {
		if _, err := f.cart.AddItem(user, "french-press", 1); err != nil {
			t.Fatal(err)
		}
		if _, err := f.cart.ApplyVoucher(user, "LAST1"); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.checkout.PlaceOrder("u-alice", "1 Test Lane", "CASH"); err != nil {
		t.Fatal(err)
	}
	_, err := f.checkout.PlaceOrder("u-bob", "2 Test Lane", "CASH")
	if !errors.Is(err, services.ErrVoucherRejected) {
		t.Fatalf("second checkout must lose the cap race, got %v", err)
	}

	// Bob's cart survived the failed checkout untouched apart from totals.
	cart, err := f.cart.View("u-bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("failed checkout must not clear the cart: %+v", cart)
	}
}

func TestConcurrentCheckoutsRespectVoucherCap(t *testing.T) {
	f := newCheckoutFixture(t)

	one := 1
	if err := f.vouchers.Create(domain.Voucher{
		Code: "LAST1", Type: domain.VoucherFixed, Value: 2,
		IsGlobal: true, MaxTotalUsage: &one, Status: domain.VoucherActive,
	}); err != nil {
		t.Fatal(err)
	}

	users := []string{"u-alice", "u-bob"}
	for _, user := range users {
		if _, err := f.cart.AddItem(user, "french-press", 1); err != nil {
			t.Fatal(err)
		}
		if _, err := f.cart.ApplyVoucher(user, "LAST1"); err != nil {
			t.Fatal(err)
		}
	}

	// Both shoppers race PlaceOrder for the single remaining slot.
	var g errgroup.Group
	results := make([]error, len(users))
	for n, user := range users {
		n, user := n, user
		g.Go(func() error {
			_, err := f.checkout.PlaceOrder(user, "1 Test Lane", "CASH")
			results[n] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	wins, rejections := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, services.ErrVoucherRejected):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || rejections != 1 {
		t.Fatalf("want 1 win / 1 rejection, got %d/%d", wins, rejections)
	}

	v, err := f.vouchers.ByCode("LAST1")
	if err != nil {
		t.Fatal(err)
	}
	if v.UsedCount != 1 {
		t.Fatalf("want used_count 1, got %d", v.UsedCount)
	}
}
