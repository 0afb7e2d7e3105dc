package services

import (
	"errors"
	"fmt"

	"shopline/internal/domain"
	"shopline/internal/metrics"
	"shopline/internal/repos"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingAddress = errors.New("delivery address is required")
)

// CheckoutService turns a cart into an order in one atomic database unit:
// order insert, cart clear, conditional voucher usage increment and the saga
// trigger all commit together or not at all.
type CheckoutService struct {
	Carts    *repos.CartRepo
	Orders   *repos.OrderRepo
	Vouchers *VoucherService

	// Kick nudges the outbox dispatcher after a commit so the saga starts
	// without waiting a full poll interval. Optional.
	Kick func()
}

func NewCheckoutService(carts *repos.CartRepo, orders *repos.OrderRepo,
	vouchers *VoucherService, kick func()) *CheckoutService {
	return &CheckoutService{Carts: carts, Orders: orders, Vouchers: vouchers, Kick: kick}
}

// PlaceOrder snapshots the cart into a new PENDING order. The voucher is
// re-evaluated here regardless of what the cart claims; the stored savings
// figure is never trusted at checkout time.
func (s *CheckoutService) PlaceOrder(userID, address, paymentMethod string) (domain.Order, error) {
	if address == "" {
		return domain.Order{}, ErrMissingAddress
	}

	cart, err := s.Carts.Get(userID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(cart.Items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}

	total := itemsTotal(cart.Items)
	savings := 0.0
	code := cart.VoucherCode
	if code != "" {
		ev, err := s.Vouchers.Check(code, total, userID)
		if err != nil {
			return domain.Order{}, err
		}
		if !ev.OK {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrVoucherRejected, ev.Reason)
		}
		savings = ev.Discount
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		TotalPrice:      total,
		VoucherCode:     code,
		Savings:         savings,
		TotalAfterCode:  round2(total - savings),
		DeliveryAddress: address,
		PaymentMethod:   paymentMethod,
		Status:          domain.StatusPending,
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, domain.OrderItem{
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	if err := s.Orders.CreateTx(order, items); err != nil {
		if errors.Is(err, repos.ErrVoucherExhausted) {
			metrics.VoucherRejections.WithLabelValues(ReasonUsageCap).Inc()
			return domain.Order{}, fmt.Errorf("%w: %s", ErrVoucherRejected, ReasonUsageCap)
		}
		return domain.Order{}, err
	}

	metrics.OrdersCreated.Inc()
	if s.Kick != nil {
		s.Kick()
	}
	return order, nil
}
