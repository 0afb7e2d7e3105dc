package services

import (
	"database/sql"
	"errors"
	"fmt"

	"shopline/internal/domain"
	applog "shopline/internal/log"
	"shopline/internal/metrics"
	"shopline/internal/repos"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrItemNotInCart      = errors.New("item not in cart")
	ErrVoucherRejected    = errors.New("voucher rejected")
)

// CartService owns every cart mutation. Each mutation reworks the whole
// document and stores it in one replace, so a failed mutation leaves the
// stored cart exactly as it was.
type CartService struct {
	Carts     *repos.CartRepo
	Products  *repos.ProductRepo
	Inventory *repos.InventoryRepo
	Vouchers  *VoucherService
}

func NewCartService(carts *repos.CartRepo, products *repos.ProductRepo,
	inventory *repos.InventoryRepo, vouchers *VoucherService) *CartService {
	return &CartService{Carts: carts, Products: products, Inventory: inventory, Vouchers: vouchers}
}

func (s *CartService) View(userID string) (domain.Cart, error) {
	return s.Carts.Get(userID)
}

// AddItem reserves qty units first and only then rewrites the cart; when the
// rewrite fails the reservation is handed back.
func (s *CartService) AddItem(userID, ref string, qty int) (domain.Cart, error) {
	p, err := s.Products.ByIDOrSlug(ref)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}
	if !p.Purchasable() {
		return domain.Cart{}, ErrProductUnavailable
	}

	cart, err := s.Carts.Get(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	if _, err := s.Inventory.Reserve(p.ID, qty); err != nil {
		if errors.Is(err, repos.ErrInsufficientStock) {
			metrics.StockConflicts.Inc()
		}
		return domain.Cart{}, err
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == p.ID {
			cart.Items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: p.ID,
			Slug:      p.Slug,
			Title:     p.Title,
			Quantity:  qty,
			Price:     p.Price,
		})
	}

	if err := s.store(&cart); err != nil {
		_ = s.Inventory.Release(p.ID, qty)
		return domain.Cart{}, err
	}
	return cart, nil
}

// UpdateItem sets the line quantity. Zero removes the line. Increases reserve
// the delta up front; decreases release it only after the rewrite committed.
func (s *CartService) UpdateItem(userID, ref string, qty int) (domain.Cart, error) {
	if qty == 0 {
		return s.RemoveItem(userID, ref)
	}

	p, err := s.Products.ByIDOrSlug(ref)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.Carts.Get(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == p.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Cart{}, ErrItemNotInCart
	}

	delta := qty - cart.Items[idx].Quantity
	if delta > 0 {
		if _, err := s.Inventory.Reserve(p.ID, delta); err != nil {
			if errors.Is(err, repos.ErrInsufficientStock) {
				metrics.StockConflicts.Inc()
			}
			return domain.Cart{}, err
		}
	}
	cart.Items[idx].Quantity = qty

	if err := s.store(&cart); err != nil {
		if delta > 0 {
			_ = s.Inventory.Release(p.ID, delta)
		}
		return domain.Cart{}, err
	}
	if delta < 0 {
		s.releaseCommitted(p.ID, -delta)
	}
	return cart, nil
}

// RemoveItem drops the line and returns its units to stock after the rewrite
// committed.
func (s *CartService) RemoveItem(userID, ref string) (domain.Cart, error) {
	p, err := s.Products.ByIDOrSlug(ref)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.Carts.Get(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	released := 0
	kept := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ProductID == p.ID {
			released = it.Quantity
			continue
		}
		kept = append(kept, it)
	}
	if released == 0 {
		return domain.Cart{}, ErrItemNotInCart
	}
	cart.Items = kept

	if err := s.store(&cart); err != nil {
		return domain.Cart{}, err
	}
	s.releaseCommitted(p.ID, released)
	return cart, nil
}

// releaseCommitted returns units to stock after the cart rewrite already
// committed. The cart must not be unwound at this point, so a failed release
// is retried once and then logged as a stock leak instead of surfacing.
func (s *CartService) releaseCommitted(productID string, qty int) {
	if err := s.Inventory.Release(productID, qty); err == nil {
		return
	}
	if err := s.Inventory.Release(productID, qty); err != nil {
		applog.Op("stock.release_failed", err, map[string]any{"product_id": productID, "qty": qty})
	}
}

// ApplyVoucher attaches a code only if it evaluates cleanly against the
// current total. The rejection reason rides the returned error.
func (s *CartService) ApplyVoucher(userID, code string) (domain.Cart, error) {
	cart, err := s.Carts.Get(userID)
	if err != nil {
		return domain.Cart{}, err
	}

	total := itemsTotal(cart.Items)
	ev, err := s.Vouchers.Check(code, total, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !ev.OK {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrVoucherRejected, ev.Reason)
	}

	cart.VoucherCode = code
	if err := s.store(&cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (s *CartService) RemoveVoucher(userID string) (domain.Cart, error) {
	cart, err := s.Carts.Get(userID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.VoucherCode = ""
	if err := s.store(&cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// store recomputes every derived figure from the item lines, re-validates any
// attached voucher (detaching it silently if it no longer qualifies), and
// persists the document.
func (s *CartService) store(cart *domain.Cart) error {
	for i := range cart.Items {
		cart.Items[i].ItemTotal = round2(cart.Items[i].Price * float64(cart.Items[i].Quantity))
	}
	cart.TotalPrice = itemsTotal(cart.Items)
	cart.Savings = 0

	if cart.VoucherCode != "" {
		ev, err := s.Vouchers.Check(cart.VoucherCode, cart.TotalPrice, cart.UserID)
		if err != nil {
			return err
		}
		if ev.OK {
			cart.Savings = ev.Discount
		} else {
			cart.VoucherCode = ""
		}
	}
	cart.TotalAfterCode = round2(cart.TotalPrice - cart.Savings)

	return s.Carts.Replace(*cart)
}

func itemsTotal(items []domain.CartItem) float64 {
	var t float64
	for _, it := range items {
		t += it.Price * float64(it.Quantity)
	}
	return round2(t)
}
