package repos

import (
	"errors"
	"fmt"

	"shopline/internal/domain"

	"github.com/jmoiron/sqlx"
)

var (
	ErrVoucherExhausted = errors.New("voucher usage limit reached")
	ErrOrderNotFound    = errors.New("order not found")
)

type OrderRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
}

func NewOrderRepo(db *sqlx.DB) *OrderRepo {
	return &OrderRepo{db: db, outbox: NewOutboxRepo(db)}
}

// CreateTx commits the checkout unit atomically: consume one voucher usage
// slot (conditionally, re-checking the cap at increment time), insert the
// order snapshot, clear the cart, and enqueue the saga trigger in the outbox.
// Any failure rolls the whole unit back.
func (r *OrderRepo) CreateTx(order domain.Order, items []domain.OrderItem) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if order.VoucherCode != "" {
		res, err := tx.Exec(`
		  UPDATE vouchers
		  SET used_count = used_count + 1, updated_at = CURRENT_TIMESTAMP
		  WHERE code = ? AND status = 'ACTIVE'
		    AND (max_total_usage IS NULL OR used_count < max_total_usage)
		`, order.VoucherCode)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrVoucherExhausted
		}
	}

	if _, err := tx.Exec(`
	  INSERT INTO orders(id, user_id, total_price, voucher_code, savings,
	    total_after_code, delivery_address, payment_method, status, created_at)
	  VALUES(?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP)
	`, order.ID, order.UserID, order.TotalPrice, order.VoucherCode, order.Savings,
		order.TotalAfterCode, order.DeliveryAddress, order.PaymentMethod, order.Status); err != nil {
		return err
	}

	for _, it := range items {
		if _, err := tx.Exec(`
		  INSERT INTO order_items(order_id, product_id, title, qty, price)
		  VALUES(?,?,?,?,?)
		`, order.ID, it.ProductID, it.Title, it.Quantity, it.Price); err != nil {
			return err
		}
	}

	// Clear, not delete: the cart row stays, emptied and detached.
	if _, err := tx.Exec(`DELETE FROM cart_items WHERE user_id = ?`, order.UserID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
	  UPDATE carts SET voucher_code = NULL, total_price = 0, savings = 0,
	    total_after_code = 0, updated_at = CURRENT_TIMESTAMP
	  WHERE user_id = ?`, order.UserID); err != nil {
		return err
	}

	if err := r.outbox.Insert(tx, TopicOrderCreated, order.ID, map[string]any{"orderId": order.ID}); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepo) Get(orderID string) (domain.Order, []domain.OrderItem, error) {
	var o domain.Order
	if err := r.db.Get(&o, `
	  SELECT o.id, o.user_id, o.total_price, o.voucher_code, o.savings,
	    o.total_after_code, o.delivery_address, o.payment_method, o.status,
	    o.created_at, COALESCE(u.name,'') AS customer_name,
	    COALESCE(u.email,'') AS customer_email
	  FROM orders o LEFT JOIN users u ON u.id = o.user_id
	  WHERE o.id = ?`, orderID); err != nil {
		return domain.Order{}, nil, err
	}

	var items []domain.OrderItem
	if err := r.db.Select(&items, `
	  SELECT order_id, product_id, title, qty, price
	  FROM order_items WHERE order_id = ? ORDER BY rowid`, orderID); err != nil {
		return domain.Order{}, nil, err
	}
	return o, items, nil
}

// Status reads only the authoritative status; the saga's reconcile step.
func (r *OrderRepo) Status(orderID string) (string, error) {
	var s string
	err := r.db.Get(&s, `SELECT status FROM orders WHERE id = ?`, orderID)
	return s, err
}

// UpdateStatusTx persists the operator's status change and enqueues the
// order-updated signal in the same transaction.
func (r *OrderRepo) UpdateStatusTx(orderID, status string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`UPDATE orders SET status = ? WHERE id = ?`, status, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}

	payload := map[string]any{"orderId": orderID, "status": status}
	if err := r.outbox.Insert(tx, TopicOrderUpdated, orderID, payload); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepo) ListByUser(userID string, days int) ([]domain.Order, error) {
	q := `
	  SELECT o.id, o.user_id, o.total_price, o.voucher_code, o.savings,
	    o.total_after_code, o.delivery_address, o.payment_method, o.status,
	    o.created_at, '' AS customer_name, '' AS customer_email
	  FROM orders o WHERE o.user_id = ?`
	args := []any{userID}
	if days > 0 {
		q += ` AND datetime(o.created_at) >= datetime('now', ?)`
		args = append(args, fmt.Sprintf("-%d days", days))
	}
	q += ` ORDER BY datetime(o.created_at) DESC`

	var out []domain.Order
	err := r.db.Select(&out, q, args...)
	return out, err
}

func (r *OrderRepo) ListLatest(limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []domain.Order
	err := r.db.Select(&out, `
	  SELECT o.id, o.user_id, o.total_price, o.voucher_code, o.savings,
	    o.total_after_code, o.delivery_address, o.payment_method, o.status,
	    o.created_at, COALESCE(u.name,'') AS customer_name,
	    COALESCE(u.email,'') AS customer_email
	  FROM orders o LEFT JOIN users u ON u.id = o.user_id
	  ORDER BY datetime(o.created_at) DESC LIMIT ?`, limit)
	return out, err
}
