package repos

import (
	"database/sql"
	"errors"

	"shopline/internal/domain"

	"github.com/jmoiron/sqlx"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

// Get loads one user's cart. A user with no cart row yet gets an empty cart;
// the row is created lazily by the first Replace.
func (r *CartRepo) Get(userID string) (domain.Cart, error) {
	cart := domain.Cart{UserID: userID}

	var head struct {
		VoucherCode    sql.NullString `db:"voucher_code"`
		TotalPrice     float64        `db:"total_price"`
		Savings        float64        `db:"savings"`
		TotalAfterCode float64        `db:"total_after_code"`
	}
	err := r.db.Get(&head, `
	  SELECT voucher_code, total_price, savings, total_after_code
	  FROM carts WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return cart, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}
	cart.VoucherCode = head.VoucherCode.String
	cart.TotalPrice = head.TotalPrice
	cart.Savings = head.Savings
	cart.TotalAfterCode = head.TotalAfterCode

	items := []domain.CartItem{}
	if err := r.db.Select(&items, `
	  SELECT ci.product_id, p.slug, p.title, ci.qty, ci.price_at_add, ci.item_total
	  FROM cart_items ci JOIN products p ON p.id = ci.product_id
	  WHERE ci.user_id = ?
	  ORDER BY ci.rowid`, userID); err != nil {
		return domain.Cart{}, err
	}
	cart.Items = items
	return cart, nil
}

// Replace rewrites the whole cart document in one transaction. Callers finish
// all ledger operations first; a failure here leaves the stored cart as it
// was.
func (r *CartRepo) Replace(cart domain.Cart) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var voucher any
	if cart.VoucherCode != "" {
		voucher = cart.VoucherCode
	}
	if _, err := tx.Exec(`
	  INSERT INTO carts(user_id, voucher_code, total_price, savings, total_after_code, updated_at)
	  VALUES(?,?,?,?,?,CURRENT_TIMESTAMP)
	  ON CONFLICT(user_id) DO UPDATE SET
	    voucher_code = excluded.voucher_code,
	    total_price = excluded.total_price,
	    savings = excluded.savings,
	    total_after_code = excluded.total_after_code,
	    updated_at = CURRENT_TIMESTAMP
	`, cart.UserID, voucher, cart.TotalPrice, cart.Savings, cart.TotalAfterCode); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM cart_items WHERE user_id = ?`, cart.UserID); err != nil {
		return err
	}
	for _, it := range cart.Items {
		if _, err := tx.Exec(`
		  INSERT INTO cart_items(user_id, product_id, qty, price_at_add, item_total, created_at, updated_at)
		  VALUES(?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
		`, cart.UserID, it.ProductID, it.Quantity, it.Price, it.ItemTotal); err != nil {
			return err
		}
	}

	return tx.Commit()
}
