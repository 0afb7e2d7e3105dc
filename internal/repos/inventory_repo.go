package repos

import (
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// InventoryRepo is the stock ledger. Reserve and Release are the only writers
// of products.stock outside the admin restock path.
type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// Reserve atomically subtracts qty if the product is available and has enough
// stock. The guard is part of the UPDATE itself, so two concurrent
// reservations for the last unit can never both succeed.
func (r *InventoryRepo) Reserve(productID string, qty int) (int, error) {
	res, err := r.db.Exec(`
		UPDATE products
		SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available = 1 AND stock >= ?
	`, qty, productID, qty)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, ErrInsufficientStock
	}
	return r.Stock(productID)
}

// Release unconditionally returns qty units. Callers must only release what
// they previously reserved.
func (r *InventoryRepo) Release(productID string, qty int) error {
	_, err := r.db.Exec(`
		UPDATE products
		SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	return err
}

func (r *InventoryRepo) Stock(productID string) (int, error) {
	var qty int
	err := r.db.Get(&qty, `SELECT stock FROM products WHERE id = ?`, productID)
	return qty, err
}
