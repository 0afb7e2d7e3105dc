package repos

import (
	"database/sql"
	"errors"
	"strings"

	"shopline/internal/domain"

	"github.com/jmoiron/sqlx"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, slug, title, COALESCE(description,'') AS description,
  price, stock, available, created_at, COALESCE(updated_at,'') AS updated_at`

func (r *ProductRepo) Get(id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.Get(&p, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	return p, err
}

// ByIDOrSlug resolves a client-supplied product reference: exact id first,
// then lower-cased slug. Only a missing id falls through to the slug lookup;
// any other database error surfaces as-is.
func (r *ProductRepo) ByIDOrSlug(ref string) (domain.Product, error) {
	p, err := r.Get(ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, err
	}
	err = r.db.Get(&p, `SELECT `+productCols+` FROM products WHERE slug = ?`, strings.ToLower(ref))
	return p, err
}

func (r *ProductRepo) List(limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Product
	err := r.db.Select(&out, `
	  SELECT `+productCols+` FROM products
	  ORDER BY title LIMIT ? OFFSET ?`, limit, offset)
	return out, err
}

// SetStock is the operator entry point: restock and/or override the
// availability flag.
func (r *ProductRepo) SetStock(id string, stock int, available bool) error {
	_, err := r.db.Exec(`
	  UPDATE products SET stock = ?, available = ?, updated_at = CURRENT_TIMESTAMP
	  WHERE id = ?`, stock, available, id)
	return err
}
