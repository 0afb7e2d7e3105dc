package repos

import (
	"errors"
	"strings"

	"shopline/internal/domain"

	"github.com/jmoiron/sqlx"
)

var ErrCodeExists = errors.New("voucher code already exists")

type VoucherRepo struct{ db *sqlx.DB }

func NewVoucherRepo(db *sqlx.DB) *VoucherRepo { return &VoucherRepo{db: db} }

const voucherCols = `code, type, value, max_discount, min_order_value, is_global,
  allowed_users_json, max_total_usage, used_count, once_per_user,
  start_date, end_date, status`

func (r *VoucherRepo) ByCode(code string) (domain.Voucher, error) {
	var v domain.Voucher
	err := r.db.Get(&v, `SELECT `+voucherCols+` FROM vouchers WHERE code = ?`, code)
	return v, err
}

func (r *VoucherRepo) List() ([]domain.Voucher, error) {
	var out []domain.Voucher
	err := r.db.Select(&out, `SELECT `+voucherCols+` FROM vouchers ORDER BY code`)
	return out, err
}

func (r *VoucherRepo) Create(v domain.Voucher) error {
	_, err := r.db.Exec(`
	  INSERT INTO vouchers(code, type, value, max_discount, min_order_value, is_global,
	    allowed_users_json, max_total_usage, once_per_user, start_date, end_date, status)
	  VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
	`, v.Code, v.Type, v.Value, v.MaxDiscount, v.MinOrderValue, v.IsGlobal,
		v.AllowedJSON, v.MaxTotalUsage, v.OncePerUser, v.StartDate, v.EndDate, v.Status)
	if err != nil && isUniqueViolation(err) {
		return ErrCodeExists
	}
	return err
}

// Update edits everything except the usage counter, which only the checkout
// transaction may touch.
func (r *VoucherRepo) Update(v domain.Voucher) (bool, error) {
	res, err := r.db.Exec(`
	  UPDATE vouchers SET type=?, value=?, max_discount=?, min_order_value=?,
	    is_global=?, allowed_users_json=?, max_total_usage=?, once_per_user=?,
	    start_date=?, end_date=?, status=?, updated_at=CURRENT_TIMESTAMP
	  WHERE code = ?
	`, v.Type, v.Value, v.MaxDiscount, v.MinOrderValue, v.IsGlobal, v.AllowedJSON,
		v.MaxTotalUsage, v.OncePerUser, v.StartDate, v.EndDate, v.Status, v.Code)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *VoucherRepo) Delete(code string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM vouchers WHERE code = ?`, code)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UsedBy reports whether the user already has an order carrying this voucher
// (the once-per-user check).
func (r *VoucherRepo) UsedBy(userID, code string) (bool, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM orders WHERE user_id = ? AND voucher_code = ?`, userID, code)
	return n > 0, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}
