package domain

import (
	"encoding/json"
	"time"
)

const (
	VoucherPercentage = "PERCENTAGE"
	VoucherFixed      = "FIXED"

	VoucherActive   = "ACTIVE"
	VoucherDisabled = "DISABLED"
)

// Voucher is mutated only by admin edits and the atomic usage increment at
// checkout. Dates are stored as RFC3339 text (sqlite convention used across
// the schema); empty string means unset.
type Voucher struct {
	Code          string   `db:"code" json:"code"`
	Type          string   `db:"type" json:"type"`
	Value         float64  `db:"value" json:"value"`
	MaxDiscount   *float64 `db:"max_discount" json:"maxDiscount,omitempty"`
	MinOrderValue *float64 `db:"min_order_value" json:"minOrderValue,omitempty"`
	IsGlobal      bool     `db:"is_global" json:"isGlobal"`
	AllowedJSON   string   `db:"allowed_users_json" json:"-"`
	MaxTotalUsage *int     `db:"max_total_usage" json:"maxTotalUsage,omitempty"`
	UsedCount     int      `db:"used_count" json:"usedCount"`
	OncePerUser   bool     `db:"once_per_user" json:"oncePerUser"`
	StartDate     string   `db:"start_date" json:"startDate,omitempty"`
	EndDate       string   `db:"end_date" json:"endDate,omitempty"`
	Status        string   `db:"status" json:"status"`
}

func (v Voucher) AllowedUsers() []string {
	if v.AllowedJSON == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v.AllowedJSON), &out); err != nil {
		return nil
	}
	return out
}

func (v Voucher) Allows(userID string) bool {
	if v.IsGlobal {
		return true
	}
	for _, id := range v.AllowedUsers() {
		if id == userID {
			return true
		}
	}
	return false
}

func (v Voucher) StartsAt() (time.Time, bool) { return parseDate(v.StartDate) }
func (v Voucher) EndsAt() (time.Time, bool)   { return parseDate(v.EndDate) }

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
