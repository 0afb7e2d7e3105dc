package validate

import (
	"regexp"
	"strings"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reCode  = regexp.MustCompile(`^[A-Z0-9_-]{2,32}$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// ID validates a client-supplied resource reference (product ids and slugs,
// order ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// VoucherCode normalizes to upper case; codes are stored upper-cased.
func VoucherCode(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reCode.MatchString(s)
}

// AddQty clamps an add-to-cart quantity: minimum 1, capped to avoid abuse.
func AddQty(n int) int {
	if n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	}
	return n
}

// UpdateQty accepts a set-quantity value; 0 is legal and means "remove".
func UpdateQty(n int) (int, bool) {
	if n < 0 || n > 50 {
		return 0, false
	}
	return n, true
}

func Address(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && len(s) <= 200
}

// PaymentMethod is a label, not a gateway integration; unknown values fall
// back to CASH like the storefront default.
func PaymentMethod(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CARD":
		return "CARD"
	default:
		return "CASH"
	}
}
