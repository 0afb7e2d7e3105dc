package validate_test

import (
	"testing"

	"shopline/internal/validate"
)

func TestEmail(t *testing.T) {
	if _, ok := validate.Email("alice@shopline.test"); !ok {
		t.Fatal("valid email rejected")
	}
	for _, bad := range []string{"", "not-an-email", "a@b", "  "} {
		if _, ok := validate.Email(bad); ok {
			t.Fatalf("accepted %q", bad)
		}
	}
}

func TestVoucherCodeNormalizes(t *testing.T) {
	code, ok := validate.VoucherCode("  save5 ")
	if !ok || code != "SAVE5" {
		t.Fatalf("want SAVE5, got %q ok=%v", code, ok)
	}
	if _, ok := validate.VoucherCode("x"); ok {
		t.Fatal("single-char code accepted")
	}
	if _, ok := validate.VoucherCode("has space"); ok {
		t.Fatal("code with space accepted")
	}
}

func TestQuantityClamps(t *testing.T) {
	if got := validate.AddQty(0); got != 1 {
		t.Fatalf("want 1, got %d", got)
	}
	if got := validate.AddQty(999); got != 50 {
		t.Fatalf("want 50, got %d", got)
	}
	if n, ok := validate.UpdateQty(0); !ok || n != 0 {
		t.Fatal("zero must be a legal update quantity")
	}
	if _, ok := validate.UpdateQty(-1); ok {
		t.Fatal("negative quantity accepted")
	}
	if _, ok := validate.UpdateQty(51); ok {
		t.Fatal("oversized quantity accepted")
	}
}

func TestPaymentMethodFallsBackToCash(t *testing.T) {
	if got := validate.PaymentMethod("card"); got != "CARD" {
		t.Fatalf("want CARD, got %s", got)
	}
	if got := validate.PaymentMethod("bitcoin"); got != "CASH" {
		t.Fatalf("want CASH fallback, got %s", got)
	}
}
