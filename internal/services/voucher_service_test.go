package services_test

import (
	"math"
	"testing"
	"time"

	"shopline/internal/domain"
	"shopline/internal/repos"
	"shopline/internal/services"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 0.001 }

func baseVoucher() domain.Voucher {
	return domain.Voucher{
		Code:     "TEST",
		Type:     domain.VoucherFixed,
		Value:    5,
		IsGlobal: true,
		Status:   domain.VoucherActive,
	}
}

func TestEvaluateFixedWithMinimum(t *testing.T) {
	v := baseVoucher()
	v.MinOrderValue = f64(15)
	now := time.Now()

	ev := services.Evaluate(v, 10, "u-alice", false, now)
	if ev.OK || ev.Reason != services.ReasonBelowMin {
		t.Fatalf("want below-minimum rejection, got %+v", ev)
	}

	ev = services.Evaluate(v, 20, "u-alice", false, now)
	if !ev.OK || !approx(ev.Discount, 5) {
		t.Fatalf("want discount 5, got %+v", ev)
	}
}

func TestEvaluatePercentageCappedByMaxDiscount(t *testing.T) {
	v := baseVoucher()
	v.Type = domain.VoucherPercentage
	v.Value = 50
	v.MaxDiscount = f64(8)

	ev := services.Evaluate(v, 20, "u-alice", false, time.Now())
	if !ev.OK || !approx(ev.Discount, 8) {
		t.Fatalf("want capped discount 8, got %+v", ev)
	}
}

func TestEvaluateDiscountNeverExceedsTotal(t *testing.T) {
	v := baseVoucher()
	v.Value = 50

	ev := services.Evaluate(v, 30, "u-alice", false, time.Now())
	if !ev.OK || !approx(ev.Discount, 30) {
		t.Fatalf("discount should clamp at total, got %+v", ev)
	}
}

func TestEvaluateRejectionOrder(t *testing.T) {
	now := time.Now()

	// Disabled wins over every later check.
	v := baseVoucher()
	v.Status = domain.VoucherDisabled
	v.MinOrderValue = f64(1000)
	if ev := services.Evaluate(v, 1, "u-alice", true, now); ev.Reason != services.ReasonInactive {
		t.Fatalf("want inactive first, got %+v", ev)
	}

	// Window checks come before the minimum.
	v = baseVoucher()
	v.StartDate = now.Add(time.Hour).Format(time.RFC3339)
	v.MinOrderValue = f64(1000)
	if ev := services.Evaluate(v, 1, "u-alice", false, now); ev.Reason != services.ReasonNotStarted {
		t.Fatalf("want not-started before minimum, got %+v", ev)
	}

	v = baseVoucher()
	v.EndDate = now.Add(-time.Hour).Format(time.RFC3339)
	if ev := services.Evaluate(v, 100, "u-alice", false, now); ev.Reason != services.ReasonExpired {
		t.Fatalf("want expired, got %+v", ev)
	}
}

func TestEvaluateUsageCap(t *testing.T) {
	v := baseVoucher()
	v.MaxTotalUsage = i(2)
	v.UsedCount = 2

	if ev := services.Evaluate(v, 100, "u-alice", false, time.Now()); ev.Reason != services.ReasonUsageCap {
		t.Fatalf("want usage cap, got %+v", ev)
	}
}

func TestEvaluateAllowList(t *testing.T) {
	v := baseVoucher()
	v.IsGlobal = false
	v.AllowedJSON = `["u-alice"]`
	now := time.Now()

	if ev := services.Evaluate(v, 100, "u-alice", false, now); !ev.OK {
		t.Fatalf("allow-listed user rejected: %+v", ev)
	}
	if ev := services.Evaluate(v, 100, "u-bob", false, now); ev.Reason != services.ReasonNotEligible {
		t.Fatalf("want not eligible, got %+v", ev)
	}
}

func TestEvaluateOncePerUser(t *testing.T) {
	v := baseVoucher()
	v.OncePerUser = true
	now := time.Now()

	if ev := services.Evaluate(v, 100, "u-alice", false, now); !ev.OK {
		t.Fatalf("first use rejected: %+v", ev)
	}
	if ev := services.Evaluate(v, 100, "u-alice", true, now); ev.Reason != services.ReasonAlreadyUsed {
		t.Fatalf("want already used, got %+v", ev)
	}
}

func TestCheckUnknownCodeIsRejectionNotError(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	svc := services.NewVoucherService(repos.NewVoucherRepo(db))

	ev, err := svc.Check("NOPE", 100, "u-alice")
	if err != nil {
		t.Fatalf("unknown code should not error: %v", err)
	}
	if ev.OK || ev.Reason != services.ReasonUnknownCode {
		t.Fatalf("want unknown-code rejection, got %+v", ev)
	}
}

func TestCheckSeededWelcomeVoucher(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	svc := services.NewVoucherService(repos.NewVoucherRepo(db))

	// WELCOME10: 10% capped at 15.
	ev, err := svc.Check("WELCOME10", 200, "u-alice")
	if err != nil {
		t.Fatal(err)
	}
	if !ev.OK || !approx(ev.Discount, 15) {
		t.Fatalf("want capped 15, got %+v", ev)
	}
}
