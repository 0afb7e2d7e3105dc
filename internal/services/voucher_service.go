package services

import (
	"database/sql"
	"errors"
	"math"
	"time"

	"shopline/internal/domain"
	"shopline/internal/metrics"
	"shopline/internal/repos"
)

// Rejection reasons, returned verbatim to the client.
const (
	ReasonInactive    = "voucher is not active"
	ReasonNotStarted  = "voucher is not yet valid"
	ReasonExpired     = "voucher has expired"
	ReasonBelowMin    = "order total below voucher minimum"
	ReasonUsageCap    = "voucher usage limit reached"
	ReasonNotEligible = "voucher is not available for this account"
	ReasonAlreadyUsed = "voucher already used by this account"
	ReasonUnknownCode = "voucher code not found"
)

// Evaluation is the outcome of a stateless voucher check against a cart
// total. Discount is meaningful only when OK.
type Evaluation struct {
	OK       bool
	Reason   string
	Discount float64
}

type VoucherService struct {
	Vouchers *repos.VoucherRepo
}

func NewVoucherService(vouchers *repos.VoucherRepo) *VoucherService {
	return &VoucherService{Vouchers: vouchers}
}

// Evaluate runs the validation chain in a fixed order and stops at the first
// failure. It touches no state; usedBefore is the caller's answer to the
// once-per-user question.
func Evaluate(v domain.Voucher, cartTotal float64, userID string, usedBefore bool, now time.Time) Evaluation {
	reject := func(reason string) Evaluation {
		metrics.VoucherRejections.WithLabelValues(reason).Inc()
		return Evaluation{Reason: reason}
	}

	if v.Status != domain.VoucherActive {
		return reject(ReasonInactive)
	}
	if start, ok := v.StartsAt(); ok && now.Before(start) {
		return reject(ReasonNotStarted)
	}
	if end, ok := v.EndsAt(); ok && now.After(end) {
		return reject(ReasonExpired)
	}
	if v.MinOrderValue != nil && cartTotal < *v.MinOrderValue {
		return reject(ReasonBelowMin)
	}
	if v.MaxTotalUsage != nil && v.UsedCount >= *v.MaxTotalUsage {
		return reject(ReasonUsageCap)
	}
	if !v.Allows(userID) {
		return reject(ReasonNotEligible)
	}
	if v.OncePerUser && usedBefore {
		return reject(ReasonAlreadyUsed)
	}

	return Evaluation{OK: true, Discount: discount(v, cartTotal)}
}

// discount computes the monetary discount; it never exceeds the cart total.
func discount(v domain.Voucher, cartTotal float64) float64 {
	var d float64
	switch v.Type {
	case domain.VoucherPercentage:
		d = cartTotal * v.Value / 100
		if v.MaxDiscount != nil && d > *v.MaxDiscount {
			d = *v.MaxDiscount
		}
	case domain.VoucherFixed:
		d = v.Value
	}
	if d > cartTotal {
		d = cartTotal
	}
	return round2(d)
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// Check loads the voucher and the user's usage history and evaluates.
// An unknown code evaluates to a rejection, not an error.
func (s *VoucherService) Check(code string, cartTotal float64, userID string) (Evaluation, error) {
	v, err := s.Vouchers.ByCode(code)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.VoucherRejections.WithLabelValues(ReasonUnknownCode).Inc()
		return Evaluation{Reason: ReasonUnknownCode}, nil
	}
	if err != nil {
		return Evaluation{}, err
	}

	usedBefore := false
	if v.OncePerUser {
		usedBefore, err = s.Vouchers.UsedBy(userID, code)
		if err != nil {
			return Evaluation{}, err
		}
	}

	return Evaluate(v, cartTotal, userID, usedBefore, time.Now()), nil
}

// Admin CRUD passthroughs; handlers own input validation.

func (s *VoucherService) List() ([]domain.Voucher, error) { return s.Vouchers.List() }

func (s *VoucherService) Get(code string) (domain.Voucher, error) { return s.Vouchers.ByCode(code) }

func (s *VoucherService) Create(v domain.Voucher) error {
	if v.Status == "" {
		v.Status = domain.VoucherActive
	}
	return s.Vouchers.Create(v)
}

func (s *VoucherService) Update(v domain.Voucher) (bool, error) { return s.Vouchers.Update(v) }

func (s *VoucherService) Delete(code string) (bool, error) { return s.Vouchers.Delete(code) }
