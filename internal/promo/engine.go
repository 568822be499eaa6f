package promo

import (
	"math"
	"strings"
	"time"

	"ms-bookstore/internal/models"
)

// ValidationResult is the priced outcome of a successful validation.
type ValidationResult struct {
	PromoID     string  `json:"promo_id"`
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"final_amount"`
}

// NormalizeCode canonicalizes a client-supplied code for matching.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a promo code against a cart total and the caller's prior
// usage, and computes the discount. It is pure: no store access, no side
// effects. The checks short-circuit in a fixed order so the caller always
// sees the first failing reason.
//
// The result is advisory until order creation, where the same checks are
// re-run against the then-current state of the code; the code may expire or
// exhaust its limits between the client's "apply" step and checkout.
func Validate(code *models.PromoCode, userUsage int, cartTotal float64, now time.Time) (*ValidationResult, *models.RejectionError) {
	if code == nil {
		return nil, models.Reject(models.ReasonPromoNotFound, "promo code not found")
	}
	if !code.IsActive {
		return nil, models.Reject(models.ReasonPromoInactive, "promo code is not active")
	}
	if code.ExpiryDate.Before(now) {
		return nil, models.Reject(models.ReasonPromoExpired, "promo code has expired")
	}
	if code.UsedCount >= code.UsageLimit {
		return nil, models.Reject(models.ReasonPromoLimitReached, "promo code usage limit reached")
	}
	if userUsage >= code.PerUserLimit {
		return nil, models.Reject(models.ReasonPromoUserLimit, "promo code already used the maximum number of times")
	}
	if cartTotal < code.MinCartValue {
		return nil, models.Reject(models.ReasonPromoBelowMinimum, "cart total below the promo code minimum")
	}

	discount := Discount(code, cartTotal)
	final := cartTotal - discount
	if final < 0 {
		final = 0
	}

	return &ValidationResult{
		PromoID:     code.PromoID,
		Code:        code.Code,
		Discount:    discount,
		FinalAmount: final,
	}, nil
}

// Discount computes the discount amount for a cart total.
// PERCENT rounds to the nearest rupee; FLAT never exceeds the cart total.
// An optional MaxDiscount caps either type.
func Discount(code *models.PromoCode, cartTotal float64) float64 {
	var discount float64
	switch code.DiscountType {
	case models.DiscountPercent:
		discount = math.Round(cartTotal * code.DiscountValue / 100)
	case models.DiscountFlat:
		discount = code.DiscountValue
		if discount > cartTotal {
			discount = cartTotal
		}
	default:
		return 0
	}

	if code.MaxDiscount != nil && discount > *code.MaxDiscount {
		discount = *code.MaxDiscount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
