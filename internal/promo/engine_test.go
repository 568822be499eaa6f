package promo_test

import (
	"testing"
	"time"

	"ms-bookstore/internal/models"
	"ms-bookstore/internal/promo"
)

func activeCode() *models.PromoCode {
	return &models.PromoCode{
		PromoID:       "promo-1",
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercent,
		DiscountValue: 10,
		MinCartValue:  100,
		UsageLimit:    50,
		UsedCount:     0,
		PerUserLimit:  1,
		ExpiryDate:    time.Now().Add(24 * time.Hour),
		IsActive:      true,
	}
}

func TestValidateAcceptsActiveCode(t *testing.T) {
	result, rej := promo.Validate(activeCode(), 0, 500, time.Now())
	if rej != nil {
		t.Fatalf("Expected no rejection, got %v", rej)
	}
	if result.Discount != 50 {
		t.Errorf("Expected discount 50, got %f", result.Discount)
	}
	if result.FinalAmount != 450 {
		t.Errorf("Expected final amount 450, got %f", result.FinalAmount)
	}
}

func TestValidateRejectionReasons(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		code      *models.PromoCode
		userUsage int
		cartTotal float64
		reason    string
	}{
		{
			name:      "unknown code",
			code:      nil,
			cartTotal: 500,
			reason:    models.ReasonPromoNotFound,
		},
		{
			name: "inactive code",
			code: func() *models.PromoCode {
				c := activeCode()
				c.IsActive = false
				return c
			}(),
			cartTotal: 500,
			reason:    models.ReasonPromoInactive,
		},
		{
			name: "expired code",
			code: func() *models.PromoCode {
				c := activeCode()
				c.ExpiryDate = now.Add(-time.Hour)
				return c
			}(),
			cartTotal: 500,
			reason:    models.ReasonPromoExpired,
		},
		{
			name: "global limit reached",
			code: func() *models.PromoCode {
				c := activeCode()
				c.UsedCount = c.UsageLimit
				return c
			}(),
			cartTotal: 500,
			reason:    models.ReasonPromoLimitReached,
		},
		{
			name:      "per-user limit reached",
			code:      activeCode(),
			userUsage: 1,
			cartTotal: 500,
			reason:    models.ReasonPromoUserLimit,
		},
		{
			name:      "cart below minimum",
			code:      activeCode(),
			cartTotal: 99,
			reason:    models.ReasonPromoBelowMinimum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, rej := promo.Validate(tt.code, tt.userUsage, tt.cartTotal, now)
			if rej == nil {
				t.Fatalf("Expected rejection %s, got result %+v", tt.reason, result)
			}
			if rej.Reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, rej.Reason)
			}
		})
	}
}

// An inactive expired code must report inactive: the checks run in a fixed
// order and the first failure wins.
func TestValidateFirstFailureWins(t *testing.T) {
	code := activeCode()
	code.IsActive = false
	code.ExpiryDate = time.Now().Add(-time.Hour)
	code.UsedCount = code.UsageLimit

	_, rej := promo.Validate(code, 5, 1, time.Now())
	if rej == nil {
		t.Fatal("Expected rejection, got nil")
	}
	if rej.Reason != models.ReasonPromoInactive {
		t.Errorf("Expected %s, got %s", models.ReasonPromoInactive, rej.Reason)
	}
}

func TestDiscountPercentRoundsToNearestRupee(t *testing.T) {
	code := activeCode()
	code.DiscountValue = 15

	// 15% of 333 = 49.95, rounds to 50
	discount := promo.Discount(code, 333)
	if discount != 50 {
		t.Errorf("Expected discount 50, got %f", discount)
	}
}

func TestDiscountPercentCappedByMaxDiscount(t *testing.T) {
	code := activeCode()
	maxDiscount := 30.0
	code.MaxDiscount = &maxDiscount

	discount := promo.Discount(code, 1000) // 10% would be 100
	if discount != 30 {
		t.Errorf("Expected discount capped at 30, got %f", discount)
	}
}

func TestDiscountFlatNeverExceedsCartTotal(t *testing.T) {
	code := activeCode()
	code.DiscountType = models.DiscountFlat
	code.DiscountValue = 200
	code.MinCartValue = 0

	discount := promo.Discount(code, 150)
	if discount != 150 {
		t.Errorf("Expected discount clamped to 150, got %f", discount)
	}

	result, rej := promo.Validate(code, 0, 150, time.Now())
	if rej != nil {
		t.Fatalf("Expected no rejection, got %v", rej)
	}
	if result.FinalAmount != 0 {
		t.Errorf("Expected final amount 0, got %f", result.FinalAmount)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := promo.NormalizeCode("  save10 "); got != "SAVE10" {
		t.Errorf("Expected SAVE10, got %s", got)
	}
}
