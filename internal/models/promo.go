package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFlat    DiscountType = "FLAT"
)

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	PromoID       string       `bun:"promo_id,pk" json:"promo_id"`
	Code          string       `bun:"code,unique,notnull" json:"code"`
	DiscountType  DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue float64      `bun:"discount_value,notnull" json:"discount_value"`
	MinCartValue  float64      `bun:"min_cart_value" json:"min_cart_value"`
	MaxDiscount   *float64     `bun:"max_discount,nullzero" json:"max_discount,omitempty"`
	UsageLimit    int          `bun:"usage_limit,notnull" json:"usage_limit"`
	UsedCount     int          `bun:"used_count,notnull" json:"used_count"`
	PerUserLimit  int          `bun:"per_user_limit,notnull" json:"per_user_limit"`
	ExpiryDate    time.Time    `bun:"expiry_date,notnull" json:"expiry_date"`
	IsActive      bool         `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     time.Time    `bun:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// PromoCodeUsage is one redemption ledger row. Append-only: the count of rows
// for a (promo, user) pair is the authoritative per-user usage count.
type PromoCodeUsage struct {
	bun.BaseModel `bun:"table:promo_code_usages"`

	UsageID        string    `bun:"usage_id,pk" json:"usage_id"`
	PromoID        string    `bun:"promo_id,notnull" json:"promo_id"`
	UserID         string    `bun:"user_id,notnull" json:"user_id"`
	OrderID        string    `bun:"order_id,notnull" json:"order_id"`
	DiscountAmount float64   `bun:"discount_amount,notnull" json:"discount_amount"`
	UsedAt         time.Time `bun:"used_at,notnull" json:"used_at"`
}

type PromoValidationRequest struct {
	Code      string  `json:"code"`
	CartTotal float64 `json:"cart_total"`
}

type PromoValidationResponse struct {
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"final_amount"`
}
