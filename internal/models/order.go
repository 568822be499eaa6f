package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusProcessing     OrderStatus = "processing"
	StatusPacked         OrderStatus = "packed"
	StatusShipped        OrderStatus = "shipped"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
	StatusReturned       OrderStatus = "returned"
	StatusRefunded       OrderStatus = "refunded"
)

const (
	PaymentMethodOnline         = "online"
	PaymentMethodCashOnDelivery = "cod"
)

// CartLine is a single line of a checkout request. The claimed price is for
// display only; line snapshots come from the catalog at assembly time.
type CartLine struct {
	BookID   string  `json:"book_id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// OrderItem snapshots title and unit price at order creation; it is never
// recomputed from live catalog prices.
type OrderItem struct {
	BookID    string  `json:"book_id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

type PaymentResult struct {
	PaymentID string `json:"payment_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID         string          `bun:"order_id,pk" json:"order_id"`
	UserID          string          `bun:"user_id,notnull" json:"user_id"`
	Items           []OrderItem     `bun:"items,type:jsonb" json:"items"`
	ShippingAddress ShippingAddress `bun:"shipping_address,type:jsonb" json:"shipping_address"`
	PaymentMethod   string          `bun:"payment_method,notnull" json:"payment_method"`

	ItemsPrice     float64 `bun:"items_price,notnull" json:"items_price"`
	TaxPrice       float64 `bun:"tax_price,notnull" json:"tax_price"`
	ShippingPrice  float64 `bun:"shipping_price,notnull" json:"shipping_price"`
	DiscountAmount float64 `bun:"discount_amount,notnull" json:"discount_amount"`
	TotalPrice     float64 `bun:"total_price,notnull" json:"total_price"`
	PromoID        string  `bun:"promo_id,nullzero" json:"promo_id,omitempty"`

	Status    OrderStatus `bun:"status,notnull" json:"status"`
	SessionID string      `bun:"session_id,nullzero" json:"session_id,omitempty"`

	IsPaid        bool           `bun:"is_paid,notnull" json:"is_paid"`
	PaidAt        *time.Time     `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
	PaymentResult *PaymentResult `bun:"payment_result,type:jsonb,nullzero" json:"payment_result,omitempty"`

	IsDelivered bool       `bun:"is_delivered,notnull" json:"is_delivered"`
	DeliveredAt *time.Time `bun:"delivered_at,nullzero" json:"delivered_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type CheckoutRequest struct {
	Items           []CartLine      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	PromoCode       string          `json:"promo_code,omitempty"`
}

type CheckoutResponse struct {
	OrderID        string  `json:"order_id"`
	UserID         string  `json:"user_id"`
	ItemsPrice     float64 `json:"items_price"`
	TaxPrice       float64 `json:"tax_price"`
	ShippingPrice  float64 `json:"shipping_price"`
	DiscountAmount float64 `json:"discount_amount"`
	TotalPrice     float64 `json:"total_price"`
	Status         string  `json:"status"`
}

type StatusTransitionRequest struct {
	Status OrderStatus `json:"status"`
}
