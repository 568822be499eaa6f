package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentSession is the provider-side session opened for an order. The charge
// amount is taken from the order's stored total, never recomputed.
type PaymentSession struct {
	SessionID string    `json:"session_id"`
	OrderID   string    `json:"order_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentCallback is the inbound webhook/client callback payload.
type PaymentCallback struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"session_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type PaymentEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
