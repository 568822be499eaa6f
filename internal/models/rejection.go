package models

import "net/http"

// Reason codes surfaced to callers. Stable, machine-readable; internal store
// errors are never leaked through these.
const (
	ReasonValidationFailed   = "VALIDATION_FAILED"
	ReasonInsufficientStock  = "INSUFFICIENT_STOCK"
	ReasonPromoNotFound      = "PROMO_NOT_FOUND"
	ReasonPromoInactive      = "PROMO_INACTIVE"
	ReasonPromoExpired       = "PROMO_EXPIRED"
	ReasonPromoLimitReached  = "PROMO_LIMIT_REACHED"
	ReasonPromoUserLimit     = "PROMO_USER_LIMIT_REACHED"
	ReasonPromoBelowMinimum  = "PROMO_BELOW_MINIMUM"
	ReasonSignatureMismatch  = "SIGNATURE_MISMATCH"
	ReasonOrderNotFound      = "ORDER_NOT_FOUND"
	ReasonInvalidTransition  = "INVALID_TRANSITION"
	ReasonCheckoutInProgress = "CHECKOUT_IN_PROGRESS"
)

// RejectionError is a recoverable, caller-facing rejection: a stable reason
// code plus a human-readable message. Detail is for logs only.
type RejectionError struct {
	Reason  string
	Message string
	Detail  string
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return e.Reason + ": " + e.Detail
	}
	return e.Reason + ": " + e.Message
}

func Reject(reason, message string) *RejectionError {
	return &RejectionError{Reason: reason, Message: message}
}

// StatusCode maps a reason to the HTTP status the handlers respond with.
func (e *RejectionError) StatusCode() int {
	switch e.Reason {
	case ReasonOrderNotFound, ReasonPromoNotFound:
		return http.StatusNotFound
	case ReasonInsufficientStock, ReasonPromoLimitReached, ReasonPromoUserLimit,
		ReasonInvalidTransition, ReasonCheckoutInProgress:
		return http.StatusConflict
	case ReasonSignatureMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
