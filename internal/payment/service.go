package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
)

type OrderStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	SetPaymentSession(ctx context.Context, orderID, sessionID string) error
	MarkPaid(ctx context.Context, orderID, paymentID string) (alreadyPaid bool, err error)
}

type SessionCreator interface {
	CreateSession(orderID string, amount float64) (*models.PaymentSession, error)
}

type PaidNotifier interface {
	OrderPaid(order *models.Order, paymentID string)
}

// Service reconciles gateway callbacks with orders: it opens sessions for the
// stored total and flips orders to paid exactly once per verified callback.
type Service struct {
	Orders   OrderStore
	Provider SessionCreator
	Notify   PaidNotifier
	Logger   *logger.Logger
	secret   string
}

func NewService(orders OrderStore, provider SessionCreator, notify PaidNotifier, log *logger.Logger, secret string) *Service {
	return &Service{
		Orders:   orders,
		Provider: provider,
		Notify:   notify,
		Logger:   log,
		secret:   secret,
	}
}

// Sign computes the callback signature over sessionID|paymentID.
func Sign(secret, sessionID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// CreateSession opens a gateway session for an unpaid online order. The
// charged amount is the total stored at checkout; prices that changed since
// do not affect it.
func (s *Service) CreateSession(ctx context.Context, orderID, userID string, isAdmin bool) (*models.PaymentSession, error) {
	order, err := s.Orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (!isAdmin && order.UserID != userID) {
		return nil, models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	if order.PaymentMethod != models.PaymentMethodOnline {
		return nil, models.Reject(models.ReasonValidationFailed, "order is not payable online")
	}
	if order.IsPaid {
		return nil, models.Reject(models.ReasonValidationFailed, "order is already paid")
	}

	session, err := s.Provider.CreateSession(order.OrderID, order.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	if err := s.Orders.SetPaymentSession(ctx, order.OrderID, session.SessionID); err != nil {
		return nil, err
	}

	s.Logger.LogOrder("SESSION", order.OrderID, fmt.Sprintf("payment session %s, amount %.2f", session.SessionID, session.Amount))
	return session, nil
}

// VerifyCallback checks the gateway callback signature and marks the order
// paid. Replays are harmless: the first verified callback wins and later ones
// return the already-settled order without renotifying.
func (s *Service) VerifyCallback(ctx context.Context, cb models.PaymentCallback) (*models.Order, error) {
	order, err := s.Orders.GetOrderByID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	if order.SessionID == "" || order.SessionID != cb.SessionID {
		s.Logger.LogSecurity("PAYMENT", fmt.Sprintf("callback for order %s with unknown session", cb.OrderID))
		return nil, models.Reject(models.ReasonSignatureMismatch, "payment verification failed")
	}

	// The signature is recomputed from the session we stored, not the one the
	// caller claims. Comparison is constant-time.
	expected := Sign(s.secret, order.SessionID, cb.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(cb.Signature)) {
		s.Logger.LogSecurity("PAYMENT", fmt.Sprintf("signature mismatch for order %s", cb.OrderID))
		return nil, models.Reject(models.ReasonSignatureMismatch, "payment verification failed")
	}

	alreadyPaid, err := s.Orders.MarkPaid(ctx, cb.OrderID, cb.PaymentID)
	if err != nil {
		return nil, err
	}
	if alreadyPaid {
		s.Logger.LogOrder("PAYMENT", cb.OrderID, "duplicate callback ignored, order already paid")
		return s.Orders.GetOrderByID(ctx, cb.OrderID)
	}

	order, err = s.Orders.GetOrderByID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	s.Logger.LogOrder("PAID", cb.OrderID, fmt.Sprintf("payment %s confirmed", cb.PaymentID))
	s.Notify.OrderPaid(order, cb.PaymentID)
	return order, nil
}
