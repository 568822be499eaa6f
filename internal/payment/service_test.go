package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
	"ms-bookstore/internal/payment"
)

const testSecret = "test-secret"

// ---- Mock Order Store ----

type mockOrderStore struct {
	orders map[string]*models.Order
}

func newMockOrderStore(orders ...*models.Order) *mockOrderStore {
	m := &mockOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		m.orders[o.OrderID] = o
	}
	return m
}

func (m *mockOrderStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderStore) SetPaymentSession(_ context.Context, orderID, sessionID string) error {
	o, ok := m.orders[orderID]
	if !ok {
		return models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	o.SessionID = sessionID
	return nil
}

func (m *mockOrderStore) MarkPaid(_ context.Context, orderID, paymentID string) (bool, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return false, models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	if o.IsPaid {
		return true, nil
	}
	switch o.Status {
	case models.StatusCancelled, models.StatusReturned, models.StatusRefunded:
		return false, models.Reject(models.ReasonInvalidTransition,
			"cannot settle payment for an order in status "+string(o.Status))
	}
	now := time.Now()
	o.IsPaid = true
	o.PaidAt = &now
	o.Status = models.StatusConfirmed
	o.PaymentResult = &models.PaymentResult{PaymentID: paymentID, Status: "paid"}
	return false, nil
}

// ---- Mock Provider ----

type mockProvider struct {
	sessions int
	fail     bool
}

func (m *mockProvider) CreateSession(orderID string, amount float64) (*models.PaymentSession, error) {
	if m.fail {
		return nil, errors.New("gateway unavailable")
	}
	m.sessions++
	return &models.PaymentSession{
		SessionID: "sess-1",
		OrderID:   orderID,
		Amount:    amount,
		Currency:  "INR",
		CreatedAt: time.Now(),
	}, nil
}

// ---- Mock Notifier ----

type mockPaidNotifier struct {
	paid        int
	lastPayment string
}

func (m *mockPaidNotifier) OrderPaid(_ *models.Order, paymentID string) {
	m.paid++
	m.lastPayment = paymentID
}

// ---- Fixtures ----

func unpaidOrder() *models.Order {
	return &models.Order{
		OrderID:       "order-1",
		UserID:        "user-1",
		PaymentMethod: models.PaymentMethodOnline,
		TotalPrice:    229,
		Status:        models.StatusPending,
	}
}

func newTestService(store *mockOrderStore, provider *mockProvider, notify *mockPaidNotifier) *payment.Service {
	return payment.NewService(store, provider, notify, logger.NewLogger(), testSecret)
}

func rejectionReason(t *testing.T, err error) string {
	t.Helper()
	var rejection *models.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected RejectionError, got %v", err)
	}
	return rejection.Reason
}

// ---- CreateSession ----

func TestCreateSessionChargesStoredTotal(t *testing.T) {
	store := newMockOrderStore(unpaidOrder())
	provider := &mockProvider{}
	svc := newTestService(store, provider, &mockPaidNotifier{})

	session, err := svc.CreateSession(context.Background(), "order-1", "user-1", false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if session.Amount != 229 {
		t.Errorf("Expected amount 229 from the stored total, got %f", session.Amount)
	}
	if store.orders["order-1"].SessionID != "sess-1" {
		t.Errorf("Expected session persisted on the order, got %q", store.orders["order-1"].SessionID)
	}
}

func TestCreateSessionRejections(t *testing.T) {
	codOrder := unpaidOrder()
	codOrder.PaymentMethod = models.PaymentMethodCashOnDelivery

	paidOrder := unpaidOrder()
	paidOrder.IsPaid = true

	tests := []struct {
		name   string
		order  *models.Order
		userID string
		reason string
	}{
		{"unknown order", nil, "user-1", models.ReasonOrderNotFound},
		{"foreign order", unpaidOrder(), "someone-else", models.ReasonOrderNotFound},
		{"cash on delivery", codOrder, "user-1", models.ReasonValidationFailed},
		{"already paid", paidOrder, "user-1", models.ReasonValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockOrderStore()
			if tt.order != nil {
				store.orders[tt.order.OrderID] = tt.order
			}
			svc := newTestService(store, &mockProvider{}, &mockPaidNotifier{})

			_, err := svc.CreateSession(context.Background(), "order-1", tt.userID, false)
			if got := rejectionReason(t, err); got != tt.reason {
				t.Errorf("Expected %s, got %s", tt.reason, got)
			}
		})
	}
}

func TestCreateSessionAdminBypassesOwnership(t *testing.T) {
	store := newMockOrderStore(unpaidOrder())
	svc := newTestService(store, &mockProvider{}, &mockPaidNotifier{})

	if _, err := svc.CreateSession(context.Background(), "order-1", "admin-user", true); err != nil {
		t.Fatalf("Expected no error for admin, got %v", err)
	}
}

// ---- VerifyCallback ----

func verifiedCallback(sessionID, paymentID string) models.PaymentCallback {
	return models.PaymentCallback{
		OrderID:   "order-1",
		SessionID: sessionID,
		PaymentID: paymentID,
		Signature: payment.Sign(testSecret, sessionID, paymentID),
	}
}

func TestVerifyCallbackMarksPaidAndNotifies(t *testing.T) {
	order := unpaidOrder()
	order.SessionID = "sess-1"
	store := newMockOrderStore(order)
	notify := &mockPaidNotifier{}
	svc := newTestService(store, &mockProvider{}, notify)

	settled, err := svc.VerifyCallback(context.Background(), verifiedCallback("sess-1", "pay-123"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !settled.IsPaid {
		t.Error("Expected order marked paid")
	}
	if settled.Status != models.StatusConfirmed {
		t.Errorf("Expected status confirmed, got %s", settled.Status)
	}
	if notify.paid != 1 || notify.lastPayment != "pay-123" {
		t.Errorf("Expected one paid notification for pay-123, got %d for %q", notify.paid, notify.lastPayment)
	}
}

func TestVerifyCallbackRejectsBadSignature(t *testing.T) {
	order := unpaidOrder()
	order.SessionID = "sess-1"
	store := newMockOrderStore(order)
	notify := &mockPaidNotifier{}
	svc := newTestService(store, &mockProvider{}, notify)

	cb := verifiedCallback("sess-1", "pay-123")
	cb.Signature = payment.Sign("wrong-secret", "sess-1", "pay-123")

	_, err := svc.VerifyCallback(context.Background(), cb)
	if got := rejectionReason(t, err); got != models.ReasonSignatureMismatch {
		t.Errorf("Expected %s, got %s", models.ReasonSignatureMismatch, got)
	}
	if store.orders["order-1"].IsPaid {
		t.Error("Expected order to stay unpaid")
	}
	if notify.paid != 0 {
		t.Error("Expected no notification for a forged callback")
	}
}

// A valid signature over the wrong session must not settle the order: the
// signature is recomputed from the session stored at session creation.
func TestVerifyCallbackRejectsSessionMismatch(t *testing.T) {
	order := unpaidOrder()
	order.SessionID = "sess-1"
	store := newMockOrderStore(order)
	svc := newTestService(store, &mockProvider{}, &mockPaidNotifier{})

	_, err := svc.VerifyCallback(context.Background(), verifiedCallback("sess-other", "pay-123"))
	if got := rejectionReason(t, err); got != models.ReasonSignatureMismatch {
		t.Errorf("Expected %s, got %s", models.ReasonSignatureMismatch, got)
	}
}

func TestVerifyCallbackRejectsWithoutSession(t *testing.T) {
	store := newMockOrderStore(unpaidOrder()) // no session opened
	svc := newTestService(store, &mockProvider{}, &mockPaidNotifier{})

	_, err := svc.VerifyCallback(context.Background(), verifiedCallback("sess-1", "pay-123"))
	if got := rejectionReason(t, err); got != models.ReasonSignatureMismatch {
		t.Errorf("Expected %s, got %s", models.ReasonSignatureMismatch, got)
	}
}

func TestVerifyCallbackUnknownOrder(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockProvider{}, &mockPaidNotifier{})

	_, err := svc.VerifyCallback(context.Background(), verifiedCallback("sess-1", "pay-123"))
	if got := rejectionReason(t, err); got != models.ReasonOrderNotFound {
		t.Errorf("Expected %s, got %s", models.ReasonOrderNotFound, got)
	}
}

// A verified callback for an order cancelled in the meantime must not settle
// it: the cancellation already put the stock back.
func TestVerifyCallbackCancelledOrderNotSettled(t *testing.T) {
	order := unpaidOrder()
	order.SessionID = "sess-1"
	order.Status = models.StatusCancelled
	store := newMockOrderStore(order)
	notify := &mockPaidNotifier{}
	svc := newTestService(store, &mockProvider{}, notify)

	_, err := svc.VerifyCallback(context.Background(), verifiedCallback("sess-1", "pay-123"))
	if got := rejectionReason(t, err); got != models.ReasonInvalidTransition {
		t.Errorf("Expected %s, got %s", models.ReasonInvalidTransition, got)
	}
	if store.orders["order-1"].IsPaid {
		t.Error("Expected cancelled order to stay unpaid")
	}
	if notify.paid != 0 {
		t.Error("Expected no paid notification for a cancelled order")
	}
}

// A replayed callback settles nothing twice: the order keeps its original
// payment record and the customer is not renotified.
func TestVerifyCallbackReplayIsIdempotent(t *testing.T) {
	order := unpaidOrder()
	order.SessionID = "sess-1"
	store := newMockOrderStore(order)
	notify := &mockPaidNotifier{}
	svc := newTestService(store, &mockProvider{}, notify)

	cb := verifiedCallback("sess-1", "pay-123")
	if _, err := svc.VerifyCallback(context.Background(), cb); err != nil {
		t.Fatalf("First callback failed: %v", err)
	}

	settled, err := svc.VerifyCallback(context.Background(), cb)
	if err != nil {
		t.Fatalf("Expected replay to succeed, got %v", err)
	}
	if !settled.IsPaid {
		t.Error("Expected order to remain paid")
	}
	if settled.PaymentResult.PaymentID != "pay-123" {
		t.Errorf("Expected original payment preserved, got %s", settled.PaymentResult.PaymentID)
	}
	if notify.paid != 1 {
		t.Errorf("Expected exactly one paid notification, got %d", notify.paid)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	a := payment.Sign(testSecret, "sess-1", "pay-123")
	b := payment.Sign(testSecret, "sess-1", "pay-123")
	if a != b {
		t.Error("Expected identical signatures for identical input")
	}
	if a == payment.Sign(testSecret, "sess-1", "pay-124") {
		t.Error("Expected different payment IDs to produce different signatures")
	}
	if a == payment.Sign("other-secret", "sess-1", "pay-123") {
		t.Error("Expected different secrets to produce different signatures")
	}
}
