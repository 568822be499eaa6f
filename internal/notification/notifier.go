package notification

import (
	"context"
	"fmt"
	"time"

	"ms-bookstore/internal/kafka"
	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
)

// Notifier fans out order lifecycle side effects: Kafka events and invoice
// emails. Every method is fire-and-forget — failures are logged and never
// reach the order flow, so a dead broker or SMTP host cannot fail a checkout.
type Notifier struct {
	Producer *kafka.Producer
	Mailer   *Mailer
	QR       *QRGenerator
	PDF      *InvoicePDFGenerator
	Logger   *logger.Logger
}

func NewNotifier(producer *kafka.Producer, mailer *Mailer, qr *QRGenerator, log *logger.Logger) *Notifier {
	return &Notifier{
		Producer: producer,
		Mailer:   mailer,
		QR:       qr,
		PDF:      NewInvoicePDFGenerator(),
		Logger:   log,
	}
}

func (n *Notifier) ctx() (context.Context, context.CancelFunc) {
	// Detached from the request: the HTTP response must not wait on these.
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// OrderCreated publishes the creation event and mails the invoice.
func (n *Notifier) OrderCreated(order *models.Order, customerEmail string) {
	go func() {
		ctx, cancel := n.ctx()
		defer cancel()

		if n.Producer != nil {
			if err := n.Producer.PublishOrderCreated(ctx, order); err != nil {
				n.Logger.Error("KAFKA", fmt.Sprintf("order_created %s: %v", order.OrderID, err))
			} else {
				n.Logger.LogKafka("PUBLISH", "order_created", order.OrderID)
			}
		}
		n.sendInvoice(order, customerEmail)
	}()
}

// OrderPaid publishes the payment confirmation event.
func (n *Notifier) OrderPaid(order *models.Order, paymentID string) {
	go func() {
		ctx, cancel := n.ctx()
		defer cancel()

		if n.Producer != nil {
			if err := n.Producer.PublishOrderPaid(ctx, order, paymentID); err != nil {
				n.Logger.Error("KAFKA", fmt.Sprintf("order_paid %s: %v", order.OrderID, err))
			} else {
				n.Logger.LogKafka("PUBLISH", "order_paid", order.OrderID)
			}
		}
	}()
}

// OrderCancelled publishes the cancellation event.
func (n *Notifier) OrderCancelled(order *models.Order) {
	go func() {
		ctx, cancel := n.ctx()
		defer cancel()

		if n.Producer != nil {
			if err := n.Producer.PublishOrderCancelled(ctx, order); err != nil {
				n.Logger.Error("KAFKA", fmt.Sprintf("order_cancelled %s: %v", order.OrderID, err))
			} else {
				n.Logger.LogKafka("PUBLISH", "order_cancelled", order.OrderID)
			}
		}
	}()
}

func (n *Notifier) sendInvoice(order *models.Order, customerEmail string) {
	if n.Mailer == nil || customerEmail == "" {
		return
	}

	qrCode, err := n.QR.GenerateInvoiceQR(order)
	if err != nil {
		n.Logger.Error("EMAIL", fmt.Sprintf("invoice QR for %s: %v", order.OrderID, err))
		qrCode = nil // send the invoice without the QR
	}

	pdf, err := n.PDF.Generate(order, qrCode)
	if err != nil {
		n.Logger.Error("EMAIL", fmt.Sprintf("invoice PDF for %s: %v", order.OrderID, err))
		return
	}

	if err := n.Mailer.SendInvoice(customerEmail, order, pdf); err != nil {
		n.Logger.Error("EMAIL", fmt.Sprintf("invoice mail for %s: %v", order.OrderID, err))
		return
	}
	n.Logger.Info("EMAIL", fmt.Sprintf("invoice sent for order %s", order.OrderID))
}
