package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-bookstore/internal/models"
)

// OrderEvent is the payload published on every lifecycle topic.
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	PromoID   string    `json:"promo_id,omitempty"`
	PaymentID string    `json:"payment_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Producer publishes order lifecycle events, one writer per topic.
type Producer struct {
	created   *kafka.Writer
	paid      *kafka.Writer
	cancelled *kafka.Writer
}

func NewProducer(brokers []string, createdTopic, paidTopic, cancelledTopic string) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		created:   newWriter(createdTopic),
		paid:      newWriter(paidTopic),
		cancelled: newWriter(cancelledTopic),
	}
}

func (p *Producer) publish(ctx context.Context, w *kafka.Writer, event OrderEvent) error {
	event.Timestamp = time.Now()
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: msg,
	})
}

// PublishOrderCreated streams the order creation event.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, p.created, OrderEvent{
		Type:    "order_created",
		OrderID: order.OrderID,
		UserID:  order.UserID,
		Status:  string(order.Status),
		Total:   order.TotalPrice,
		PromoID: order.PromoID,
	})
}

// PublishOrderPaid streams the payment confirmation event.
func (p *Producer) PublishOrderPaid(ctx context.Context, order *models.Order, paymentID string) error {
	return p.publish(ctx, p.paid, OrderEvent{
		Type:      "order_paid",
		OrderID:   order.OrderID,
		UserID:    order.UserID,
		Status:    string(models.StatusConfirmed),
		Total:     order.TotalPrice,
		PaymentID: paymentID,
	})
}

// PublishOrderCancelled streams the cancellation event.
func (p *Producer) PublishOrderCancelled(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, p.cancelled, OrderEvent{
		Type:    "order_cancelled",
		OrderID: order.OrderID,
		UserID:  order.UserID,
		Status:  string(models.StatusCancelled),
		Total:   order.TotalPrice,
	})
}

// Close shuts down all writers.
func (p *Producer) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.created, p.paid, p.cancelled} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
