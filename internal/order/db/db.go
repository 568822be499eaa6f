package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-bookstore/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ---------------- ORDERS ----------------

// GetOrderByID fetches one order. Returns (nil, nil) when it does not exist.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &order, nil
}

// GetOrdersByUser fetches all orders for a user, newest first.
func (d *DB) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get orders for user %s: %w", userID, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// CreateOrder inserts an order that carries no promo code.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	if _, err := d.Bun.NewInsert().Model(order).Exec(ctx); err != nil {
		return fmt.Errorf("create order %s: %w", order.OrderID, err)
	}
	return nil
}

// CreateOrderWithPromo inserts the order and runs the promo redemption in one
// transaction. The redeem callback receives the transaction handle; if it
// rejects (limit raced to exhaustion, per-user cap hit) the order insert rolls
// back with it and no partial state survives.
func (d *DB) CreateOrderWithPromo(ctx context.Context, order *models.Order, redeem func(ctx context.Context, tx bun.IDB) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("create order %s: %w", order.OrderID, err)
		}
		return redeem(ctx, tx)
	})
}

// Orders in these statuses can never be settled: their stock is already back
// on the shelf (cancelled) or the money already went the other way.
var unsettleableStatuses = []models.OrderStatus{
	models.StatusCancelled,
	models.StatusReturned,
	models.StatusRefunded,
}

// MarkPaid flips an order to paid exactly once. The guard on is_paid makes a
// replayed callback a no-op: the second call reports alreadyPaid instead of
// overwriting the first payment's record. The status guard stops a late
// callback from resurrecting a cancelled order to confirmed.
func (d *DB) MarkPaid(ctx context.Context, orderID, paymentID string) (alreadyPaid bool, err error) {
	now := time.Now()
	result := &models.PaymentResult{
		PaymentID: paymentID,
		Status:    string(models.PaymentPaid),
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("is_paid = ?", true).
		Set("paid_at = ?", now).
		Set("payment_result = ?", result).
		Set("status = ?", models.StatusConfirmed).
		Set("updated_at = ?", now).
		Where("order_id = ?", orderID).
		Where("is_paid = ?", false).
		Where("status NOT IN (?)", bun.In(unsettleableStatuses)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark order %s paid: %w", orderID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark order %s paid: %w", orderID, err)
	}
	if rows == 0 {
		order, err := d.GetOrderByID(ctx, orderID)
		if err != nil {
			return false, err
		}
		if order == nil {
			return false, models.Reject(models.ReasonOrderNotFound, "order not found")
		}
		if order.IsPaid {
			return true, nil
		}
		return false, models.Reject(models.ReasonInvalidTransition,
			fmt.Sprintf("cannot settle payment for an order in status %s", order.Status))
	}
	return false, nil
}

// UpdateStatus writes the new status. Transition legality is the status
// machine's job; this is just the persistence step.
func (d *DB) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update order %s status: %w", orderID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	return nil
}

// MarkDelivered records delivery. For cash-on-delivery orders the courier
// collected payment at the door, so is_paid flips here too.
func (d *DB) MarkDelivered(ctx context.Context, orderID string, codPaid bool) error {
	now := time.Now()
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.StatusDelivered).
		Set("is_delivered = ?", true).
		Set("delivered_at = ?", now).
		Set("updated_at = ?", now).
		Where("order_id = ?", orderID)
	if codPaid {
		q = q.Set("is_paid = ?", true).Set("paid_at = ?", now)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark order %s delivered: %w", orderID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	return nil
}

// SetPaymentSession stores the provider session opened for this order.
func (d *DB) SetPaymentSession(ctx context.Context, orderID, sessionID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("session_id = ?", sessionID).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set session for order %s: %w", orderID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	return nil
}
