package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-bookstore/internal/models"
)

var ErrBookNotFound = errors.New("book not found")

// InsufficientStockError identifies the line item that could not be reserved.
type InsufficientStockError struct {
	BookID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %s", e.BookID)
}

// Ledger owns the available quantity of every book. Stock is only ever
// mutated through Reserve and Release; both are single conditional updates so
// concurrent checkouts for the last unit cannot both succeed.
type Ledger struct {
	Bun *bun.DB
}

func NewLedger(bunDB *bun.DB) *Ledger {
	return &Ledger{Bun: bunDB}
}

// Reserve decrements stock by qty only if at least qty units are available.
// The check and the decrement are one UPDATE; there is no read-then-write
// window for a concurrent reservation to slip through.
func (l *Ledger) Reserve(ctx context.Context, bookID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve %s: quantity must be positive, got %d", bookID, qty)
	}

	res, err := l.Bun.NewUpdate().
		Model((*models.Book)(nil)).
		Set("stock = stock - ?", qty).
		Where("book_id = ?", bookID).
		Where("stock >= ?", qty).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", bookID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", bookID, err)
	}
	if rows == 0 {
		exists, err := l.Bun.NewSelect().
			Model((*models.Book)(nil)).
			Where("book_id = ?", bookID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("reserve %s: %w", bookID, err)
		}
		if !exists {
			return ErrBookNotFound
		}
		return &InsufficientStockError{BookID: bookID}
	}
	return nil
}

// Release returns qty units to the shelf. Used both for compensation when a
// checkout fails partway and for legitimate returns on cancellation.
func (l *Ledger) Release(ctx context.Context, bookID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release %s: quantity must be positive, got %d", bookID, qty)
	}

	_, err := l.Bun.NewUpdate().
		Model((*models.Book)(nil)).
		Set("stock = stock + ?", qty).
		Where("book_id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release %s: %w", bookID, err)
	}
	return nil
}

// ReserveAll reserves every line or none. On the first failure all prior
// reservations of this attempt are released before the error is returned.
func (l *Ledger) ReserveAll(ctx context.Context, lines []models.CartLine) error {
	reserved := make([]models.CartLine, 0, len(lines))
	for _, line := range lines {
		if err := l.Reserve(ctx, line.BookID, line.Quantity); err != nil {
			for _, r := range reserved {
				_ = l.Release(ctx, r.BookID, r.Quantity)
			}
			return err
		}
		reserved = append(reserved, line)
	}
	return nil
}

// ReleaseAll returns the stock of every order item, reporting the first error
// after attempting all of them.
func (l *Ledger) ReleaseAll(ctx context.Context, items []models.OrderItem) error {
	var firstErr error
	for _, item := range items {
		if err := l.Release(ctx, item.BookID, item.Quantity); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetBook fetches a catalog entry for price/title snapshots.
func (l *Ledger) GetBook(ctx context.Context, bookID string) (*models.Book, error) {
	var book models.Book
	err := l.Bun.NewSelect().
		Model(&book).
		Where("book_id = ?", bookID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBooks batch-fetches catalog entries for the requested ids.
func (l *Ledger) GetBooks(ctx context.Context, bookIDs []string) ([]models.Book, error) {
	var books []models.Book
	err := l.Bun.NewSelect().
		Model(&books).
		Where("book_id IN (?)", bun.In(bookIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return books, nil
}

// LowStock reports books whose stock sits in the explicit range [0, threshold].
func (l *Ledger) LowStock(ctx context.Context, threshold int) ([]models.LowStockBook, error) {
	var rows []models.LowStockBook
	err := l.Bun.NewSelect().
		Model((*models.Book)(nil)).
		Column("book_id", "title", "price", "stock").
		Where("stock >= ?", 0).
		Where("stock <= ?", threshold).
		Order("stock ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
