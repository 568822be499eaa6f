package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-bookstore/internal/models"
	"ms-bookstore/internal/promo"
)

// DB persists promo codes and the redemption ledger.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// FindByCode looks up a promo code case-insensitively, trimming the input.
// Returns (nil, nil) when no such code exists; deactivated codes are still
// returned so validation can report the precise reason.
func (d *DB) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var pc models.PromoCode
	err := d.Bun.NewSelect().
		Model(&pc).
		Where("UPPER(code) = ?", promo.NormalizeCode(code)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find promo %q: %w", code, err)
	}
	return &pc, nil
}

func (d *DB) GetByID(ctx context.Context, promoID string) (*models.PromoCode, error) {
	var pc models.PromoCode
	err := d.Bun.NewSelect().
		Model(&pc).
		Where("promo_id = ?", promoID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promo %s: %w", promoID, err)
	}
	return &pc, nil
}

// CountUsage answers how many times a user has redeemed a code. The ledger
// rows are the authoritative count; it is never inferred from a denormalized
// counter elsewhere.
func (d *DB) CountUsage(ctx context.Context, promoID, userID string) (int, error) {
	return countUsage(ctx, d.Bun, promoID, userID)
}

func countUsage(ctx context.Context, idb bun.IDB, promoID, userID string) (int, error) {
	count, err := idb.NewSelect().
		Model((*models.PromoCodeUsage)(nil)).
		Where("promo_id = ?", promoID).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count usage for promo %s user %s: %w", promoID, userID, err)
	}
	return count, nil
}

// Redeem applies one redemption inside the caller's transaction: it re-reads
// the per-user count, increments used_count guarded by the usage limit, and
// appends the ledger row. All three happen against idb so they commit or roll
// back together with the order insert.
func (d *DB) Redeem(ctx context.Context, idb bun.IDB, code *models.PromoCode, userID, orderID string, discountAmount float64) error {
	userUsage, err := countUsage(ctx, idb, code.PromoID, userID)
	if err != nil {
		return err
	}
	if userUsage >= code.PerUserLimit {
		return models.Reject(models.ReasonPromoUserLimit, "promo code already used the maximum number of times")
	}

	res, err := idb.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("used_count = used_count + 1").
		Set("updated_at = ?", time.Now()).
		Where("promo_id = ?", code.PromoID).
		Where("used_count < usage_limit").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment used_count for promo %s: %w", code.PromoID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment used_count for promo %s: %w", code.PromoID, err)
	}
	if rows == 0 {
		return models.Reject(models.ReasonPromoLimitReached, "promo code usage limit reached")
	}

	usage := &models.PromoCodeUsage{
		UsageID:        uuid.NewString(),
		PromoID:        code.PromoID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: discountAmount,
		UsedAt:         time.Now(),
	}
	if _, err := idb.NewInsert().Model(usage).Exec(ctx); err != nil {
		return fmt.Errorf("record usage for promo %s: %w", code.PromoID, err)
	}
	return nil
}

// ---------------- ADMIN ----------------
// The admin surface never touches used_count or the ledger directly.

func (d *DB) Create(ctx context.Context, pc *models.PromoCode) error {
	if pc.PromoID == "" {
		pc.PromoID = uuid.NewString()
	}
	pc.Code = promo.NormalizeCode(pc.Code)
	pc.CreatedAt = time.Now()
	if _, err := d.Bun.NewInsert().Model(pc).Exec(ctx); err != nil {
		return fmt.Errorf("create promo %s: %w", pc.Code, err)
	}
	return nil
}

// Update edits the rule fields of a code. Usage counters are deliberately
// not updatable here.
func (d *DB) Update(ctx context.Context, pc *models.PromoCode) error {
	pc.UpdatedAt = time.Now()
	res, err := d.Bun.NewUpdate().
		Model(pc).
		Column("discount_type", "discount_value", "min_cart_value", "max_discount",
			"usage_limit", "per_user_limit", "expiry_date", "is_active", "updated_at").
		Where("promo_id = ?", pc.PromoID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update promo %s: %w", pc.PromoID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.Reject(models.ReasonPromoNotFound, "promo code not found")
	}
	return nil
}

// Deactivate is the logical delete: historical usage stays attributable, so
// codes are never physically removed.
func (d *DB) Deactivate(ctx context.Context, promoID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("promo_id = ?", promoID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate promo %s: %w", promoID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.Reject(models.ReasonPromoNotFound, "promo code not found")
	}
	return nil
}

func (d *DB) List(ctx context.Context) ([]models.PromoCode, error) {
	var codes []models.PromoCode
	err := d.Bun.NewSelect().
		Model(&codes).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	return codes, nil
}

// UsageHistory lists the redemption ledger for one code, newest first.
func (d *DB) UsageHistory(ctx context.Context, promoID string) ([]models.PromoCodeUsage, error) {
	var usages []models.PromoCodeUsage
	err := d.Bun.NewSelect().
		Model(&usages).
		Where("promo_id = ?", promoID).
		Order("used_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("usage history for promo %s: %w", promoID, err)
	}
	return usages, nil
}
