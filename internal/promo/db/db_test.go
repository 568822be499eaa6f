package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-bookstore/internal/models"
	promodb "ms-bookstore/internal/promo/db"
)

func setupPromoDB(t *testing.T) *promodb.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })
	// Every pool connection to "file::memory:" gets its own database; a single
	// connection keeps all goroutines on the same one.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	err = bunDB.ResetModel(context.Background(),
		(*models.PromoCode)(nil),
		(*models.PromoCodeUsage)(nil),
	)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	return promodb.New(bunDB)
}

func seedCode(t *testing.T, d *promodb.DB, code *models.PromoCode) {
	t.Helper()
	if err := d.Create(context.Background(), code); err != nil {
		t.Fatalf("Failed to seed promo code: %v", err)
	}
}

func sampleCode() *models.PromoCode {
	return &models.PromoCode{
		PromoID:       "promo-1",
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercent,
		DiscountValue: 10,
		UsageLimit:    2,
		PerUserLimit:  1,
		ExpiryDate:    time.Now().Add(24 * time.Hour),
		IsActive:      true,
	}
}

func TestFindByCodeIsCaseInsensitive(t *testing.T) {
	d := setupPromoDB(t)
	seedCode(t, d, sampleCode())

	for _, input := range []string{"SAVE10", "save10", "  Save10 "} {
		found, err := d.FindByCode(context.Background(), input)
		if err != nil {
			t.Fatalf("FindByCode(%q) failed: %v", input, err)
		}
		if found == nil {
			t.Fatalf("FindByCode(%q) returned nil", input)
		}
		if found.PromoID != "promo-1" {
			t.Errorf("Expected promo-1, got %s", found.PromoID)
		}
	}
}

func TestFindByCodeUnknownReturnsNil(t *testing.T) {
	d := setupPromoDB(t)

	found, err := d.FindByCode(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found != nil {
		t.Errorf("Expected nil for unknown code, got %+v", found)
	}
}

func TestRedeemIncrementsCounterAndRecordsUsage(t *testing.T) {
	d := setupPromoDB(t)
	code := sampleCode()
	seedCode(t, d, code)

	err := d.Redeem(context.Background(), d.Bun, code, "user-1", "order-1", 50)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	reloaded, err := d.GetByID(context.Background(), code.PromoID)
	if err != nil {
		t.Fatalf("Failed to reload promo: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Errorf("Expected used_count 1, got %d", reloaded.UsedCount)
	}

	count, err := d.CountUsage(context.Background(), code.PromoID, "user-1")
	if err != nil {
		t.Fatalf("Failed to count usage: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected usage count 1, got %d", count)
	}
}

func TestRedeemStopsAtUsageLimit(t *testing.T) {
	d := setupPromoDB(t)
	code := sampleCode() // usage_limit 2
	seedCode(t, d, code)

	if err := d.Redeem(context.Background(), d.Bun, code, "user-1", "order-1", 50); err != nil {
		t.Fatalf("First redemption failed: %v", err)
	}
	if err := d.Redeem(context.Background(), d.Bun, code, "user-2", "order-2", 50); err != nil {
		t.Fatalf("Second redemption failed: %v", err)
	}

	err := d.Redeem(context.Background(), d.Bun, code, "user-3", "order-3", 50)
	var rejection *models.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected RejectionError, got %v", err)
	}
	if rejection.Reason != models.ReasonPromoLimitReached {
		t.Errorf("Expected %s, got %s", models.ReasonPromoLimitReached, rejection.Reason)
	}

	// The counter never exceeds the limit.
	reloaded, _ := d.GetByID(context.Background(), code.PromoID)
	if reloaded.UsedCount != 2 {
		t.Errorf("Expected used_count 2, got %d", reloaded.UsedCount)
	}
}

// Redemptions racing for the last slots must never push used_count past the
// limit: the guarded increment decides the winners.
func TestConcurrentRedeemsStopAtUsageLimit(t *testing.T) {
	d := setupPromoDB(t)
	code := sampleCode() // usage_limit 2
	seedCode(t, d, code)

	const attempts = 6
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", n)
			order := fmt.Sprintf("order-%d", n)
			errs <- d.Redeem(context.Background(), d.Bun, code, user, order, 50)
		}(i)
	}
	wg.Wait()
	close(errs)

	wins, losses := 0, 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		var rejection *models.RejectionError
		if !errors.As(err, &rejection) {
			t.Fatalf("Expected RejectionError, got %v", err)
		}
		if rejection.Reason != models.ReasonPromoLimitReached {
			t.Errorf("Expected %s, got %s", models.ReasonPromoLimitReached, rejection.Reason)
		}
		losses++
	}
	if wins != 2 || losses != attempts-2 {
		t.Errorf("Expected 2 winners and %d losers, got %d and %d", attempts-2, wins, losses)
	}

	reloaded, _ := d.GetByID(context.Background(), code.PromoID)
	if reloaded.UsedCount != 2 {
		t.Errorf("Expected used_count 2, got %d", reloaded.UsedCount)
	}
	usages, err := d.UsageHistory(context.Background(), code.PromoID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(usages) != 2 {
		t.Errorf("Expected 2 ledger rows, got %d", len(usages))
	}
}

func TestRedeemEnforcesPerUserLimit(t *testing.T) {
	d := setupPromoDB(t)
	code := sampleCode() // per_user_limit 1
	seedCode(t, d, code)

	if err := d.Redeem(context.Background(), d.Bun, code, "user-1", "order-1", 50); err != nil {
		t.Fatalf("First redemption failed: %v", err)
	}

	err := d.Redeem(context.Background(), d.Bun, code, "user-1", "order-2", 50)
	var rejection *models.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected RejectionError, got %v", err)
	}
	if rejection.Reason != models.ReasonPromoUserLimit {
		t.Errorf("Expected %s, got %s", models.ReasonPromoUserLimit, rejection.Reason)
	}

	// The rejected attempt wrote nothing.
	reloaded, _ := d.GetByID(context.Background(), code.PromoID)
	if reloaded.UsedCount != 1 {
		t.Errorf("Expected used_count 1, got %d", reloaded.UsedCount)
	}
}

func TestCreateNormalizesCode(t *testing.T) {
	d := setupPromoDB(t)

	code := sampleCode()
	code.Code = "  flat50 "
	seedCode(t, d, code)

	found, err := d.FindByCode(context.Background(), "FLAT50")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found == nil {
		t.Fatal("Expected to find normalized code, got nil")
	}
	if found.Code != "FLAT50" {
		t.Errorf("Expected stored code FLAT50, got %s", found.Code)
	}
}

func TestDeactivateUnknownPromo(t *testing.T) {
	d := setupPromoDB(t)

	err := d.Deactivate(context.Background(), "no-such-promo")
	var rejection *models.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected RejectionError, got %v", err)
	}
	if rejection.Reason != models.ReasonPromoNotFound {
		t.Errorf("Expected %s, got %s", models.ReasonPromoNotFound, rejection.Reason)
	}
}

func TestDeactivateKeepsRow(t *testing.T) {
	d := setupPromoDB(t)
	code := sampleCode()
	seedCode(t, d, code)

	if err := d.Deactivate(context.Background(), code.PromoID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// The code is still there for validation to report PROMO_INACTIVE.
	found, err := d.FindByCode(context.Background(), code.Code)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found == nil {
		t.Fatal("Expected deactivated code to remain findable")
	}
	if found.IsActive {
		t.Error("Expected is_active false after deactivation")
	}
}

func TestUsageHistory(t *testing.T) {
	d := setupPromoDB(t)
	code := sampleCode()
	code.PerUserLimit = 2
	seedCode(t, d, code)

	_ = d.Redeem(context.Background(), d.Bun, code, "user-1", "order-1", 25)
	_ = d.Redeem(context.Background(), d.Bun, code, "user-1", "order-2", 30)

	usages, err := d.UsageHistory(context.Background(), code.PromoID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(usages) != 2 {
		t.Fatalf("Expected 2 ledger rows, got %d", len(usages))
	}
	for _, usage := range usages {
		if usage.PromoID != code.PromoID || usage.UserID != "user-1" {
			t.Errorf("Unexpected ledger row: %+v", usage)
		}
	}
}
