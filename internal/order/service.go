package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-bookstore/internal/config"
	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
	"ms-bookstore/internal/promo"
	"ms-bookstore/internal/stock"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderWithPromo(ctx context.Context, order *models.Order, redeem func(ctx context.Context, tx bun.IDB) error) error
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	MarkDelivered(ctx context.Context, orderID string, codPaid bool) error
}

type StockLedger interface {
	GetBooks(ctx context.Context, bookIDs []string) ([]models.Book, error)
	ReserveAll(ctx context.Context, lines []models.CartLine) error
	ReleaseAll(ctx context.Context, items []models.OrderItem) error
}

type PromoStore interface {
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	CountUsage(ctx context.Context, promoID, userID string) (int, error)
	Redeem(ctx context.Context, idb bun.IDB, code *models.PromoCode, userID, orderID string, discountAmount float64) error
}

type CheckoutGuard interface {
	Acquire(ctx context.Context, userID, attemptID string) (bool, error)
	Release(ctx context.Context, userID, attemptID string) error
}

type Notifier interface {
	OrderCreated(order *models.Order, customerEmail string)
	OrderCancelled(order *models.Order)
}

type OrderService struct {
	DB     DBLayer
	Stock  StockLedger
	Promos PromoStore
	Guard  CheckoutGuard
	Notify Notifier
	Logger *logger.Logger
	Cfg    config.CheckoutConfig
}

func NewOrderService(db DBLayer, stockLedger StockLedger, promos PromoStore, guard CheckoutGuard, notify Notifier, log *logger.Logger, cfg config.CheckoutConfig) *OrderService {
	return &OrderService{
		DB:     db,
		Stock:  stockLedger,
		Promos: promos,
		Guard:  guard,
		Notify: notify,
		Logger: log,
		Cfg:    cfg,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ---------------- CHECKOUT ----------------

// Checkout runs the whole placement flow: validate, price, reserve stock,
// redeem the promo and insert the order in one transaction, then notify.
// Stock reserved by an attempt that fails later in the flow is always released
// before the error is returned.
func (s *OrderService) Checkout(ctx context.Context, userID, customerEmail string, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if rej := validateCheckout(req); rej != nil {
		return nil, rej
	}

	orderID := uuid.NewString()
	s.Logger.LogOrder("CHECKOUT", orderID, fmt.Sprintf("user %s, %d line(s)", userID, len(req.Items)))

	// One checkout per user at a time. The TTL bounds how long a crashed
	// attempt can block the user.
	ok, err := s.Guard.Acquire(ctx, userID, orderID)
	if err != nil {
		return nil, fmt.Errorf("checkout guard: %w", err)
	}
	if !ok {
		return nil, models.Reject(models.ReasonCheckoutInProgress, "another checkout is already in progress")
	}
	defer func() {
		if err := s.Guard.Release(ctx, userID, orderID); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("release checkout lock for %s: %v", userID, err))
		}
	}()

	items, itemsPrice, rej, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return nil, rej
	}

	// Tax and shipping come off the undiscounted figures; the promo is then
	// measured against the full cart total (items + tax + shipping), so a
	// minimum-cart-value code sees the amount the customer would actually pay.
	taxPrice := round2(itemsPrice * s.Cfg.TaxRate)
	shippingPrice := s.Cfg.ShippingFlat
	if itemsPrice >= s.Cfg.FreeShippingAbove {
		shippingPrice = 0
	}
	cartTotal := round2(itemsPrice + taxPrice + shippingPrice)

	// The promo is validated here for an early, precise rejection; the limits
	// are enforced again inside the order transaction where they are final.
	var promoCode *models.PromoCode
	var discount float64
	if req.PromoCode != "" {
		promoCode, discount, rej, err = s.applyPromo(ctx, userID, req.PromoCode, cartTotal)
		if err != nil {
			return nil, err
		}
		if rej != nil {
			return nil, rej
		}
	}

	totalPrice := round2(cartTotal - discount)

	// Reserve before insert. Each line decrement is individually atomic, so a
	// burst of checkouts for the last copy resolves to exactly one winner.
	if err := s.Stock.ReserveAll(ctx, req.Items); err != nil {
		var insufficient *stock.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.Logger.LogOrder("REJECTED", orderID, "insufficient stock for "+insufficient.BookID)
			return nil, &models.RejectionError{
				Reason:  models.ReasonInsufficientStock,
				Message: "not enough stock for book " + insufficient.BookID,
			}
		}
		if errors.Is(err, stock.ErrBookNotFound) {
			return nil, models.Reject(models.ReasonValidationFailed, "unknown book in cart")
		}
		return nil, fmt.Errorf("reserve stock: %w", err)
	}

	order := &models.Order{
		OrderID:         orderID,
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      itemsPrice,
		TaxPrice:        taxPrice,
		ShippingPrice:   shippingPrice,
		DiscountAmount:  discount,
		TotalPrice:      totalPrice,
		Status:          models.StatusPending,
		CreatedAt:       time.Now(),
	}

	if promoCode == nil {
		err = s.DB.CreateOrder(ctx, order)
	} else {
		order.PromoID = promoCode.PromoID
		err = s.DB.CreateOrderWithPromo(ctx, order, func(ctx context.Context, tx bun.IDB) error {
			return s.Promos.Redeem(ctx, tx, promoCode, userID, orderID, discount)
		})
	}
	if err != nil {
		// The insert (or the redemption inside it) failed after stock was
		// taken; hand the copies back before surfacing the error.
		if relErr := s.Stock.ReleaseAll(ctx, items); relErr != nil {
			s.Logger.Error("STOCK", fmt.Sprintf("release after failed order %s: %v", orderID, relErr))
		}
		var rejection *models.RejectionError
		if errors.As(err, &rejection) {
			s.Logger.LogOrder("REJECTED", orderID, rejection.Reason)
			return nil, rejection
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.Logger.LogOrder("CREATED", orderID, fmt.Sprintf("total %.2f, status %s", totalPrice, order.Status))
	s.Notify.OrderCreated(order, customerEmail)

	return &models.CheckoutResponse{
		OrderID:        order.OrderID,
		UserID:         order.UserID,
		ItemsPrice:     order.ItemsPrice,
		TaxPrice:       order.TaxPrice,
		ShippingPrice:  order.ShippingPrice,
		DiscountAmount: order.DiscountAmount,
		TotalPrice:     order.TotalPrice,
		Status:         string(order.Status),
	}, nil
}

func validateCheckout(req models.CheckoutRequest) *models.RejectionError {
	if len(req.Items) == 0 {
		return models.Reject(models.ReasonValidationFailed, "cart is empty")
	}
	seen := make(map[string]bool, len(req.Items))
	for _, line := range req.Items {
		if line.BookID == "" {
			return models.Reject(models.ReasonValidationFailed, "missing book_id")
		}
		if line.Quantity <= 0 {
			return models.Reject(models.ReasonValidationFailed, "quantity must be positive")
		}
		if seen[line.BookID] {
			return models.Reject(models.ReasonValidationFailed, "duplicate book in cart: "+line.BookID)
		}
		seen[line.BookID] = true
	}
	if req.PaymentMethod != models.PaymentMethodOnline && req.PaymentMethod != models.PaymentMethodCashOnDelivery {
		return models.Reject(models.ReasonValidationFailed, "unsupported payment method")
	}
	addr := req.ShippingAddress
	if addr.Name == "" || addr.Line1 == "" || addr.City == "" || addr.PostalCode == "" {
		return models.Reject(models.ReasonValidationFailed, "incomplete shipping address")
	}
	return nil
}

// snapshotItems resolves cart lines against the catalog. Titles and unit
// prices are frozen here; later catalog edits never change an existing order.
func (s *OrderService) snapshotItems(ctx context.Context, lines []models.CartLine) ([]models.OrderItem, float64, *models.RejectionError, error) {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.BookID
	}

	books, err := s.Stock.GetBooks(ctx, ids)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("fetch books: %w", err)
	}
	byID := make(map[string]models.Book, len(books))
	for _, b := range books {
		byID[b.BookID] = b
	}

	items := make([]models.OrderItem, 0, len(lines))
	var itemsPrice float64
	for _, line := range lines {
		book, ok := byID[line.BookID]
		if !ok {
			return nil, 0, models.Reject(models.ReasonValidationFailed, "unknown book: "+line.BookID), nil
		}
		items = append(items, models.OrderItem{
			BookID:    book.BookID,
			Title:     book.Title,
			UnitPrice: book.Price,
			Quantity:  line.Quantity,
		})
		itemsPrice += book.Price * float64(line.Quantity)
	}
	return items, round2(itemsPrice), nil, nil
}

func (s *OrderService) applyPromo(ctx context.Context, userID, code string, cartTotal float64) (*models.PromoCode, float64, *models.RejectionError, error) {
	promoCode, err := s.Promos.FindByCode(ctx, code)
	if err != nil {
		return nil, 0, nil, err
	}

	var userUsage int
	if promoCode != nil {
		userUsage, err = s.Promos.CountUsage(ctx, promoCode.PromoID, userID)
		if err != nil {
			return nil, 0, nil, err
		}
	}

	result, rej := promo.Validate(promoCode, userUsage, cartTotal, time.Now())
	if rej != nil {
		return nil, 0, rej, nil
	}
	return promoCode, result.Discount, nil, nil
}

// ---------------- READS ----------------

// GetOrder fetches one order, enforcing that non-admins only see their own.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (!isAdmin && order.UserID != userID) {
		// Hiding others' orders behind the same 404 keeps order IDs unguessable.
		return nil, models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	return order, nil
}

func (s *OrderService) GetMyOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.DB.GetOrdersByUser(ctx, userID)
}

// ---------------- LIFECYCLE ----------------

// Cancel cancels an order that has not shipped yet and returns its stock.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID string, isAdmin bool) error {
	order, err := s.GetOrder(ctx, orderID, userID, isAdmin)
	if err != nil {
		return err
	}
	if !Cancellable(order.Status) {
		return models.Reject(models.ReasonInvalidTransition,
			fmt.Sprintf("cannot cancel an order in status %s", order.Status))
	}

	if err := s.DB.UpdateStatus(ctx, orderID, models.StatusCancelled); err != nil {
		return err
	}
	order.Status = models.StatusCancelled

	if err := s.Stock.ReleaseAll(ctx, order.Items); err != nil {
		s.Logger.Error("STOCK", fmt.Sprintf("release stock for cancelled order %s: %v", orderID, err))
	}

	s.Logger.LogOrder("CANCELLED", orderID, "stock released")
	s.Notify.OrderCancelled(order)
	return nil
}

// Transition moves an order along the lifecycle graph. Cancellation routes
// through Cancel so stock release is never skipped; delivery records the
// timestamp and settles cash-on-delivery payment.
func (s *OrderService) Transition(ctx context.Context, orderID string, to models.OrderStatus) (*models.Order, error) {
	if !ValidStatus(to) {
		return nil, models.Reject(models.ReasonValidationFailed, "unknown status: "+string(to))
	}

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.Reject(models.ReasonOrderNotFound, "order not found")
	}
	if !CanTransition(order.Status, to) {
		return nil, models.Reject(models.ReasonInvalidTransition,
			fmt.Sprintf("cannot move from %s to %s", order.Status, to))
	}

	switch to {
	case models.StatusCancelled:
		if err := s.Cancel(ctx, orderID, order.UserID, true); err != nil {
			return nil, err
		}
	case models.StatusDelivered:
		codPaid := order.PaymentMethod == models.PaymentMethodCashOnDelivery && !order.IsPaid
		if err := s.DB.MarkDelivered(ctx, orderID, codPaid); err != nil {
			return nil, err
		}
	default:
		if err := s.DB.UpdateStatus(ctx, orderID, to); err != nil {
			return nil, err
		}
	}

	s.Logger.LogOrder("STATUS", orderID, fmt.Sprintf("%s -> %s", order.Status, to))
	return s.DB.GetOrderByID(ctx, orderID)
}
