package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-bookstore/internal/auth"
	"ms-bookstore/internal/config"
	"ms-bookstore/internal/database/migrations"
	"ms-bookstore/internal/kafka"
	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/notification"
	"ms-bookstore/internal/order"
	orderdb "ms-bookstore/internal/order/db"
	"ms-bookstore/internal/order/order_api"
	rediswrap "ms-bookstore/internal/order/redis"
	"ms-bookstore/internal/payment"
	promodb "ms-bookstore/internal/promo/db"
	"ms-bookstore/internal/promo/promo_api"
	"ms-bookstore/internal/stock"
	"ms-bookstore/internal/stock/stock_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Bookstore Order Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	log.Info("DATABASE", "Running schema migrations")
	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		producer = kafka.NewProducer(cfg.Kafka.Brokers,
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.OrderPaid,
			cfg.Kafka.Topics.OrderCancelled,
		)
		defer producer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.OrderPaid,
			cfg.Kafka.Topics.OrderCancelled,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	var mailer *notification.Mailer
	if cfg.Email.Enabled {
		var err error
		mailer, err = notification.NewMailer(cfg.Email)
		if err != nil {
			log.Fatal("EMAIL", fmt.Sprintf("Mailer setup failed: %v", err))
		}
		log.Info("EMAIL", fmt.Sprintf("Invoice mailer initialized for %s", cfg.Email.FromAddress))
	} else {
		log.Warn("EMAIL", "Email disabled, invoices will not be sent")
	}

	notifier := notification.NewNotifier(producer, mailer, notification.NewQRGenerator(cfg.Payment.QRSecret), log)

	stockLedger := stock.NewLedger(bunDB)
	promoStore := promodb.New(bunDB)
	orderStore := orderdb.New(bunDB)
	guard := rediswrap.NewGuard(redisClient, cfg.Checkout.LockTTL)

	orderService := order.NewOrderService(orderStore, stockLedger, promoStore, guard, notifier, log, cfg.Checkout)

	provider := payment.NewProvider(cfg.Payment, log)
	paymentService := payment.NewService(orderStore, provider, notifier, log, cfg.Payment.KeySecret)

	orderHandler := order_api.NewHandler(orderService, log)
	paymentHandler := order_api.NewPaymentHandler(paymentService, log)
	promoHandler := promo_api.NewHandler(promoStore, log)
	stockHandler := stock_api.NewHandler(stockLedger, log, cfg.Checkout.LowStockThreshold)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	// The gateway posts callbacks server-to-server; the HMAC signature is the
	// authentication.
	r.Post("/api/payments/callback", paymentHandler.VerifyCallback)
	log.Info("ROUTER", "Payment callback endpoint registered at /api/payments/callback")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/checkout", orderHandler.Checkout)
				r.Get("/mine", orderHandler.GetMyOrders)
				r.Get("/{orderId}", orderHandler.GetOrder)
				r.Post("/{orderId}/cancel", orderHandler.CancelOrder)
				r.Post("/{orderId}/payment-session", paymentHandler.CreateSession)
			})
			log.Info("ROUTER", "Order routes registered under /api/orders")

			r.Post("/promos/validate", promoHandler.Validate)
			log.Info("ROUTER", "Promo validation registered at /api/promos/validate")

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Patch("/orders/{orderId}/status", orderHandler.UpdateStatus)

				r.Route("/promos", func(r chi.Router) {
					r.Get("/", promoHandler.List)
					r.Post("/", promoHandler.Create)
					r.Put("/{promoId}", promoHandler.Update)
					r.Delete("/{promoId}", promoHandler.Deactivate)
					r.Get("/{promoId}/usage", promoHandler.UsageHistory)
				})

				r.Get("/books/low-stock", stockHandler.LowStock)
			})
			log.Info("ROUTER", "Admin routes registered under /api/admin")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Bookstore Order Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Bookstore Order Service shutdown complete")
	}
}
