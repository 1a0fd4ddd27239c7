package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v82/client"

	"box-office/internal/bookings"
	"box-office/internal/config"
	"box-office/internal/handlers"
	"box-office/internal/kafka"
	"box-office/internal/logger"
	"box-office/internal/middleware"
	"box-office/internal/models"
	"box-office/internal/notify"
	"box-office/internal/payable"
	"box-office/internal/providers"
	rediswrap "box-office/internal/redis"
	"box-office/internal/storage"
)

// Global logger instance
var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Box Office starting up...")
	log.Info("SYSTEM", "Initializing components...")

	cfg := config.Load()
	log.Info("CONFIG", "Configuration loaded successfully")

	var store storage.Store
	if cfg.Database.InMemory {
		log.LogProcess("DATABASE", "Using in-memory store")
		store = storage.NewInMemoryStore()
	} else {
		log.LogProcess("DATABASE", "Initializing MySQL database...")
		mysqlStore, err := storage.NewMySQLStore(cfg.Database, log)
		if err != nil {
			log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
		}
		defer mysqlStore.Close()
		store = mysqlStore
		log.LogDatabase("INIT", "mysql", "MySQL storage initialized successfully")
	}

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer kafkaProducer.Close()
	log.LogKafka("INIT", "producer", "Kafka producer initialized successfully")

	// Initialize Stripe client
	var stripeClient *client.API
	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		log.Warn("STRIPE", "Online and POS payment methods will fail until a key is configured")
	}
	stripeClient = &client.API{}
	stripeClient.Init(cfg.Stripe.SecretKey, nil)
	log.LogProcess("STRIPE", "Stripe API client initialized")

	// Payment provider registry
	registry := providers.NewRegistry()
	registry.RegisterPayment(providers.NewCashProvider())
	registry.RegisterPayment(providers.NewCardProvider())
	registry.RegisterPayment(providers.NewOnlineProvider(stripeClient, log))
	registry.RegisterPayment(providers.NewPOSProvider(stripeClient, log))
	registry.RegisterRefund(providers.MethodCard, providers.NewManualRefundProvider())
	stripeRefunds := providers.NewStripeRefundProvider(stripeClient, log)
	registry.RegisterRefund(providers.MethodOnline, stripeRefunds)
	registry.RegisterRefund(providers.MethodPOS, stripeRefunds)
	log.LogProcess("SERVICE", "Payment providers registered")

	// Payable kind resolvers
	kinds := payable.NewKindRegistry()
	kinds.Register(models.PayableKindBooking, func(id string) (payable.Payable, error) {
		return store.GetBooking(id)
	})

	paymentService := payable.NewService(store, registry, kinds, log).
		WithQueue(kafkaProducer).
		WithEvents(kafkaProducer).
		WithNotifier(notify.NewEmailNotifier(log), cfg.Booking.AdminEmails)

	// Redis lock is optional: without it refunds still serialize through
	// the PENDING-transaction check.
	redisLock, err := rediswrap.NewRedis(cfg.Redis)
	if err != nil {
		log.Warn("REDIS", "Redis unavailable, refund locking disabled: "+err.Error())
	} else {
		defer redisLock.Close()
		paymentService.WithLocker(redisLock)
		log.LogProcess("SERVICE", "Redis refund locks enabled")
	}

	bookingService := bookings.NewService(store, paymentService, cfg.Booking, log)
	log.LogProcess("SERVICE", "Booking service initialized")

	bookingHandler := handlers.NewBookingHandler(bookingService)
	transactionHandler := handlers.NewTransactionHandler(paymentService)
	discountHandler := handlers.NewDiscountHandler(store, log)
	webhookHandler := handlers.NewWebhookHandler(paymentService, cfg.Stripe.WebhookSecret, log)
	log.LogProcess("HANDLER", "All handlers initialized")

	// Refund task consumer (runs only against a real broker)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if !cfg.Kafka.MockMode {
		kafkaConsumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, log)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
		}
		defer kafkaConsumer.Close()
		go func() {
			log.LogKafka("START", "consumer", "Starting refund task consumer goroutine")
			if err := kafkaConsumer.ConsumeRefundTasks(consumerCtx, paymentService); err != nil && err != context.Canceled {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	} else {
		log.LogKafka("MOCK_MODE", "consumer", "Refund task consumer disabled in mock mode")
	}

	router := setupRouter(bookingHandler, transactionHandler, discountHandler, webhookHandler)
	log.LogProcess("ROUTER", "HTTP router configured")

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on "+cfg.Server.Port)
		log.Info("STARTUP", "🚀 Box Office is ready to accept requests!")
		log.Info("STARTUP", "📊 Health check available at: http://localhost"+cfg.Server.Port+"/health")
		log.Info("STARTUP", "🎟  Booking API available at: http://localhost"+cfg.Server.Port+"/api/v1/bookings")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "✅ Box Office shutdown completed successfully")
}

func setupRouter(
	bookingHandler *handlers.BookingHandler,
	transactionHandler *handlers.TransactionHandler,
	discountHandler *handlers.DiscountHandler,
	webhookHandler *handlers.WebhookHandler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(log))
	router.Use(middleware.SecurityHeaders(log))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		log.LogAPI("GET", "/health", "200", "0ms")
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "box-office",
			"version":   "1.0.0",
		})
	})

	v1 := router.Group("/api/v1")
	{
		bookingsGroup := v1.Group("/bookings")
		{
			bookingsGroup.POST("", bookingHandler.CreateBooking)
			bookingsGroup.GET("/:id", bookingHandler.GetBooking)
			bookingsGroup.GET("/:id/price", bookingHandler.GetPrice)
			bookingsGroup.POST("/:id/tickets", bookingHandler.AddTicket)
			bookingsGroup.DELETE("/:id/tickets/:ticketID", bookingHandler.RemoveTicket)
			bookingsGroup.POST("/:id/pay", bookingHandler.PayBooking)
			bookingsGroup.POST("/:id/refund", bookingHandler.RefundBooking)
			bookingsGroup.POST("/:id/checkin", bookingHandler.CheckIn)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.POST("/:id/sync", transactionHandler.SyncTransaction)
		}

		discounts := v1.Group("/discounts")
		{
			discounts.POST("", discountHandler.CreateDiscount)
			discounts.GET("/performance/:id", discountHandler.ListForPerformance)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
		}
	}

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
