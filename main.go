package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Govind-619/DonateKart/config"
	"github.com/Govind-619/DonateKart/controllers"
	"github.com/Govind-619/DonateKart/routes"
	"github.com/Govind-619/DonateKart/services"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Error loading config:", err)
	}

	// Initialize logger
	if err := utils.InitLogger("logs", cfg.LogLevel); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.LogError("Database initialization failed: %v", err)
		log.Fatal("Database initialization failed:", err)
	}

	var guard services.CallbackGuard
	redisClient, err := config.InitRedis(cfg)
	if err != nil {
		utils.LogError("Redis initialization failed: %v", err)
		log.Fatal("Redis initialization failed:", err)
	}
	guardTTL := 24 * time.Hour
	if redisClient != nil {
		defer redisClient.Close()
		guard = services.NewRedisCallbackGuard(redisClient, guardTTL)
		utils.LogInfo("Callback deduplication backed by redis at %s", cfg.RedisAddr)
	} else {
		guard = services.NewMemoryCallbackGuard(guardTTL)
	}

	if !cfg.GatewayConfigured() {
		utils.LogWarn("Razorpay credentials missing, payments will be reported unavailable")
	}

	addresses := services.NewAddressRegistry(db)
	pricing := services.NewPricingEngine(services.NewGormCouponStore(db), cfg.PlatformFee)
	cart := services.NewGormCartSource(db)
	gateway := services.NewRazorpayGateway(db, cfg.RazorpayKey, cfg.RazorpaySecret)
	verifier := services.NewPaymentVerifier(cfg.RazorpaySecret, cfg.RazorpayWebhookSecret)
	orders := services.NewOrderCommitter(db, cfg.Currency)
	reconciliation := services.NewReconciliationDesk(db)
	notifier := services.NewMailNotifier(db, utils.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, cfg.OpsEmail)
	auditor := services.NewCaptureAuditor(db, gateway, reconciliation, notifier)

	checkouts := services.NewSessionRegistry(services.CheckoutDeps{
		Addresses:            addresses,
		Pricing:              pricing,
		Cart:                 cart,
		Gateway:              gateway,
		Verifier:             verifier,
		Committer:            orders,
		Guard:                guard,
		Bus:                  services.NewCallbackBus(),
		Notifier:             notifier,
		Reconciliation:       reconciliation,
		Auditor:              auditor,
		Currency:             cfg.Currency,
		AuthorizationTimeout: cfg.AuthorizationTimeout,
	}, 0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go checkouts.Run(ctx, time.Minute)
	// past the authorization timeout an attempt no longer owns its payment
	go auditor.Run(ctx, time.Minute, cfg.AuthorizationTimeout+time.Minute)

	// Set up router
	router := routes.SetupRouter(routes.Options{
		Handler: &controllers.Handler{
			Addresses:      addresses,
			Pricing:        pricing,
			Cart:           cart,
			Checkouts:      checkouts,
			Orders:         orders,
			Gateway:        gateway,
			Verifier:       verifier,
			Reconciliation: reconciliation,
			Auditor:        auditor,
		},
		DB:            db,
		JWTSecret:     cfg.JWTSecret,
		SessionSecret: cfg.SessionSecret,
		Secure:        cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		utils.LogInfo("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.LogError("Error starting server: %v", err)
			log.Fatal("Error starting server:", err)
		}
	}()

	<-ctx.Done()
	utils.LogInfo("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.LogError("Server shutdown failed: %v", err)
	}
}
