package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_esewa/internal/cache"
	"github.com/GTDGit/gtd_esewa/internal/config"
	"github.com/GTDGit/gtd_esewa/internal/database"
	"github.com/GTDGit/gtd_esewa/internal/handler"
	"github.com/GTDGit/gtd_esewa/internal/middleware"
	"github.com/GTDGit/gtd_esewa/internal/repository"
	"github.com/GTDGit/gtd_esewa/internal/service"
	"github.com/GTDGit/gtd_esewa/internal/sse"
	"github.com/GTDGit/gtd_esewa/internal/worker"
	"github.com/GTDGit/gtd_esewa/pkg/esewa"
)

// main is the application entrypoint for the eSewa payment service.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().
		Str("env", cfg.Env).
		Bool("esewa_production", cfg.Esewa.Production).
		Str("product_code", cfg.Esewa.ProductCode).
		Msg("starting esewa payment service")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := database.Migrate(db.DB, "file://migrations"); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 4. Initialize eSewa signer and status client
	signer := esewa.NewSigner(cfg.Esewa.SecretKey)
	statusClient := esewa.NewClient(esewa.Config{
		StatusURL: cfg.Esewa.StatusURL,
		Timeout:   cfg.Esewa.StatusTimeout,
	})

	// 5. Initialize repositories, caches and services
	paymentRepo := repository.NewPaymentRepository(db)
	paymentCache := cache.NewPaymentCache(redisClient, cfg.Esewa.FormTTL)
	paymentSvc := service.NewPaymentService(paymentRepo, paymentCache, signer, statusClient, cfg.Esewa)

	// 5a. Push payment updates to open checkout pages
	sseHub := sse.NewHub()
	paymentSvc.SetNotifier(sse.NewHubNotifier(sseHub))

	// 6. Initialize handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"database": db.PingContext,
			"redis":    redisClient.Ping,
		}),
		Payment: handler.NewPaymentHandler(paymentSvc),
		SSE:     handler.NewSSEHandler(sseHub, cfg.JWTSecret),
	}

	// 7. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware(cfg.JWTSecret, middleware.NewInvalidAuthRateLimiter(ctx, 5, time.Minute))

	// 9. Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedHosts))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	setupRoutes(router, handlers, jwtMw)

	// 10. Start workers
	go worker.NewStatusCheckWorker(
		paymentSvc,
		cfg.Worker.StatusCheckInterval,
		cfg.Worker.StatusCheckStaleAfter,
		cfg.Worker.StatusCheckMaxAge,
	).Start(ctx)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Payment *handler.PaymentHandler
	SSE     *handler.SSEHandler
}

func setupRoutes(r *gin.Engine, h *Handlers, jwtMw *middleware.JWTMiddleware) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// eSewa redirects the customer's browser here
	r.GET("/payment/success", h.Payment.PaymentSuccess)
	r.GET("/payment/failure", h.Payment.PaymentFailure)

	v1 := r.Group("/v1")
	v1.GET("/health", h.Health.GetHealth)
	// authenticates via ?token= since EventSource cannot send headers
	v1.GET("/payments/events", h.SSE.Stream)

	payments := v1.Group("/payments")
	payments.Use(jwtMw.Handle())
	{
		payments.POST("", h.Payment.InitiatePayment)
		payments.GET("/:transactionUuid/status", h.Payment.GetStatus)
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
