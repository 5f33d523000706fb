package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/handlers"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/middleware"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/services"
	"github.com/caremarket/onboarding-api/internal/storage"
)

func main() {
	// Initialize logger first
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}

	// Initialize observability
	observability.InitTracer()
	defer observability.ShutdownTracer()

	// Initialize database connections
	config.InitMongoDB()
	config.InitRedis()

	blobs, err := storage.NewGCSStore(context.Background(), config.AppConfig.StorageBucket)
	if err != nil {
		logging.Logger.Fatal("failed to initialize blob store", zap.Error(err))
	}

	onboarding := services.NewOnboardingService(config.MongoDB)
	uploads := services.NewUploadService(blobs, config.MongoDB)
	extractionCache := services.NewExtractionCache(config.MongoDB, config.AppConfig.ExtractionCacheTTL)
	pipeline := services.NewVerificationPipeline(config.MongoDB, blobs, config.AppConfig)

	onboardingHandlers := handlers.NewOnboardingHandlers(onboarding)
	documentHandlers := handlers.NewDocumentHandlers(uploads, extractionCache)
	verificationHandlers := handlers.NewVerificationHandlers(pipeline)

	// Set Gin mode
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router with middleware
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		middleware.RequestTiming(),
		middleware.AuditMiddleware(),
		cors.Default(),
	)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Health check endpoint
		v1.GET("/health", handlers.HealthCheck)

		users := v1.Group("/users/:userId")
		users.Use(middleware.AuthMiddleware(), middleware.RequireOwnUser())
		{
			users.GET("/onboarding", onboardingHandlers.GetProgress)
			users.POST("/onboarding/advance", onboardingHandlers.Advance)
			users.POST("/onboarding/back", onboardingHandlers.Back)
			users.POST("/onboarding/phone/code", onboardingHandlers.RequestPhoneCode)
			users.POST("/onboarding/phone/verify", onboardingHandlers.VerifyPhoneCode)

			users.POST("/documents/:documentType", documentHandlers.Upload)
			users.GET("/documents/:documentType/extraction", documentHandlers.GetCachedExtraction)
			users.DELETE("/documents/:documentType/extraction", documentHandlers.InvalidateCachedExtraction)

			users.POST("/verification/professional", verificationHandlers.VerifyProfessional)
			users.POST("/verification/facility", verificationHandlers.VerifyFacility)
			users.POST("/verification/chain", verificationHandlers.VerifyChain)
			users.GET("/verification", verificationHandlers.GetStatus)
		}
	}

	// Create server with timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.AppConfig.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logging.Logger.Info("starting server",
			zap.Int("port", config.AppConfig.Port),
			zap.String("environment", config.AppConfig.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logging.Logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("server exited gracefully")
}
