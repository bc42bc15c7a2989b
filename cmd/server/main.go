package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"photo-listing-portal/internal/cache"
	"photo-listing-portal/internal/config"
	"photo-listing-portal/internal/db"
	"photo-listing-portal/internal/export"
	"photo-listing-portal/internal/listing"
	"photo-listing-portal/internal/middleware"
	"photo-listing-portal/internal/notify"
	"photo-listing-portal/internal/storage"
	"photo-listing-portal/internal/submission"
	"photo-listing-portal/internal/user"
	"photo-listing-portal/internal/worker"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Structured logs; human-readable console output in development
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if config.AppConfig.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Crash reporting
	if config.AppConfig.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		})
		if err != nil {
			log.Error().Err(err).Msg("sentry init failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	db.SeedData()

	// Redis-backed list cache, degrades to no-op when Redis is down
	listCache := cache.New(config.AppConfig.RedisAddress)

	// Blob storage for originals and thumbnails
	blobs, err := storage.NewLocalStore(config.AppConfig.StorageDir)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize blob storage")
	}

	// Background workers for thumbnail generation
	pool := worker.NewPool(4)
	defer pool.Shutdown()

	// Email notifications; without Azure credentials emails go to the log
	var mailer notify.Mailer
	if config.AppConfig.AzureTenantID != "" && config.AppConfig.AzureClientID != "" {
		mailer = notify.NewGraphMailer(
			config.AppConfig.AzureTenantID,
			config.AppConfig.AzureClientID,
			config.AppConfig.AzureClientSecret,
			config.AppConfig.SenderEmail,
		)
	} else {
		log.Warn().Msg("no mail credentials configured, notifications go to the log")
		mailer = notify.LogMailer{}
	}
	notifier := notify.NewEmailNotifier(mailer, config.AppConfig.ListingsTeamEmail, config.AppConfig.BaseURL)

	// Initialize repository
	userRepo := user.NewRepository(db.AppDb)
	listingRepo := listing.NewRepository(db.AppDb)
	submissionRepo := submission.NewRepository(db.AppDb)
	// Initialize service
	userService := user.NewService(userRepo)
	listingService := listing.NewService(listingRepo, userService, blobs, notifier, listCache, pool)
	submissionService := submission.NewService(submissionRepo, listingRepo, userService, notifier, listCache)
	exportService := export.NewService(listingRepo, submissionRepo, blobs)
	// Initialize handler
	userHandler := user.NewHandler(userService)
	listingHandler := listing.NewHandler(listingService)
	submissionHandler := submission.NewHandler(submissionService)
	exportHandler := export.NewHandler(exportService)

	authMiddleware := &middleware.Auth{
		UserService: userService,
		CronSecret:  config.AppConfig.CronSecret,
	}

	// Initialize Gin router
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if config.AppConfig.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
	}
	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{config.AppConfig.BaseURL}
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.ErrorHandler())

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)

	authed := router.Group("/", authMiddleware.AuthMiddleWare())
	authed.GET("/me", userHandler.GetProfile)

	// Admin user management
	authed.GET("/users", userHandler.ListUsers)
	authed.PATCH("/users/:userId/role", userHandler.ChangeRole)
	authed.DELETE("/users/:userId", userHandler.DeleteUser)

	// Listing routes
	authed.POST("/listings", listingHandler.Create)
	authed.GET("/listings", listingHandler.List)
	authed.GET("/listings/:listingId", listingHandler.Get)
	authed.PATCH("/listings/:listingId", listingHandler.Update)
	authed.DELETE("/listings/:listingId", listingHandler.Delete)
	authed.POST("/listings/:listingId/submit", listingHandler.Submit)
	authed.POST("/listings/:listingId/approve", listingHandler.Approve)

	// Photo routes
	authed.POST("/listings/:listingId/photos", listingHandler.UploadPhoto)
	authed.GET("/listings/:listingId/photos/:photoId", listingHandler.ServePhoto)
	authed.PATCH("/listings/:listingId/photos/:photoId/exclude", listingHandler.TogglePhotoExcluded)
	authed.DELETE("/listings/:listingId/photos/:photoId", listingHandler.DeletePhoto)

	// Submission routes
	authed.POST("/listings/:listingId/propose", submissionHandler.Propose)
	authed.GET("/listings/:listingId/submission", submissionHandler.Latest)
	authed.POST("/listings/:listingId/submissions/:submissionId/approve", submissionHandler.Approve)
	authed.POST("/listings/:listingId/submissions/:submissionId/request-changes", submissionHandler.RequestChanges)

	// Export
	authed.GET("/listings/:listingId/downloads", exportHandler.Download)

	// Scheduled retention sweep, guarded by the cron secret instead of user auth
	router.GET("/cron/cleanup", authMiddleware.CronAuthMiddleware(), listingHandler.Cleanup)

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Info().Str("port", serverPort).Msg("server listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	<-ctx.Done()
	log.Info().Msg("server shutdown complete")
}
