package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "chandabaz/docs" // This is for Swagger
	"chandabaz/internal/auth"
	"chandabaz/internal/cache"
	"chandabaz/internal/config"
	"chandabaz/internal/database"
	"chandabaz/internal/docstore"
	"chandabaz/internal/email"
	"chandabaz/internal/handlers"
	"chandabaz/internal/logger"
	"chandabaz/internal/media"
	"chandabaz/internal/metrics"
	"chandabaz/internal/middleware"
	"chandabaz/internal/repository"
	"chandabaz/internal/scheduler"
	"chandabaz/internal/service"
	"chandabaz/internal/vault"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Chandabaz API
// @version 1.0
// @description Backend API for citizen corruption reports with administrator moderation
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:5000
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
		"db_driver", cfg.Database.Driver,
	)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	// Signing key from Vault, when enabled
	if err := vault.LoadJWTSecret(startupCtx, cfg); err != nil {
		slog.Error("Failed to load JWT secret", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	stores, err := openStores(startupCtx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}()

	files, err := media.NewFileStore(cfg.Upload.Dir, cfg.Upload.PublicURL, cfg.Upload.MaxFileSize)
	if err != nil {
		slog.Error("Failed to initialize upload directory", "error", err)
		os.Exit(1)
	}
	limits := media.Limits{MaxFiles: cfg.Upload.MaxFiles, MaxFileSize: cfg.Upload.MaxFileSize}

	// Initialize services
	authService, err := auth.NewService(&cfg.JWT)
	if err != nil {
		slog.Error("Failed to initialize token service", "error", err)
		os.Exit(1)
	}

	var notifier service.Notifier
	if emailService := email.NewService(&cfg.Email); emailService.Enabled() {
		notifier = emailService
	} else {
		slog.Warn("SMTP is not configured - moderation emails are disabled")
	}

	accounts := cache.NewAccountCache(cfg.Cache.AccountSize, cfg.Cache.AccountTTL)
	auditSvc := service.NewAuditService(stores.Audit)
	authSvc := service.NewAuthService(stores.Users, authService, accounts, auditSvc)
	postSvc := service.NewPostService(stores.Posts, stores.Users, files, limits, auditSvc, notifier)
	commentSvc := service.NewCommentService(stores.Comments, stores.Posts, stores.Users, auditSvc)
	userSvc := service.NewUserService(stores.Users, stores.Posts, accounts, auditSvc)

	if err := authSvc.SeedAdmin(startupCtx, cfg.Admin); err != nil {
		slog.Error("Failed to seed administrator", "error", err)
		os.Exit(1)
	}

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(files, stores.Posts, &cfg.Upload)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authSvc)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	if err := middleware.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		slog.Error("Failed to configure trusted proxies", "error", err)
		os.Exit(1)
	}
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	defer rateLimiter.Stop()

	// Setup router
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, &handlers.Handlers{
		Auth:     handlers.NewAuthHandler(authSvc),
		Posts:    handlers.NewPostHandler(postSvc, limits),
		Comments: handlers.NewCommentHandler(commentSvc),
		Users:    handlers.NewUserHandler(userSvc),
		Admin:    handlers.NewAdminHandler(postSvc, userSvc),
		Audit:    handlers.NewAuditHandler(auditSvc),
	}, authMw)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := stores.Ping(r.Context()); err != nil {
			slog.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
		if err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	})

	// Stored evidence, unless a separate host serves the upload directory
	if strings.HasPrefix(cfg.Upload.PublicURL, "/") {
		mux.Handle("GET "+cfg.Upload.PublicURL+"/",
			http.StripPrefix(cfg.Upload.PublicURL+"/", http.FileServer(http.Dir(cfg.Upload.Dir))),
		)
	}

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware; Metrics wraps the mux directly so the matched
	// route pattern is visible to it.
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				middleware.RequestMeta(
					rateLimiter.Limit(
						middleware.Metrics(mux),
					),
				),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}

// openStores connects the configured backend and prepares its schema
func openStores(ctx context.Context, cfg *config.Config) (*repository.Stores, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		store, err := docstore.Connect(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		slog.Info("MongoDB connection established", "uri", docstore.RedactURI(cfg.Database.MongoURI))
		return store.Stores(), nil
	default:
		db, err := database.New(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		slog.Info("Database connection established")

		if err := db.Migrate(ctx, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("Database migrations completed")
		return db.Stores(), nil
	}
}
