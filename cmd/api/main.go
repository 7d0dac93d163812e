package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/background"
	"github.com/masthead-news/masthead/internal/cache"
	"github.com/masthead-news/masthead/internal/config"
	"github.com/masthead-news/masthead/internal/database"
	"github.com/masthead-news/masthead/internal/handlers"
	middlewareCustom "github.com/masthead-news/masthead/internal/middleware"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/repositories"
	"github.com/masthead-news/masthead/internal/routes"
	"github.com/masthead-news/masthead/internal/services"
	"github.com/masthead-news/masthead/internal/store"
	pkgauth "github.com/masthead-news/masthead/pkg/auth"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
	pkglogger "github.com/masthead-news/masthead/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Ephemeral store for tickets, one-time codes, and rate limit counters.
	// Development falls back to in-process memory when Redis is absent;
	// production requires Redis so ticket consumption survives restarts.
	var ephemeral store.EphemeralStore
	redisClient, err := cache.NewClient(&cfg.Redis, logger)
	if err != nil {
		if cfg.Server.Env == "production" {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("redis unavailable, using in-memory store", slog.Any("error", err))
		ephemeral = store.NewMemoryStore()
	} else {
		defer redisClient.Close()
		ephemeral = store.NewRedisStore(redisClient)
	}

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	mfaRepo := repositories.NewMFAConfigRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// Token and ticket managers
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry, accountRepo)
	ticketManager := auth.NewTicketManager(cfg.Auth.TicketSecret, cfg.Auth.TicketExpiry, ephemeral)

	totpManager, err := auth.NewTOTPManager(cfg.Auth.TOTPEncryptionKey, cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize totp manager", slog.Any("error", err))
		os.Exit(1)
	}

	passkeyVerifier := auth.NewExternalPasskeyVerifier(cfg.Auth.PasskeyVerifierURL, logger)

	// Services
	emailService, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.ResetBaseURL, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	auditService := services.NewAuditService(auditRepo, pkglogger.NewAuditLogger(logger), logger)
	sessionService := services.NewSessionService(accountRepo, tokenManager, logger)
	authService := services.NewAuthService(accountRepo, mfaRepo, ticketManager, sessionService, auditService, logger)
	mfaService := services.NewMFAService(accountRepo, mfaRepo, ticketManager, totpManager, passkeyVerifier, sessionService, emailService, ephemeral, auditService, logger)
	recoveryService := services.NewRecoveryService(mfaService, mfaRepo, auditService, logger)
	resetService := services.NewPasswordResetService(accountRepo, resetRepo, emailService, auditService, cfg.Auth.ResetTokenExpiry, logger)
	rateLimitService := services.NewRateLimitService(ephemeral, cfg.RateLimit, logger)

	// Bootstrap the first owner account if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureOwnerAccount(bootCtx, accountRepo, cfg.Owner, logger); err != nil {
		logger.Error("failed to ensure owner account", slog.Any("error", err))
	}
	bootCancel()

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieCfg := auth.CookieConfig{
		Domain:   cfg.Server.CookieDomain,
		Secure:   cfg.Server.Env == "production",
		SameSite: "strict",
	}

	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, sessionService, rateLimitService, ipConfig, cookieCfg, cfg.Auth.TicketExpiry),
		MFA:      handlers.NewMFAHandler(mfaService, rateLimitService, ipConfig, cookieCfg, cfg.Auth.TicketExpiry),
		Recovery: handlers.NewRecoveryHandler(recoveryService, rateLimitService, ipConfig, cookieCfg),
		Password: handlers.NewPasswordHandler(resetService, rateLimitService, ipConfig),
		Audit:    handlers.NewAuditHandler(auditService),
	}

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(cfg.Server.Env))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.RequestLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.GlobalRateLimit(120))

	routes.RegisterRoutes(router, h, tokenManager, accountRepo, healthCheck(db))

	// Background cleanup of expired reset tokens
	cleanupManager := background.NewCleanupManager(resetRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func healthCheck(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	}
}

// ensureOwnerAccount creates the first owner account when OWNER_EMAIL and
// OWNER_PASSWORD are set and no account exists under that email.
func ensureOwnerAccount(ctx context.Context, accountRepo *repositories.AccountRepository, owner config.OwnerConfig, logger *slog.Logger) error {
	if owner.Email == "" || owner.Password == "" {
		logger.Info("no OWNER_EMAIL or OWNER_PASSWORD set, skipping owner bootstrap")
		return nil
	}

	_, err := accountRepo.GetByEmail(ctx, owner.Email)
	if err == nil {
		logger.Info("owner account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for owner account: %w", err)
	}

	passwordHash, err := pkgauth.HashPassword(owner.Password)
	if err != nil {
		return fmt.Errorf("failed to hash owner password: %w", err)
	}

	_, err = accountRepo.Create(ctx, &models.Account{
		Email:        owner.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleOwner,
		Status:       models.StatusActive,
	})
	if err != nil {
		return fmt.Errorf("failed to create owner account: %w", err)
	}

	logger.Info("owner account created", slog.String("email", pkglogger.SanitizedEmail(owner.Email)))
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
