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

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/background"
	"github.com/eishro/storeguard/internal/config"
	"github.com/eishro/storeguard/internal/database"
	"github.com/eishro/storeguard/internal/handlers"
	middlewareCustom "github.com/eishro/storeguard/internal/middleware"
	"github.com/eishro/storeguard/internal/models"
	"github.com/eishro/storeguard/internal/ratelimit"
	"github.com/eishro/storeguard/internal/repositories"
	"github.com/eishro/storeguard/internal/routes"
	"github.com/eishro/storeguard/internal/services"
	pkgauth "github.com/eishro/storeguard/pkg/auth"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	"github.com/eishro/storeguard/pkg/sanitize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// stores is the backend selected by STORE_BACKEND
type stores struct {
	csrf     services.CSRFTokenStore
	attempts services.LoginAttemptStore
	rates    interface {
		services.RequestRateStore
		Sweep(ctx context.Context) (int64, error)
	}
	db *database.DB
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Security.StoreBackend))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStores(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize security stores", slog.Any("error", err))
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	ips, err := pkghttp.NewIPResolver(cfg.Security.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", slog.Any("error", err))
		os.Exit(1)
	}
	auditor := middlewareCustom.NewAuditor(logger, ips)

	policy := models.LockoutPolicy{
		MaxAttempts:     cfg.Security.MaxLoginAttempts,
		LockoutDuration: cfg.Security.LockoutDuration,
	}
	security := services.NewSecurityService(st.csrf, st.attempts, st.rates, policy, logger)

	// SES lockout alerts
	if cfg.Email.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		notifier, err := services.NewSESLockoutNotifier(ctx, cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.SecurityAlertAddress, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize lockout alerts", slog.Any("error", err))
			os.Exit(1)
		}
		security.SetLockoutNotifier(notifier)
	}

	sessions, err := auth.NewSessionManager(auth.SessionConfig{
		Secret:     cfg.Session.Secret,
		TTL:        cfg.Session.TTL,
		CookieName: cfg.Session.CookieName,
		Cookie: auth.CookieConfig{
			Domain:   cfg.Session.CookieDomain,
			Secure:   cfg.Session.CookieSecure,
			SameSite: cfg.Session.CookieSameSite,
		},
	})
	if err != nil {
		logger.Error("failed to initialize sessions", slog.Any("error", err))
		os.Exit(1)
	}

	authenticator, err := adminAuthenticator(cfg.Admin, logger)
	if err != nil {
		logger.Error("failed to configure admin account", slog.Any("error", err))
		os.Exit(1)
	}

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay: 200 * time.Millisecond,
		Jitter:    100 * time.Millisecond,
	})

	var healthDB handlers.HealthChecker
	if st.db != nil {
		healthDB = st.db
	}

	// Initialize handlers
	var authn handlers.Authenticator
	if authenticator != nil {
		authn = authenticator
	}
	authHandler := handlers.NewAuthHandler(authn, security, sessions, timingDelay, logger)
	securityHandler := handlers.NewSecurityHandler(healthDB, cfg.Server.MaxBodyBytes)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(auditor))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	if cfg.Security.EnableRateLimiting {
		router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{
			Requests: cfg.Security.RateLimitMaxRequests,
			Window:   cfg.Security.RateLimitWindow,
		}, auditor))
	}

	// Register routes
	routes.RegisterRoutes(router, routes.Dependencies{
		Config:          cfg.Security,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		Security:        security,
		Sessions:        sessions,
		Auditor:         auditor,
		SQLGuard:        sanitize.NewSQLGuard(sanitize.SQLGuardConfig{ExemptFields: cfg.Security.SQLGuardExemptFields}),
		XSS:             sanitize.NewXSSSanitizer(cfg.Security.XSSSkipFields...),
		AuthHandler:     authHandler,
		SecurityHandler: securityHandler,
	})

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(logger, cfg.Security.CleanupInterval)
	cleanupManager.Register("csrf_tokens", st.csrf)
	cleanupManager.Register("login_attempts", st.attempts)
	cleanupManager.Register("rate_limits", st.rates)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
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

// openStores builds the CSRF, attempt and rate stores for the configured
// backend. The postgres backend runs migrations before returning.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	sec := cfg.Security
	policy := models.LockoutPolicy{MaxAttempts: sec.MaxLoginAttempts, LockoutDuration: sec.LockoutDuration}
	// Lockout alert dedup keys live in the rate store for a full lockout window
	retention := max(models.DefaultRateLimitRetention, sec.RateLimitWindow, sec.LockoutDuration)

	if sec.StoreBackend != config.BackendPostgres {
		return &stores{
			csrf:     auth.NewCSRFTokenManager(auth.CSRFConfig{TokenBytes: sec.CSRFTokenBytes, TokenTTL: sec.CSRFTokenTTL}),
			attempts: auth.NewLoginAttemptTracker(policy, nil),
			rates:    ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{Retention: retention}),
		}, nil
	}

	if err := database.Migrate(ctx, cfg.Database.DSN()); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &stores{
		csrf:     repositories.NewCSRFTokenRepository(db, sec.CSRFTokenBytes, sec.CSRFTokenTTL, nil),
		attempts: repositories.NewLoginAttemptRepository(db, policy, nil),
		rates:    repositories.NewRateLimitRepository(db, retention, nil),
		db:       db,
	}, nil
}

// adminAuthenticator returns nil when no admin account is configured, which
// leaves the login route rejecting everything.
func adminAuthenticator(cfg config.AdminConfig, logger *slog.Logger) (*services.AdminAuthenticator, error) {
	if cfg.Email == "" {
		logger.Warn("no ADMIN_EMAIL set, login is disabled")
		return nil, nil
	}

	hash := cfg.PasswordHash
	if hash == "" {
		var err error
		hash, err = pkgauth.HashPassword(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}
	return services.NewAdminAuthenticator(cfg.Email, hash)
}
