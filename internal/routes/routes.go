package routes

import (
	"net/http"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/config"
	"github.com/eishro/storeguard/internal/handlers"
	"github.com/eishro/storeguard/internal/middleware"
	"github.com/eishro/storeguard/internal/services"
	"github.com/eishro/storeguard/pkg/sanitize"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds everything RegisterRoutes wires together
type Dependencies struct {
	Config          config.SecurityConfig
	MaxBodyBytes    int64
	Security        *services.SecurityService
	Sessions        *auth.SessionManager
	Auditor         *middleware.Auditor
	SQLGuard        *sanitize.SQLGuard
	XSS             *sanitize.XSSSanitizer
	AuthHandler     *handlers.AuthHandler
	SecurityHandler *handlers.SecurityHandler
}

// RegisterRoutes registers all application routes. Every /api route runs the
// request chain session, capture, CSRF, SQL guard then XSS, each stage
// present only when enabled in config.
func RegisterRoutes(router chi.Router, deps Dependencies) {
	cfg := deps.Config
	level, err := sanitize.ParseLevel(cfg.XSSLevel)
	if err != nil {
		level = sanitize.LevelModerate
	}

	router.Get("/health", deps.SecurityHandler.Health)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Session(deps.Sessions, deps.Auditor.Logger()))
		r.Use(middleware.CaptureRequest(deps.MaxBodyBytes))
		if cfg.EnableCSRFProtection {
			r.Use(middleware.CSRFProtection(deps.Security, deps.Auditor))
		}
		if cfg.EnableSQLInjectionPrevention {
			r.Use(middleware.SQLInjectionGuard(deps.SQLGuard, deps.Auditor))
		}
		if cfg.EnableXSSProtection {
			r.Use(middleware.XSSProtection(deps.XSS, level, deps.Auditor))
		}

		if cfg.EnableCSRFProtection {
			r.Get("/api/csrf-token", deps.SecurityHandler.CSRFToken)
		}

		// Login: shared-store rate limit first, then lockout accounting
		var login []func(http.Handler) http.Handler
		if cfg.EnableRateLimiting {
			login = append(login, middleware.RateLimit(deps.Security, "login", middleware.RateLimitConfig{
				Requests: cfg.LoginRateLimit,
				Window:   cfg.RateLimitWindow,
			}, deps.Auditor))
		}
		if cfg.EnableAuthenticationHardening {
			login = append(login, middleware.AuthenticationHardening(deps.Security, "email", deps.Auditor))
		}
		r.With(login...).Post("/api/auth/login", deps.AuthHandler.Login)

		// Responses that reflect caller input are cleaned on the way out
		var outbound []func(http.Handler) http.Handler
		if cfg.EnableXSSProtection {
			outbound = append(outbound, middleware.SanitizeResponse(deps.XSS, level, deps.Auditor))
		}
		r.With(outbound...).Post("/api/auth/password-strength", deps.SecurityHandler.PasswordStrength)
		r.With(outbound...).Post("/api/echo", deps.SecurityHandler.Echo)
		r.Post("/api/encode", deps.SecurityHandler.Encode)
	})
}
