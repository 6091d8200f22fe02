package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/models"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	pkglogger "github.com/eishro/storeguard/pkg/logger"
)

// Authenticator checks login credentials
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) error
}

// AttemptResetter clears the lockout counter after a successful login
type AttemptResetter interface {
	ResetLoginAttempts(ctx context.Context, identifier string)
}

// SessionIssuer rotates the session on login
type SessionIssuer interface {
	Issue() (string, string, error)
	SetCookie(w http.ResponseWriter, token string)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authenticator Authenticator
	attempts      AttemptResetter
	sessions      SessionIssuer
	timing        *auth.TimingDelay
	audit         *pkglogger.SecurityAuditLogger
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. A nil authenticator rejects every
// login, which is how the route behaves when no admin account is configured.
func NewAuthHandler(authenticator Authenticator, attempts AttemptResetter, sessions SessionIssuer, timing *auth.TimingDelay, logger *slog.Logger) *AuthHandler {
	if timing == nil {
		timing = auth.NewTimingDelay(auth.TimingConfig{})
	}
	return &AuthHandler{
		authenticator: authenticator,
		attempts:      attempts,
		sessions:      sessions,
		timing:        timing,
		audit:         pkglogger.NewSecurityAuditLogger(logger),
		logger:        logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,max=128"`
	CSRFToken string `json:"csrfToken,omitempty"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email"`
}

// Login handles operator login
// @Summary Operator login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	err := models.ErrInvalidCredentials
	if h.authenticator != nil {
		err = h.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	}

	if err != nil {
		// Equalize response time so failures do not reveal which check failed
		h.timing.WaitFrom(r.Context(), start, false)

		h.audit.LogPolicyViolation(r.Context(), pkglogger.SecurityEvent{
			EventType:  pkglogger.EventLoginFailed,
			Identifier: req.Email,
			Method:     r.Method,
			Path:       r.URL.Path,
		})

		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Login failed")
		return
	}

	identifier := auth.AttemptIdentifierFromContext(r.Context())
	if identifier == "" {
		identifier = req.Email
	}
	if h.attempts != nil {
		h.attempts.ResetLoginAttempts(r.Context(), identifier)
	}

	if h.sessions != nil {
		if _, token, err := h.sessions.Issue(); err != nil {
			h.logger.Error("failed to rotate session", slog.Any("error", err))
		} else {
			h.sessions.SetCookie(w, token)
		}
	}

	h.audit.LogSecurityEvent(r.Context(), pkglogger.SecurityEvent{
		EventType:  pkglogger.EventLoginSucceeded,
		Identifier: req.Email,
		Method:     r.Method,
		Path:       r.URL.Path,
	})

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Authenticated: true, Email: req.Email})
}
