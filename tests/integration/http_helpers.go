package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/config"
	"github.com/eishro/storeguard/internal/database"
	"github.com/eishro/storeguard/internal/handlers"
	middlewareCustom "github.com/eishro/storeguard/internal/middleware"
	"github.com/eishro/storeguard/internal/models"
	"github.com/eishro/storeguard/internal/routes"
	"github.com/eishro/storeguard/internal/services"
	pkgauth "github.com/eishro/storeguard/pkg/auth"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	"github.com/eishro/storeguard/pkg/sanitize"
)

const (
	AdminEmail    = "ops@eishro.example"
	AdminPassword = "TestPassword123!"
	sessionSecret = "test-secret-32-characters-long-for-testing"
)

// SentNotice represents a captured lockout alert
type SentNotice struct {
	Identifier string
	Policy     models.LockoutPolicy
}

// MockLockoutNotifier captures lockout alerts for test assertions
type MockLockoutNotifier struct {
	Sent []SentNotice
	mu   sync.Mutex
}

// NotifyLockout records the alert
func (m *MockLockoutNotifier) NotifyLockout(_ context.Context, identifier string, policy models.LockoutPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentNotice{Identifier: identifier, Policy: policy})
	return nil
}

// Count returns how many alerts were sent
func (m *MockLockoutNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// TestServer wraps httptest.Server with the postgres-backed security engine
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Notifier *MockLockoutNotifier
	Config   config.SecurityConfig

	client *http.Client
}

// TestSecurityConfig is the configuration NewTestServer uses by default
func TestSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		StoreBackend:                  config.BackendPostgres,
		EnableCSRFProtection:          true,
		EnableXSSProtection:           true,
		EnableSQLInjectionPrevention:  true,
		EnableAuthenticationHardening: true,
		EnableRateLimiting:            true,
		CSRFTokenBytes:                32,
		CSRFTokenTTL:                  time.Hour,
		MaxLoginAttempts:              3,
		LockoutDuration:               15 * time.Minute,
		RateLimitWindow:               time.Minute,
		RateLimitMaxRequests:          100,
		LoginRateLimit:                50,
		XSSLevel:                      "moderate",
		SQLGuardExemptFields:          []string{"password"},
		XSSSkipFields:                 []string{"password"},
	}
}

// NewTestServer initializes a complete HTTP server with real database + mocked alerts.
// Servers built on the same database share all security state.
func NewTestServer(db *database.DB, cfg config.SecurityConfig) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	policy := models.LockoutPolicy{MaxAttempts: cfg.MaxLoginAttempts, LockoutDuration: cfg.LockoutDuration}
	repos := InitializeRepositories(db, policy, nil)

	notifier := &MockLockoutNotifier{}
	security := services.NewSecurityService(repos.CSRF, repos.Attempts, repos.Rates, policy, logger)
	security.SetLockoutNotifier(notifier)

	sessions, err := auth.NewSessionManager(auth.SessionConfig{Secret: sessionSecret})
	if err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPasswordWithCost(AdminPassword, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	admin, err := services.NewAdminAuthenticator(AdminEmail, hash)
	if err != nil {
		return nil, err
	}

	ips, err := pkghttp.NewIPResolver(nil)
	if err != nil {
		return nil, err
	}
	auditor := middlewareCustom.NewAuditor(logger, ips)

	// Setup Chi router with middleware
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Setup routes using production pattern
	routes.RegisterRoutes(r, routes.Dependencies{
		Config:          cfg,
		Security:        security,
		Sessions:        sessions,
		Auditor:         auditor,
		SQLGuard:        sanitize.NewSQLGuard(sanitize.SQLGuardConfig{ExemptFields: cfg.SQLGuardExemptFields}),
		XSS:             sanitize.NewXSSSanitizer(cfg.XSSSkipFields...),
		AuthHandler:     handlers.NewAuthHandler(admin, security, sessions, nil, logger),
		SecurityHandler: handlers.NewSecurityHandler(db, 0),
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &TestServer{
		Server:   httptest.NewServer(r),
		DB:       db,
		Notifier: notifier,
		Config:   cfg,
		client:   &http.Client{Jar: jar},
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// CSRFToken fetches a fresh token for the server's session
func (ts *TestServer) CSRFToken() (string, error) {
	resp, err := ts.client.Get(ts.Server.URL + "/api/csrf-token")
	if err != nil {
		return "", err
	}
	var body handlers.CSRFTokenResponse
	if err := ParseJSONResponse(resp, &body); err != nil {
		return "", err
	}
	if body.CSRFToken == "" {
		return "", fmt.Errorf("no csrf token (status %d)", resp.StatusCode)
	}
	return body.CSRFToken, nil
}

// Request makes an HTTP request to the test server with a fresh CSRF token
func (ts *TestServer) Request(method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := ts.CSRFToken()
	if err != nil {
		return nil, err
	}
	req.Header.Set(middlewareCustom.CSRFHeader, token)

	return ts.client.Do(req)
}

// Login posts credentials to the login route
func (ts *TestServer) Login(email, password string) (*http.Response, error) {
	return ts.Request(http.MethodPost, "/api/auth/login", handlers.LoginRequest{Email: email, Password: password})
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorCode extracts the machine-readable code from an error response
func GetErrorCode(resp *http.Response) (string, error) {
	var errResp pkghttp.ErrorResponse
	if err := ParseJSONResponse(resp, &errResp); err != nil {
		return "", err
	}
	return errResp.Error, nil
}
