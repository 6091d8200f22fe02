package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/handlers"
	"github.com/eishro/storeguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func noDelay() *auth.TimingDelay {
	return auth.NewTimingDelay(auth.TimingConfig{BaseDelay: time.Millisecond})
}

func testSessions(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(auth.SessionConfig{Secret: "handler-tests-session-secret"})
	require.NoError(t, err)
	return sm
}

func TestLogin_Success(t *testing.T) {
	authn := &handlers.MockAuthenticator{
		AuthenticateFunc: func(ctx context.Context, email, password string) error {
			if email == "ops@eishro.example" && password == "correct horse" {
				return nil
			}
			return models.ErrInvalidCredentials
		},
	}
	resetter := &handlers.RecordingResetter{}
	handler := handlers.NewAuthHandler(authn, resetter, testSessions(t), noDelay(), discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    " Ops@Eishro.example ",
		Password: "correct horse",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Authenticated)
	assert.Equal(t, "ops@eishro.example", resp.Email)
	assert.Equal(t, []string{"ops@eishro.example"}, resetter.Reset)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1, "session is rotated on login")
	assert.Equal(t, auth.DefaultSessionCookie, cookies[0].Name)
}

func TestLogin_ResetsHardeningIdentifier(t *testing.T) {
	authn := &handlers.MockAuthenticator{AuthenticateFunc: func(context.Context, string, string) error { return nil }}
	resetter := &handlers.RecordingResetter{}
	handler := handlers.NewAuthHandler(authn, resetter, nil, noDelay(), discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{Email: "a@b.io", Password: "pw"})
	req = req.WithContext(auth.WithAttemptIdentifier(req.Context(), "203.0.113.5"))
	w := httptest.NewRecorder()
	handler.Login(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, []string{"203.0.113.5"}, resetter.Reset)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	resetter := &handlers.RecordingResetter{}
	delay := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 30 * time.Millisecond})
	handler := handlers.NewAuthHandler(&handlers.MockAuthenticator{}, resetter, nil, delay, discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    "ops@eishro.example",
		Password: "wrong",
	})
	w := httptest.NewRecorder()
	start := time.Now()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Empty(t, resetter.Reset)
}

func TestLogin_NoAuthenticatorConfigured(t *testing.T) {
	handler := handlers.NewAuthHandler(nil, nil, nil, noDelay(), discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{Email: "a@b.io", Password: "x"})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_InternalError(t *testing.T) {
	authn := &handlers.MockAuthenticator{AuthenticateFunc: func(context.Context, string, string) error {
		return errors.New("hash store offline")
	}}
	handler := handlers.NewAuthHandler(authn, nil, nil, noDelay(), discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{Email: "a@b.io", Password: "x"})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
	assert.NotContains(t, w.Body.String(), "hash store")
}

func TestLogin_Validation(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing email", handlers.LoginRequest{Password: "x"}},
		{"bad email", handlers.LoginRequest{Email: "not-an-email", Password: "x"}},
		{"missing password", handlers.LoginRequest{Email: "a@b.io"}},
		{"not json", "just a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewAuthHandler(&handlers.MockAuthenticator{}, nil, nil, noDelay(), discardLogger())
			w := httptest.NewRecorder()
			handler.Login(w, handlers.NewTestRequest(t, "POST", "/api/auth/login", tt.body))

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
		})
	}
}
