package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/models"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withSession(r *http.Request, sid string) *http.Request {
	return r.WithContext(auth.WithSessionID(r.Context(), sid))
}

func TestCSRFProtection_IssuesOnSafeMethods(t *testing.T) {
	svc := newTestSecurityService(models.DefaultLockoutPolicy())
	var seen string
	handler := CSRFProtection(svc, testAuditor(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.CSRFTokenFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/", nil), "sid-1"))

	token := w.Header().Get(CSRFHeader)
	assert.Len(t, token, 64)
	assert.Equal(t, token, seen)
}

func TestCSRFProtection_SafeMethodWithoutSessionPasses(t *testing.T) {
	svc := newTestSecurityService(models.DefaultLockoutPolicy())
	reached := false
	handler := CSRFProtection(svc, testAuditor(t))(recordBody(&reached))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, reached)
	assert.Empty(t, w.Header().Get(CSRFHeader))
}

func TestCSRFProtection_Verify(t *testing.T) {
	tests := []struct {
		name       string
		sessionID  string
		build      func(token string) *http.Request
		wantStatus int
	}{
		{
			name:      "header token",
			sessionID: "sid-1",
			build: func(token string) *http.Request {
				req := jsonRequest(http.MethodPost, "/api/echo", `{"name":"John Doe"}`)
				req.Header.Set(CSRFHeader, token)
				return req
			},
			wantStatus: http.StatusOK,
		},
		{
			name:      "body token",
			sessionID: "sid-1",
			build: func(token string) *http.Request {
				return jsonRequest(http.MethodPost, "/api/echo", `{"csrfToken":"`+token+`","name":"x"}`)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:      "missing token",
			sessionID: "sid-1",
			build: func(string) *http.Request {
				return jsonRequest(http.MethodPost, "/api/echo", `{"name":"x"}`)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:      "wrong token",
			sessionID: "sid-1",
			build: func(string) *http.Request {
				req := jsonRequest(http.MethodDelete, "/api/echo", "")
				req.Header.Set(CSRFHeader, "deadbeef")
				return req
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:      "token from another session",
			sessionID: "sid-2",
			build: func(token string) *http.Request {
				req := jsonRequest(http.MethodPut, "/api/echo", "")
				req.Header.Set(CSRFHeader, token)
				return req
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:      "no session",
			sessionID: "",
			build: func(token string) *http.Request {
				req := jsonRequest(http.MethodPatch, "/api/echo", "")
				req.Header.Set(CSRFHeader, token)
				return req
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestSecurityService(models.DefaultLockoutPolicy())
			token, err := svc.IssueCSRFToken(context.Background(), "sid-1")
			require.NoError(t, err)

			reached := false
			handler := CSRFProtection(svc, testAuditor(t))(recordBody(&reached))

			req := tt.build(token)
			if tt.sessionID != "" {
				req = withSession(req, tt.sessionID)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, reached)
			if tt.wantStatus == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), pkghttp.CodeCSRFInvalid)
			}
		})
	}
}

func TestCSRFProtection_TokenIsSingleUse(t *testing.T) {
	svc := newTestSecurityService(models.DefaultLockoutPolicy())
	token, err := svc.IssueCSRFToken(context.Background(), "sid")
	require.NoError(t, err)

	reached := false
	handler := CSRFProtection(svc, testAuditor(t))(recordBody(&reached))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := withSession(jsonRequest(http.MethodPost, "/", `{}`), "sid")
		req.Header.Set(CSRFHeader, token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusForbidden}, codes)
}
