package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/eishro/storeguard/pkg/http"
	"github.com/eishro/storeguard/pkg/sanitize"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLInjectionGuard(t *testing.T) {
	guard := sanitize.NewSQLGuard(sanitize.SQLGuardConfig{ExemptFields: []string{"password"}})

	tests := []struct {
		name    string
		req     func() *http.Request
		blocked bool
	}{
		{"clean body", func() *http.Request { return jsonRequest(http.MethodPost, "/", `{"name":"John Doe"}`) }, false},
		{"tautology in body", func() *http.Request {
			return jsonRequest(http.MethodPost, "/", `{"username":"admin' OR '1'='1"}`)
		}, true},
		{"nested value", func() *http.Request {
			return jsonRequest(http.MethodPost, "/", `{"address":{"lines":["ok","1; DROP TABLE users; --"]}}`)
		}, true},
		{"malicious key", func() *http.Request { return jsonRequest(http.MethodPost, "/", `{"name;--":"x"}`) }, true},
		{"exempt password", func() *http.Request { return jsonRequest(http.MethodPost, "/", `{"password":"P@ss'word; --"}`) }, false},
		{"query string", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/?q=SELECT+*+FROM+users", nil) }, true},
		{"clean query", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/?page=2", nil) }, false},
		{"form body", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("email=a%40b.io&cmd=xp_cmdshell"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			handler := SQLInjectionGuard(guard, testAuditor(t))(recordBody(&reached))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, tt.req())

			if tt.blocked {
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.False(t, reached)
				assert.Contains(t, w.Body.String(), pkghttp.CodeSuspiciousInput)
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.True(t, reached)
			}
		})
	}
}

func TestSQLInjectionGuard_RouteParams(t *testing.T) {
	guard := sanitize.NewSQLGuard(sanitize.SQLGuardConfig{})
	reached := false

	r := chi.NewRouter()
	r.With(SQLInjectionGuard(guard, testAuditor(t))).Get("/products/{slug}", recordBody(&reached).ServeHTTP)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/shoes'--", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, reached)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/red-shoes", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}

func TestSQLInjectionGuard_DetailsStayServerSide(t *testing.T) {
	var logs bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewJSONHandler(&logs, nil)), nil)
	guard := sanitize.NewSQLGuard(sanitize.SQLGuardConfig{})

	reached := false
	handler := SQLInjectionGuard(guard, auditor)(recordBody(&reached))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, jsonRequest(http.MethodPost, "/", `{"comment":"<script>alert(1)</script>"}`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.NotContains(t, string(body), "comment")
	assert.NotContains(t, string(body), "markup")
	assert.Contains(t, logs.String(), `"field":"comment"`)
	assert.Contains(t, logs.String(), `"event_type":"injection_rejected"`)
}

func TestSQLInjectionGuard_InvalidJSONRejected(t *testing.T) {
	reached := false
	handler := SQLInjectionGuard(sanitize.NewSQLGuard(sanitize.SQLGuardConfig{}), testAuditor(t))(recordBody(&reached))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, jsonRequest(http.MethodPost, "/", `{"name":`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, reached)
}
