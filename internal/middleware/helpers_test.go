package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/models"
	"github.com/eishro/storeguard/internal/ratelimit"
	"github.com/eishro/storeguard/internal/services"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	"github.com/stretchr/testify/require"
)

func testAuditor(t *testing.T) *Auditor {
	t.Helper()
	ips, err := pkghttp.NewIPResolver(nil)
	require.NoError(t, err)
	return NewAuditor(slog.New(slog.NewJSONHandler(io.Discard, nil)), ips)
}

func newTestSecurityService(policy models.LockoutPolicy) *services.SecurityService {
	return services.NewSecurityService(
		auth.NewCSRFTokenManager(auth.CSRFConfig{}),
		auth.NewLoginAttemptTracker(policy, nil),
		ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{}),
		policy,
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// recordBody is a terminal handler that echoes the body it received.
func recordBody(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})
}
