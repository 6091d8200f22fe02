package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/models"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	pkglogger "github.com/eishro/storeguard/pkg/logger"
)

const RemainingAttemptsHeader = "X-Remaining-Attempts"

// AttemptService is the slice of services.SecurityService the hardening stage needs
type AttemptService interface {
	RecordLoginAttempt(ctx context.Context, identifier string) models.AttemptResult
	Policy() models.LockoutPolicy
}

// AuthenticationHardening counts every request against a lockout identifier:
// the lower-cased body field when present, otherwise the client IP. Locked
// identifiers get a 429 before the handler runs.
func AuthenticationHardening(svc AttemptService, field string, auditor *Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ""
			if p, req, err := payloadFor(r); err == nil {
				r = req
				if v, ok := p.bodyString(field); ok {
					identifier = strings.ToLower(strings.TrimSpace(v))
				}
			}
			if identifier == "" {
				identifier = auditor.ClientIP(r)
			}

			res := svc.RecordLoginAttempt(r.Context(), identifier)
			w.Header().Set(RemainingAttemptsHeader, strconv.Itoa(res.RemainingAttempts))

			if !res.Allowed {
				lockout := svc.Policy().LockoutDuration
				w.Header().Set("Retry-After", strconv.Itoa(int(lockout.Seconds())))
				auditor.Violation(r, pkglogger.EventAccountLocked, identifier, "too many attempts", nil)
				pkghttp.WriteAccountLocked(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAttemptIdentifier(r.Context(), identifier)))
		})
	}
}
