package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/eishro/storeguard/internal/auth"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	pkglogger "github.com/eishro/storeguard/pkg/logger"
)

const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFBodyField = "csrfToken"
)

// CSRFService is the slice of services.SecurityService the CSRF stage needs
type CSRFService interface {
	IssueCSRFToken(ctx context.Context, sessionID string) (string, error)
	VerifyCSRFToken(ctx context.Context, sessionID, candidate string) bool
}

// CSRFProtection issues a fresh token on safe requests and verifies it on
// state-changing ones. Safe requests never fail; a missing session, a missing
// token or a mismatch on a state-changing request is a 403.
func CSRFProtection(svc CSRFService, auditor *Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := auth.SessionIDFromContext(r.Context())

			// Only protect state-changing methods
			if !isStateChangingMethod(r.Method) {
				if sessionID != "" {
					token, err := svc.IssueCSRFToken(r.Context(), sessionID)
					if err != nil {
						auditor.Logger().Warn("failed to issue csrf token", slog.Any("error", err))
					} else {
						w.Header().Set(CSRFHeader, token)
						r = r.WithContext(auth.WithCSRFToken(r.Context(), token))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if sessionID == "" {
				auditor.Violation(r, pkglogger.EventCSRFFailure, "", "missing session", nil)
				pkghttp.WriteCSRFInvalid(w)
				return
			}

			token := r.Header.Get(CSRFHeader)
			if token == "" {
				p, req, err := payloadFor(r)
				if err != nil {
					pkghttp.WriteBadRequest(w, "Invalid request body")
					return
				}
				r = req
				token, _ = p.bodyString(CSRFBodyField)
			}

			if token == "" {
				auditor.Violation(r, pkglogger.EventCSRFFailure, "", "missing token", nil)
				pkghttp.WriteCSRFInvalid(w)
				return
			}

			if !svc.VerifyCSRFToken(r.Context(), sessionID, token) {
				auditor.Violation(r, pkglogger.EventCSRFFailure, "", "token mismatch", nil)
				pkghttp.WriteCSRFInvalid(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
