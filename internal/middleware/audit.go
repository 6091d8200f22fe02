package middleware

import (
	"log/slog"
	"net/http"

	pkghttp "github.com/eishro/storeguard/pkg/http"
	pkglogger "github.com/eishro/storeguard/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// Auditor is shared by the security stages for client IP resolution and for
// reporting rejected requests.
type Auditor struct {
	logger *slog.Logger
	audit  *pkglogger.SecurityAuditLogger
	ips    *pkghttp.IPResolver
}

func NewAuditor(logger *slog.Logger, ips *pkghttp.IPResolver) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger: logger,
		audit:  pkglogger.NewSecurityAuditLogger(logger),
		ips:    ips,
	}
}

func (a *Auditor) Logger() *slog.Logger { return a.logger }

func (a *Auditor) ClientIP(r *http.Request) string { return a.ips.ClientIP(r) }

func (a *Auditor) event(r *http.Request, eventType, identifier, reason string, meta map[string]string) pkglogger.SecurityEvent {
	return pkglogger.SecurityEvent{
		EventType:  eventType,
		RequestID:  middleware.GetReqID(r.Context()),
		IPAddress:  a.ClientIP(r),
		Identifier: identifier,
		Method:     r.Method,
		Path:       r.URL.Path,
		Reason:     reason,
		Metadata:   meta,
	}
}

// Violation audits a request that a stage rejected.
func (a *Auditor) Violation(r *http.Request, eventType, identifier, reason string, meta map[string]string) {
	a.audit.LogPolicyViolation(r.Context(), a.event(r, eventType, identifier, reason, meta))
}

// Event audits an accepted security-relevant action.
func (a *Auditor) Event(r *http.Request, eventType, identifier string, meta map[string]string) {
	a.audit.LogSecurityEvent(r.Context(), a.event(r, eventType, identifier, "", meta))
}
