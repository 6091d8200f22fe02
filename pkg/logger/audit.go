package logger

import (
	"context"
	"log/slog"
	"time"
)

// Security event types
const (
	EventCSRFFailure       = "csrf_failure"
	EventInjectionRejected = "injection_rejected"
	EventAccountLocked     = "account_locked"
	EventRateLimited       = "rate_limited"
	EventLoginSucceeded    = "login_succeeded"
	EventLoginFailed       = "login_failed"
)

// SecurityEvent represents a policy decision worth auditing
type SecurityEvent struct {
	EventType  string
	RequestID  string
	IPAddress  string
	Identifier string
	Method     string
	Path       string
	Reason     string
	Metadata   map[string]string
}

// SecurityAuditLogger writes "audit" records with audit_type=security
type SecurityAuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewSecurityAuditLogger(logger *slog.Logger) *SecurityAuditLogger {
	return &SecurityAuditLogger{logger: logger, now: time.Now}
}

// LogPolicyViolation records a rejected request at warn level.
func (al *SecurityAuditLogger) LogPolicyViolation(ctx context.Context, event SecurityEvent) {
	al.log(ctx, slog.LevelWarn, event)
}

// LogSecurityEvent records an informational event such as a successful login.
func (al *SecurityAuditLogger) LogSecurityEvent(ctx context.Context, event SecurityEvent) {
	al.log(ctx, slog.LevelInfo, event)
}

func (al *SecurityAuditLogger) log(ctx context.Context, level slog.Level, event SecurityEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", MaskIdentifier(event.Identifier)))
	}
	if event.Method != "" {
		attrs = append(attrs, slog.String("method", event.Method))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
