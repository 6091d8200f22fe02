package auth

import "context"

// contextKey is a custom type for context keys
type contextKey string

const (
	sessionIDKey         contextKey = "session_id"
	csrfTokenKey         contextKey = "csrf_token"
	attemptIdentifierKey contextKey = "attempt_identifier"
)

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns "" when no session is attached.
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// WithCSRFToken attaches a freshly issued token so handlers can echo it.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenKey, token)
}

func CSRFTokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(csrfTokenKey).(string)
	return tok
}

// WithAttemptIdentifier records the lockout identifier the hardening stage used,
// so the handler can reset the same one on success.
func WithAttemptIdentifier(ctx context.Context, identifier string) context.Context {
	return context.WithValue(ctx, attemptIdentifierKey, identifier)
}

func AttemptIdentifierFromContext(ctx context.Context) string {
	id, _ := ctx.Value(attemptIdentifierKey).(string)
	return id
}
