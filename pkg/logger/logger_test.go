package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "u***@*******.com", SanitizedEmail("user@example.com"))
	assert.Equal(t, "a@****.io", SanitizedEmail("a@test.io"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "u***@*******.com", MaskIdentifier("user@example.com"))
	assert.Equal(t, "203.0.113.7", MaskIdentifier("203.0.113.7"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("csrfToken=abc"))
	assert.True(t, SanitizeQueryString("Email=x"))
	assert.False(t, SanitizeQueryString("page=2&sort=name"))
}

func TestSecurityAuditLogger_LogPolicyViolation(t *testing.T) {
	var buf bytes.Buffer
	al := NewSecurityAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogPolicyViolation(context.Background(), SecurityEvent{
		EventType:  EventAccountLocked,
		IPAddress:  "203.0.113.7",
		Identifier: "user@example.com",
		Path:       "/api/auth/login",
		Metadata:   map[string]string{"stage": "auth_hardening"},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "audit", rec["msg"])
	assert.Equal(t, "security", rec["audit_type"])
	assert.Equal(t, EventAccountLocked, rec["event_type"])
	assert.Equal(t, "u***@*******.com", rec["identifier"])
	assert.Equal(t, "auth_hardening", rec["stage"])
	assert.NotContains(t, buf.String(), "user@example.com")
}

func TestSecurityAuditLogger_LogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	al := NewSecurityAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogSecurityEvent(context.Background(), SecurityEvent{EventType: EventLoginSucceeded})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
	_, hasIP := rec["ip_address"]
	assert.False(t, hasIP)
}
