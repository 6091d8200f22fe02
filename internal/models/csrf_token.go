package models

import "time"

const (
	DefaultCSRFTokenBytes = 32
	DefaultCSRFTokenTTL   = 24 * time.Hour
)

// CSRFToken is the stored half of an issued token. The raw token is never kept.
type CSRFToken struct {
	SessionID string    `db:"session_id"`
	TokenHash string    `db:"token_hash"`
	IssuedAt  time.Time `db:"issued_at"`
}

// Expired reports whether the token is older than ttl at now.
func (t *CSRFToken) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.IssuedAt) > ttl
}
