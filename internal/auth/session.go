package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eishro/storeguard/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultSessionCookie = "eishro_sid"
	DefaultSessionTTL    = 24 * time.Hour
)

// SessionClaims is the payload of the signed session cookie
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionConfig configures a SessionManager
type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Cookie     CookieConfig
	Now        func() time.Time
}

// SessionManager issues and reads the session identity cookie. The session ID
// is a random UUID; the CSRF token store is keyed by it.
type SessionManager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	cookie     CookieConfig
	now        func() time.Time
}

func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionManager{
		secret:     []byte(cfg.Secret),
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		cookie:     cfg.Cookie,
		now:        cfg.Now,
	}, nil
}

func (m *SessionManager) CookieName() string { return m.cookieName }

// Issue creates a new session and returns its ID and signed token.
func (m *SessionManager) Issue() (string, string, error) {
	sid := uuid.New().String()
	now := m.now()

	claims := &SessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return sid, token, nil
}

// Parse verifies a session token and returns the session ID.
func (m *SessionManager) Parse(tokenString string) (string, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse session token: %w", err)
	}

	if !token.Valid {
		return "", models.ErrUnauthorized
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return "", fmt.Errorf("invalid session id: %w", models.ErrUnauthorized)
	}
	return claims.SessionID, nil
}

// FromRequest returns the session ID carried by the request cookie.
func (m *SessionManager) FromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", models.ErrUnauthorized
	}
	return m.Parse(cookie.Value)
}

// SetCookie writes the session cookie for token.
func (m *SessionManager) SetCookie(w http.ResponseWriter, token string) {
	SetSessionCookie(w, m.cookieName, token, int(m.ttl.Seconds()), m.cookie)
}
