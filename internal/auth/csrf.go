package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eishro/storeguard/internal/models"
	pkgauth "github.com/eishro/storeguard/pkg/auth"
)

// CSRFConfig configures a CSRFTokenManager
type CSRFConfig struct {
	TokenBytes int           // random bytes per token, hex encoded on the wire
	TokenTTL   time.Duration // tokens older than this never verify
	Now        func() time.Time
}

// CSRFTokenManager is the in-process CSRF token store. It keeps at most one
// token hash per session and never starts goroutines; Sweep is driven by the
// background cleanup manager.
type CSRFTokenManager struct {
	tokens     map[string]models.CSRFToken // session ID -> stored hash
	mu         sync.Mutex
	tokenBytes int
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewCSRFTokenManager(cfg CSRFConfig) *CSRFTokenManager {
	if cfg.TokenBytes <= 0 {
		cfg.TokenBytes = models.DefaultCSRFTokenBytes
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = models.DefaultCSRFTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CSRFTokenManager{
		tokens:     make(map[string]models.CSRFToken),
		tokenBytes: cfg.TokenBytes,
		tokenTTL:   cfg.TokenTTL,
		now:        cfg.Now,
	}
}

// Issue creates a token for sessionID, replacing any unconsumed one.
func (m *CSRFTokenManager) Issue(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("issue csrf token: empty session id: %w", models.ErrBadRequest)
	}

	token, err := pkgauth.GenerateSecureRandomToken(m.tokenBytes)
	if err != nil {
		return "", fmt.Errorf("issue csrf token: %w", err)
	}

	m.mu.Lock()
	m.tokens[sessionID] = models.CSRFToken{
		SessionID: sessionID,
		TokenHash: pkgauth.HashToken(token),
		IssuedAt:  m.now(),
	}
	m.mu.Unlock()

	return token, nil
}

// Verify consumes the session's token if candidate matches it.
func (m *CSRFTokenManager) Verify(_ context.Context, sessionID, candidate string) (bool, error) {
	if sessionID == "" || candidate == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tokens[sessionID]
	if !ok {
		return false, nil
	}
	if rec.Expired(m.now(), m.tokenTTL) {
		delete(m.tokens, sessionID)
		return false, nil
	}
	if !pkgauth.TokenMatchesHash(candidate, rec.TokenHash) {
		return false, nil
	}

	delete(m.tokens, sessionID)
	return true, nil
}

// Sweep removes tokens older than the TTL and returns how many were removed.
func (m *CSRFTokenManager) Sweep(_ context.Context) (int64, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for sid, rec := range m.tokens {
		if rec.Expired(now, m.tokenTTL) {
			delete(m.tokens, sid)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored tokens.
func (m *CSRFTokenManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
