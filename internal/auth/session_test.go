package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-session-secret-with-enough-entropy-0123456789"

func newSessionManager(t *testing.T, clock *fakeClock) *auth.SessionManager {
	t.Helper()
	m, err := auth.NewSessionManager(auth.SessionConfig{
		Secret: testSecret,
		TTL:    time.Hour,
		Cookie: auth.CookieConfig{SameSite: "strict", Secure: true},
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return m
}

func TestSessionManager_IssueAndParse(t *testing.T) {
	m := newSessionManager(t, newFakeClock())

	sid, token, err := m.Issue()
	require.NoError(t, err)
	assert.NotEmpty(t, sid)

	parsed, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, sid, parsed)
}

func TestSessionManager_RejectsTampered(t *testing.T) {
	m := newSessionManager(t, newFakeClock())
	_, token, err := m.Issue()
	require.NoError(t, err)

	_, err = m.Parse(token + "x")
	assert.Error(t, err)

	other, err := auth.NewSessionManager(auth.SessionConfig{Secret: "a-different-secret-also-long-enough-0123456789"})
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestSessionManager_Expired(t *testing.T) {
	clock := newFakeClock()
	m := newSessionManager(t, clock)
	_, token, err := m.Issue()
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestSessionManager_Cookie(t *testing.T) {
	m := newSessionManager(t, newFakeClock())
	sid, token, err := m.Issue()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.SetCookie(w, token)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.DefaultSessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	got, err := m.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, sid, got)

	_, err = m.FromRequest(httptest.NewRequest("GET", "/", nil))
	assert.Error(t, err)
}

func TestNewSessionManager_RequiresSecret(t *testing.T) {
	_, err := auth.NewSessionManager(auth.SessionConfig{})
	assert.Error(t, err)
}
