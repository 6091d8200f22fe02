package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/eishro/storeguard/internal/auth"
	pkgauth "github.com/eishro/storeguard/pkg/auth"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	"github.com/eishro/storeguard/pkg/sanitize"
)

// HealthChecker is implemented by database.DB
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SecurityHandler serves the routes that expose the security engine directly.
type SecurityHandler struct {
	db      HealthChecker
	maxBody int64
}

func NewSecurityHandler(db HealthChecker, maxBody int64) *SecurityHandler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &SecurityHandler{db: db, maxBody: maxBody}
}

// Health reports liveness, including the store database when one is in use.
func (h *SecurityHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": "unreachable",
			})
			return
		}
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CSRFTokenResponse carries the token issued by the CSRF stage
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRFToken returns the token the CSRF middleware issued for this request.
func (h *SecurityHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token := auth.CSRFTokenFromContext(r.Context())
	if token == "" {
		pkghttp.WriteInternalError(w, "Could not issue CSRF token")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, CSRFTokenResponse{CSRFToken: token})
}

type PasswordStrengthRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

// PasswordStrength scores a candidate password.
func (h *SecurityHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req PasswordStrengthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pkgauth.ValidatePasswordStrength(req.Password))
}

type EncodeRequest struct {
	Text string `json:"text" validate:"max=10000"`
	Type string `json:"type" validate:"omitempty,oneof=html attribute javascript url"`
}

type EncodeResponse struct {
	Encoded string `json:"encoded"`
}

// Encode applies context-specific output encoding to text.
func (h *SecurityHandler) Encode(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	typ := sanitize.EncodeType(req.Type)
	if typ == "" {
		typ = sanitize.EncodeHTML
	}
	pkghttp.WriteJSON(w, http.StatusOK, EncodeResponse{Encoded: sanitize.EncodeOutput(req.Text, typ)})
}

// Echo returns the request body as the handler received it, after the
// security stages have run.
func (h *SecurityHandler) Echo(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	body, err := sanitize.FromJSON(raw)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if obj, ok := body.(*sanitize.Object); ok {
		clean := sanitize.NewObject()
		for _, k := range obj.Keys() {
			if k == "csrfToken" {
				continue
			}
			v, _ := obj.Get(k)
			clean.Set(k, v)
		}
		body = clean
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]sanitize.Value{"received": body})
}
