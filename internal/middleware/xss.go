package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/eishro/storeguard/pkg/sanitize"
)

// XSSProtection rewrites the body, query and route params with markup removed
// per level. It never rejects a request: if sanitizing fails the request
// continues unmodified and a warning is logged.
func XSSProtection(s *sanitize.XSSSanitizer, level sanitize.Level, auditor *Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, captured, err := payloadFor(r)
			if err != nil {
				auditor.Logger().Warn("xss sanitization skipped", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if err := sanitizePayload(s, level, captured, p); err != nil {
				auditor.Logger().Warn("xss sanitization skipped",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
			}
			next.ServeHTTP(w, captured)
		})
	}
}

func sanitizePayload(s *sanitize.XSSSanitizer, level sanitize.Level, r *http.Request, p *Payload) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sanitizer panic: %v", rec)
		}
	}()

	clean := &Payload{form: p.form}
	if p.Body != nil {
		clean.Body = s.Sanitize(p.Body, level)
	}
	if p.Query != nil {
		clean.Query = asObject(s.Sanitize(p.Query, level))
	}
	if p.Params != nil {
		clean.Params = asObject(s.Sanitize(p.Params, level))
	}

	if err := commit(r, clean); err != nil {
		return err
	}
	*p = *clean
	return nil
}

func asObject(v sanitize.Value) *sanitize.Object {
	obj, _ := v.(*sanitize.Object)
	return obj
}
