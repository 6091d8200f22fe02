package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	pkghttp "github.com/eishro/storeguard/pkg/http"
	pkglogger "github.com/eishro/storeguard/pkg/logger"
	"github.com/eishro/storeguard/pkg/sanitize"
)

// SQLInjectionGuard rejects requests whose body, query or route params match
// an injection pattern. It fails closed: anything it cannot inspect is
// rejected. The offending field and pattern class are logged, never returned.
func SQLInjectionGuard(guard *sanitize.SQLGuard, auditor *Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, r, err := payloadFor(r)
			if err != nil {
				pkghttp.WriteBadRequest(w, "Invalid request body")
				return
			}

			if err := checkPayload(guard, p); err != nil {
				var injErr *sanitize.InjectionError
				if errors.As(err, &injErr) {
					auditor.Logger().Warn("suspicious input rejected",
						slog.String("field", injErr.Field),
						slog.String("pattern", injErr.Pattern),
						slog.String("path", r.URL.Path))
					auditor.Violation(r, pkglogger.EventInjectionRejected, "", "pattern match",
						map[string]string{"field": injErr.Field, "pattern": injErr.Pattern})
				} else {
					auditor.Logger().Error("injection check failed", slog.Any("error", err))
				}
				pkghttp.WriteSuspiciousInput(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func checkPayload(guard *sanitize.SQLGuard, p *Payload) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = sanitize.ErrSuspiciousInput
		}
	}()

	if err := guard.Check(p.Body, ""); err != nil {
		return err
	}
	if err := guard.Check(p.Query, "query"); err != nil {
		return err
	}
	return guard.Check(p.Params, "params")
}
