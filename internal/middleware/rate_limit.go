package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/eishro/storeguard/internal/services"
	pkghttp "github.com/eishro/storeguard/pkg/http"
	pkglogger "github.com/eishro/storeguard/pkg/logger"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RateLimitByIP is the global per-client limiter in front of every route. It
// keys on the trusted-proxy aware client IP.
func RateLimitByIP(config RateLimitConfig, auditor *Auditor) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(auditor.ips.KeyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			auditor.Violation(r, pkglogger.EventRateLimited, "", "global limit", nil)
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

// RateService is the slice of services.SecurityService RateLimit needs
type RateService interface {
	CheckRateLimit(ctx context.Context, key string, max int, window time.Duration) services.RateDecision
}

// RateLimit is a per-route sliding-window limit backed by the shared rate
// store, so every instance of the service sees the same counts.
func RateLimit(svc RateService, name string, config RateLimitConfig, auditor *Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := name + ":" + auditor.ClientIP(r)
			d := svc.CheckRateLimit(r.Context(), key, config.Requests, config.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(config.Window.Seconds())))
				auditor.Violation(r, pkglogger.EventRateLimited, "", name, nil)
				pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
