package middleware

import (
	"context"
	"net/http"
	"time"

	"facturalo/ms_cfdi_core/internal/infrastructure/config"
)

// Timeout bounds the request context so a handler cannot outlive the write
// deadline of its route.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StampTimeout applies the extended timeout for endpoints that wait on the
// stamping provider. The provider call can take well past the default
// WriteTimeout when the PAC is under load.
func StampTimeout(cfg config.HTTPSettings) func(http.Handler) http.Handler {
	return Timeout(cfg.StampTimeout)
}
