package middleware

import (
	"net/http"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/ctxkeys"
)

// Config adds the app configuration to the request context.
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxkeys.WithConfig(r.Context(), cfg)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
