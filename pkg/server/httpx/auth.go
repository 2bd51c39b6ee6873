package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/exposure/pkg/config"
	"github.com/vulntor/exposure/pkg/server/api"
)

// Auth returns a middleware that enforces token-based authentication.
//
// Behavior:
//   - Health endpoints (/healthz, /readyz) are always accessible
//   - In "none" mode every request passes
//   - In "token" mode the Authorization: Bearer <token> header must match
//     cfg.Auth.Token
//
// Example header: Authorization: Bearer secret-token-12345
func Auth(cfg config.ServerConfig) func(http.Handler) http.Handler {
	want := []byte(cfg.Auth.Token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthEndpoint(r.URL.Path) || cfg.Auth.Mode == "none" || cfg.Auth.Mode == "" {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Auth.Mode != "token" {
				log.Error().
					Str("component", "auth").
					Str("mode", cfg.Auth.Mode).
					Msg("Unknown auth mode")
				writeUnauthorized(w, "Authentication configuration error")
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				log.Warn().
					Str("component", "auth").
					Str("path", r.URL.Path).
					Msg("Missing authorization header")
				writeUnauthorized(w, "Missing authorization header")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				log.Warn().
					Str("component", "auth").
					Str("path", r.URL.Path).
					Msg("Invalid token")
				writeUnauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isHealthEndpoint(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// extractBearerToken extracts the token from Authorization: Bearer <token> header
func extractBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="exposure"`)
	api.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", message)
}
