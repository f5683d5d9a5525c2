package api

import (
	"net/http"
	"strings"

	vcrypto "github.com/VeltarosLabs/blockforge/internal/crypto"
	apitypes "github.com/VeltarosLabs/blockforge/pkg/api"
)

type SecurityConfig struct {
	AllowedOrigins []string        // exact match; "*" not recommended
	APIKey         string          // optional; if set, requires X-API-Key
	RequireKeyFor  map[string]bool // path -> require key
}

func SecurityMiddleware(cfg SecurityConfig, next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// CORS only when Origin is present
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Accept,X-API-Key")
			}

			// Preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		// reads stay open; the key only guards mutating calls
		if cfg.APIKey != "" && r.Method != http.MethodGet && cfg.RequireKeyFor[r.URL.Path] {
			got := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if !vcrypto.ConstantTimeEqualString(got, cfg.APIKey) {
				writeJSON(w, http.StatusUnauthorized, apitypes.ErrorResponse{
					OK:    false,
					Code:  apitypes.CodeUnauthorized,
					Error: "unauthorized",
				})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
