package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/models"
)

// Auth requires one of apiKeys in headerName (or the api_key cookie) on every
// path except the public ones.
func Auth(apiKeys []string, headerName string, publicPaths ...string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerName)
			if key == "" {
				if c, err := r.Cookie("api_key"); err == nil {
					key = c.Value
				}
			}

			if key == "" {
				models.WriteError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if !validKey(keys, key) {
				log.Warn().
					Str("request_id", GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Msg("invalid API key")
				models.WriteError(w, http.StatusForbidden, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validKey(keys [][]byte, key string) bool {
	ok := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}
