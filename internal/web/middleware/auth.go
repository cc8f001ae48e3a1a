package middleware

import (
	"crypto/subtle"
	"net/http"
)

// Paths reachable without a key so probes and scrapers keep working.
var authExempt = map[string]bool{
	"/api/health": true,
}

// Authentication requires the X-API-Key header to match apiKey. An empty
// apiKey disables the check for local development.
func Authentication(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || authExempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
