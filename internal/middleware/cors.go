package middleware

import (
	"net/http"
	"strings"

	"github.com/benvon/focus-companion/internal/request"
	"github.com/rs/cors"
)

const defaultFrontendOrigin = "http://localhost:8501"

// ParseOrigins splits a comma-separated origin list, dropping blanks and duplicates.
func ParseOrigins(frontendURL string) []string {
	origins := []string{}
	seen := map[string]bool{}
	for _, origin := range strings.Split(frontendURL, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		origins = append(origins, trimmed)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultFrontendOrigin)
	}
	return origins
}

// CORS creates CORS middleware for the given FRONTEND_URL value
func CORS(frontendURL string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   ParseOrigins(frontendURL),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", request.RequestIDHeader, DefaultTrustedUserHeader},
		ExposedHeaders:   []string{request.RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}
