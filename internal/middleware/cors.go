package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/AnshRaj112/astroguide-backend/pkg/clientid"
)

// CORS allows the configured origins (case-insensitive). Preflight requests
// are answered with 200 and never reach the router.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", clientid.DeviceHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
