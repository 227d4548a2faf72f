package middleware

import (
	"net/http"

	"github.com/AnshRaj112/astroguide-backend/pkg/clientid"
)

// Identity stores the hashed caller identity in the request context.
func Identity(res *clientid.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := clientid.WithIdentity(r.Context(), res.Identity(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
