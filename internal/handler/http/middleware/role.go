package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

// AdminOnly requires an access token with the admin role.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Unauthorized(w, "Unauthorized")
			return
		}

		if !id.IsAdmin() {
			response.Forbidden(w, "Admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
