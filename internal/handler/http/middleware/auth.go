package middleware

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type identityKey struct{}

// Identity is the caller resolved from an access token.
type Identity struct {
	EmployeeID string
	Role       jwt.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == jwt.RoleAdmin
}

// AuthRequired rejects requests without a valid access token and stores the
// caller's Identity in the request context.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.Unauthorized(w, "Invalid token")
				return
			}

			tokenType, ok := claims[jwt.ClaimType].(string)
			if tokenType != jwt.TokenTypeAccess || !ok {
				response.Unauthorized(w, "Invalid token type")
				return
			}

			employeeID, ok := claims[jwt.ClaimEmployeeID].(string)
			if !ok || employeeID == "" {
				response.Unauthorized(w, "Token has no employee_id")
				return
			}

			role, _ := claims[jwt.ClaimRole].(string)
			ctx := WithIdentity(r.Context(), Identity{
				EmployeeID: employeeID,
				Role:       jwt.Role(role),
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(hfn)
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller set by AuthRequired.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
