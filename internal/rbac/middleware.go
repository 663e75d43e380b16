// Package rbac wires role checks for HTTP handlers. Authentication happens
// at the gateway; this service trusts the identity headers it injects.
package rbac

import (
	"net/http"
	"strconv"

	"github.com/meridian-dms/meridian-dms/internal/platform/httpx"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// Identity headers set by the API gateway.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// RequireActor rejects requests without a valid identity and stores the
// actor in the request context for handlers downstream.
func RequireActor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
			role := shared.Role(r.Header.Get(HeaderUserRole))
			if err != nil || id <= 0 || !role.Valid() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized",
					"valid "+HeaderUserID+" and "+HeaderUserRole+" headers are required")
				return
			}
			ctx := shared.ContextWithActor(r.Context(), shared.Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose actor is not an admin. Mount after
// RequireActor.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(shared.RoleAdmin)
}

// RequireRole rejects requests whose actor holds none of the given roles.
func RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no actor in request")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
		})
	}
}
