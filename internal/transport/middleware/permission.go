package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	"github.com/frahmantamala/meter-fleet/internal/transport"
)

// RequireRoles lets the request through when the principal holds one of roles
// or is a superuser.
func RequireRoles(logger *slog.Logger, roles ...auth.Role) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				base.WriteError(w, internal.NewUnauthorizedError("Authentication credentials were not provided", internal.ErrCodeMissingToken))
				return
			}

			if !auth.Allowed(p.Role, p.IsSuperuser, roles...) {
				base.Logger.Warn("access denied: role not permitted",
					"user_id", p.ID,
					"role", p.Role,
					"required_roles", roles)
				base.WriteError(w, internal.ErrForbidden())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
