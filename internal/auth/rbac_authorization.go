package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/transport"
)

// Authorizer turns policy decisions into route middleware.
type Authorizer struct {
	*transport.BaseHandler
	policy *Policy
}

func NewAuthorizer(policy *Policy, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		BaseHandler: transport.NewBaseHandler(logger),
		policy:      policy,
	}
}

func (a *Authorizer) Policy() *Policy {
	return a.policy
}

func (a *Authorizer) Check(next http.HandlerFunc, action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			a.Logger.Warn("authorization check failed: principal not found in context")
			a.WriteError(w, internal.NewUnauthorizedError("Authentication credentials were not provided", internal.ErrCodeMissingToken))
			return
		}

		// actions with resource rules are decided again by the handler
		if a.policy.HasResourceRules(action) {
			next.ServeHTTP(w, r)
			return
		}

		if err := a.policy.Allow(p, action, nil); err != nil {
			a.Logger.WarnContext(r.Context(), "access denied",
				"user_id", p.ID,
				"role", p.Role,
				"action", action)
			a.HandleError(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// RequireAction wraps a handler with the policy check for action.
func (a *Authorizer) RequireAction(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.Check(next.ServeHTTP, action)
	}
}
