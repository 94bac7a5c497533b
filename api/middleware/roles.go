package middleware

import (
	"net/http"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

// RequireRole admits callers holding any of roles. Approvals, payments and
// chart-of-accounts changes sit behind RequireRole(logg, enums.RoleAdmin).
// A request that never passed Auth is UNAUTHORIZED rather than FORBIDDEN.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			err := pkgerrors.New(pkgerrors.CodeForbidden, "role required").
				WithDetails(map[string]any{"required": roles, "role": actor.Role})
			responses.WriteError(r.Context(), logg, w, err)
		})
	}
}
