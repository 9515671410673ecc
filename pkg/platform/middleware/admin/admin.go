// Package admin gates routes on the caller's role.
package admin

import (
	"log/slog"
	"net/http"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/httputil"
	"estateclaims/pkg/requestcontext"
)

// RequireRole admits callers holding any of roles. Must run after auth.RequireAuth.
func RequireRole(logger *slog.Logger, roles ...id.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller, ok := requestcontext.Caller(ctx)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			for _, role := range roles {
				if caller.Has(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.WarnContext(ctx, "forbidden - missing role",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", caller.UserID,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
		})
	}
}

// RequireStaff admits reviewers and admins.
func RequireStaff(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole(logger, id.RoleAdmin, id.RoleReviewer)
}
