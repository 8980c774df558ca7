package identity

import (
	"log/slog"
	"net/http"

	dErrors "pollboard/pkg/domain-errors"
	"pollboard/pkg/platform/httputil"
	"pollboard/pkg/requestcontext"
)

// Require enforces the role table for one operation. It runs after the auth
// middleware, so a missing identity means the chain was miswired rather than
// a caller mistake; that still answers 401.
func Require(op Operation, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ident := requestcontext.Identity(ctx)
			if ident.IsZero() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}

			if err := Authorize(ident.Role, RolesFor(op)); err != nil {
				logger.WarnContext(ctx, "operation forbidden",
					"request_id", requestcontext.RequestID(ctx),
					"user_id", ident.UserID,
					"role", ident.Role,
					"operation", op,
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
