package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"pollboard/pkg/domain"
	dErrors "pollboard/pkg/domain-errors"
	"pollboard/pkg/platform/httputil"
	"pollboard/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to an authenticated identity.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Identity, error)
}

// RequireAuth rejects requests without a valid bearer credential and injects
// the resolved identity into the request context for downstream handlers.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			ident, err := validator.ValidateToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithIdentity(ctx, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
