package testutil

import (
	"context"
	"net/http"
	"time"

	"pollboard/pkg/domain"
	"pollboard/pkg/requestcontext"
)

// WithIdentity adds an authenticated identity to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithIdentity(req *http.Request, ident domain.Identity) *http.Request {
	return req.WithContext(requestcontext.WithIdentity(req.Context(), ident))
}

// ContextWithIdentity returns a background context carrying the identity.
func ContextWithIdentity(ident domain.Identity) context.Context {
	return requestcontext.WithIdentity(context.Background(), ident)
}

// ContextAt returns a background context whose request time is frozen at now.
func ContextAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

// NewUserIdentity returns a fresh user-role identity.
func NewUserIdentity() domain.Identity {
	return domain.Identity{UserID: NewUserID(), Role: domain.RoleUser}
}

// NewAdminIdentity returns a fresh admin-role identity.
func NewAdminIdentity() domain.Identity {
	return domain.Identity{UserID: NewUserID(), Role: domain.RoleAdmin}
}
