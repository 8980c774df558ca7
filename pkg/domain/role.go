package domain

// Role is the authorization level carried by an authenticated identity.
// Roles come from the identity gate's token claims; the service never
// stores or mutates them.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one the service understands.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the resolved authenticated caller: a user id plus role.
// It is produced by the auth middleware and consumed by the role authorizer
// and the poll lifecycle engine.
type Identity struct {
	UserID UserID
	Role   Role
}

// IsZero reports whether no identity was resolved.
func (i Identity) IsZero() bool { return i.UserID.IsZero() }
