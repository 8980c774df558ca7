// Package identity holds the role authorizer and the display-name resolver.
//
// Authorization is declarative: one table maps each operation to its allowed
// roles, and a pure predicate checks membership. Handlers never carry
// per-route role literals.
package identity

import (
	"pollboard/pkg/domain"
	dErrors "pollboard/pkg/domain-errors"
)

// Operation names an authorizable action on the poll surface.
type Operation string

const (
	OpListPolls    Operation = "polls.list"
	OpGetPoll      Operation = "polls.get"
	OpCreatePoll   Operation = "polls.create"
	OpEditPoll     Operation = "polls.edit"
	OpDeletePoll   Operation = "polls.delete"
	OpLockPoll     Operation = "polls.lock"
	OpUnlockPoll   Operation = "polls.unlock"
	OpAddOption    Operation = "polls.options.add"
	OpRemoveOption Operation = "polls.options.remove"
	OpVote         Operation = "polls.vote"
	OpUnvote       Operation = "polls.unvote"
)

// allowedRoles is the single source of truth for per-operation authorization.
var allowedRoles = map[Operation][]domain.Role{
	OpListPolls:    {domain.RoleUser, domain.RoleAdmin},
	OpGetPoll:      {domain.RoleUser, domain.RoleAdmin},
	OpCreatePoll:   {domain.RoleAdmin},
	OpEditPoll:     {domain.RoleAdmin},
	OpDeletePoll:   {domain.RoleAdmin},
	OpLockPoll:     {domain.RoleAdmin},
	OpUnlockPoll:   {domain.RoleAdmin},
	OpAddOption:    {domain.RoleAdmin},
	OpRemoveOption: {domain.RoleAdmin},
	OpVote:         {domain.RoleUser, domain.RoleAdmin},
	OpUnvote:       {domain.RoleUser, domain.RoleAdmin},
}

// RolesFor returns the allowed roles for an operation. Unknown operations
// get an empty set, which Authorize rejects.
func RolesFor(op Operation) []domain.Role {
	return allowedRoles[op]
}

// Authorize is a pure predicate: allowed iff the identity's role is a member
// of the required set. No side effects, no state.
func Authorize(role domain.Role, required []domain.Role) error {
	for _, r := range required {
		if role == r {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "you are not allowed to access this resource")
}
