package testutil

import (
	"github.com/google/uuid"

	"pollboard/pkg/domain"
)

// NewUserID returns a fresh random user id.
func NewUserID() domain.UserID {
	return domain.UserID(uuid.New())
}
