// Package domain defines the typed identifiers shared across the service.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-type assignment (a PollID can never be passed where an OptionID is
// expected). Parsing happens once at trust boundaries; everything past the
// handler layer works with validated ids.
package domain

import (
	"github.com/google/uuid"

	dErrors "pollboard/pkg/domain-errors"
)

type (
	// UserID identifies an authenticated caller.
	UserID uuid.UUID

	// PollID identifies a poll aggregate.
	PollID uuid.UUID

	// OptionID identifies one option inside its owning poll.
	OptionID uuid.UUID
)

// NewPollID returns a freshly generated poll id.
func NewPollID() PollID { return PollID(uuid.New()) }

// NewOptionID returns a freshly generated option id.
func NewOptionID() OptionID { return OptionID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id PollID) String() string   { return uuid.UUID(id).String() }
func (id OptionID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the id is the nil UUID.
func (id UserID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PollID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OptionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// The named types do not inherit uuid.UUID's methods, so without these the
// ids would serialize as raw byte arrays.
func (id UserID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id PollID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id OptionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *PollID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = PollID(u)
	return nil
}

func (id *OptionID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = OptionID(u)
	return nil
}

// ParseUserID validates and converts a raw string into a UserID.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw, "user id")
	return UserID(u), err
}

// ParsePollID validates and converts a raw string into a PollID.
func ParsePollID(raw string) (PollID, error) {
	u, err := parseUUID(raw, "poll id")
	return PollID(u), err
}

// ParseOptionID validates and converts a raw string into an OptionID.
func ParseOptionID(raw string) (OptionID, error) {
	u, err := parseUUID(raw, "option id")
	return OptionID(u), err
}

func parseUUID(raw, label string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" is required")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" must not be nil")
	}
	return u, nil
}
