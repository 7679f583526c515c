package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// -----------------------------------------------------------------------------
// ID
// -----------------------------------------------------------------------------

// ID is a K-sortable unique identifier used for every entity the engine
// tracks: execution contexts, enforcement events, workspaces, clients.
type ID string

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}

// NewID generates a new KSUID-backed ID.
func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID generates a new ID and panics on failure. Random source failures
// are not recoverable at call sites, so most code uses this form.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates that the given string is a well-formed KSUID and returns
// it as an ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("id must not be empty")
	}
	if _, err := ksuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(s), nil
}
