package uuidv7

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrNotV7 = errors.New("uuidv7: not a version 7 uuid")

// New returns a time-ordered UUIDv7, so ids sort by creation time.
func New() (uuid.UUID, error) {
	return uuid.NewV7()
}

func NewString() (string, error) {
	u, err := New()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Parse accepts only the canonical 36 character form of a version 7 uuid.
func Parse(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 36 {
		return uuid.Nil, ErrNotV7
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if u.Version() != 7 || u.Variant() != uuid.RFC4122 {
		return uuid.Nil, ErrNotV7
	}
	return u, nil
}

func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}
