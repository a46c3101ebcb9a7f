package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string for execution identifiers.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseID parses a positive connection or history id from a path segment or
// flag. kind names the id in the error message.
func ParseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrValidation("invalid %s %q", kind, s)
	}
	return id, nil
}
