package task

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh random UUID v4 in canonical lowercase form.
func NewID() string {
	return uuid.NewString()
}

// NormalizeID lower-cases id so records resolve to one file name regardless
// of how the caller spelled the hex digits.
func NormalizeID(id string) string {
	return strings.ToLower(id)
}

// IsValidID reports whether id is a canonical 36-character UUID v4
// (variant RFC 4122). Upper-case hex digits are accepted;
// see NormalizeID.
func IsValidID(id string) bool {
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}
