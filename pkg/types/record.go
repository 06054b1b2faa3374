package types

import (
	"regexp"
	"time"
)

// IDLength is the exact length of a record identifier.
const IDLength = 8

// idPattern matches a well-formed record identifier: exactly eight
// lowercase hexadecimal characters.
var idPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// ValidID reports whether id is a well-formed record identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Record represents a single stored memory. Records are immutable once
// written: an update is modeled as a new record.
type Record struct {
	ID        string    // 8 lowercase hex characters, unique across the store
	Timestamp time.Time // creation time, sub-second precision
	Agent     string    // creator agent label, free text
	User      string    // user label, free text
	Topics    []string  // ordered, insertion order preserved
	Content   string    // arbitrary UTF-8, preserved byte-for-byte
}
