package security

import "errors"

var (
	ErrIdentifierEmpty = errors.New("identifier cannot be empty")
)

// Reasons returned in validation results. Policy rejections are data,
// not errors: they cross the authentication boundary as structured
// results with explicit flags.
const (
	ReasonLockedOut       = "Account temporarily locked due to multiple failed attempts. Try again later."
	ReasonInvalidPassword = "Invalid username or password"
	ReasonAccountLocked   = "Account locked due to multiple failed attempts"
)
