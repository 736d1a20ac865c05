package db

import "errors"

// ErrNotFound is returned when an entity is absent or owned by a different
// domain. The two cases are deliberately indistinguishable to the caller.
var ErrNotFound = errors.New("not found")

// ValidationError reports rejected input (blank title or content, bad score)
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + " " + e.Reason
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
