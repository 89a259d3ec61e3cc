package store

import "errors"

// ErrNotFound is returned by mutations and lookups when no row matches the
// requested timestamp. The store file is left untouched.
var ErrNotFound = errors.New("record not found")

// ValidationError reports a structurally invalid import buffer (missing
// mandatory columns). Nothing is applied when it is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
