package driver

import "errors"

var (
	// ErrMissingField is returned when a required metadata field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrMalformed is returned by Parse on a corrupt or truncated package.
	ErrMalformed = errors.New("malformed driver package")
	// ErrHashMismatch is returned by Verify when the stored hash does not
	// match the recomputed one.
	ErrHashMismatch = errors.New("integrity hash mismatch")
)
