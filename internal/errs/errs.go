// Package errs defines the error categories shared by the monitor packages.
//
// Errors are wrapped with fmt.Errorf("%w: ...") so callers can classify them
// with errors.Is regardless of which package produced them.
package errs

import "errors"

var (
	// ErrConfiguration reports a missing prerequisite, such as a region or
	// reference that must be set before an operation can run.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation reports an invalid argument: an unknown region name, a
	// state outside the fixed set, or an out-of-range config value.
	ErrValidation = errors.New("validation error")

	// ErrResource reports an unavailable camera or a failed persistence write.
	ErrResource = errors.New("resource error")
)
