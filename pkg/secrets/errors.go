package secrets

import (
	"errors"
	"fmt"
)

// NotFoundError indicates the backend holds no credential at the requested
// path. Not retryable: either the path is wrong or the credential has not
// been provisioned yet.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("secret not found: %s", e.Path)
}

// UnavailableError indicates the backend could not be reached or failed at
// the transport level. Transient; callers may retry with backoff.
type UnavailableError struct {
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("secret store unavailable for %s: %v", e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var ua *UnavailableError
	return errors.As(err, &ua)
}
