package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks a transient upstream failure during an
	// authorization decision. Callers must not interpret it as a denial;
	// the recommended handling is deny-the-action and surface the error.
	ErrUnavailable = errors.New("authz: authorization unavailable")

	// ErrNoMembership is returned by membership resolvers when the user has
	// no active membership in the organization.
	ErrNoMembership = errors.New("authz: no active membership")

	// ErrNotFound is returned by ownership readers when the resource does
	// not exist within the supplied organization.
	ErrNotFound = errors.New("authz: resource not found")
)

type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%v: %v", ErrUnavailable, e.cause)
}

func (e *unavailableError) Unwrap() error { return e.cause }

func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps an upstream failure so that errors.Is(err, ErrUnavailable)
// holds while the cause remains reachable via errors.Unwrap.
func Unavailable(cause error) error {
	if cause == nil {
		return nil
	}
	return &unavailableError{cause: cause}
}
