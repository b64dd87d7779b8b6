package common

import "errors"

var (
	// ErrNotFound is returned when an atom or relationship id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is returned when the caller's access level is below
	// the knowledge threshold of the requested atom.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidInput covers bad enum values, malformed tensors and range
	// violations.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable marks failures of the embedding provider,
	// the vector index or the graph store.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Specialised input errors. errors.Is(err, ErrInvalidInput) holds for all of them.
var (
	ErrInvalidThreshold   error = &inputError{msg: "invalid knowledge threshold"}
	ErrInvalidAccessLevel error = &inputError{msg: "invalid access level"}
	ErrInvalidDirection   error = &inputError{msg: "invalid traversal direction"}
)

type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Unwrap() error { return ErrInvalidInput }
