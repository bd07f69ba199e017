package scanner

import "errors"

var (
	// ErrTargetNotFound is returned when the input ends before the target
	// array has been located.
	ErrTargetNotFound = errors.New("target array not found")

	// ErrTruncatedElement is returned when the input ends inside an array
	// element or before the array is closed.
	ErrTruncatedElement = errors.New("truncated element")
)
