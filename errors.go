package jsonextract

import (
	"errors"
	"io/fs"

	"github.com/arnodel/jsonextract/internal/scanner"
	"github.com/arnodel/jsonextract/internal/sink"
)

var (
	// ErrTargetNotFound is returned when the input ends before the target
	// array has been located.
	ErrTargetNotFound = scanner.ErrTargetNotFound

	// ErrTruncatedElement is returned when the input ends inside an array
	// element or before the array is closed.
	ErrTruncatedElement = scanner.ErrTruncatedElement

	// ErrWorkerFailure wraps the first error hit by a parallel worker.
	ErrWorkerFailure = sink.ErrWorkerFailure

	// ErrBadConfig is returned for conflicting or incomplete configuration.
	ErrBadConfig = errors.New("invalid configuration")
)

// ExitCode maps an error returned by Run to a process exit code: 0 for nil,
// 2 for configuration errors and missing input files, 1 for everything else
// (I/O failures, malformed or truncated JSON, missing target array).
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrBadConfig), errors.Is(err, fs.ErrNotExist):
		return 2
	default:
		return 1
	}
}
