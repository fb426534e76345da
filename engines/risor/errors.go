package risor

import "errors"

var (
	// ErrNoInstructions is raised for empty or comment-only sources.
	ErrNoInstructions = errors.New("risor source has no instructions")

	// ErrCompileFailed wraps Risor parse and compile failures.
	ErrCompileFailed = errors.New("failed to compile risor script")
)
