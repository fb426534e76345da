package modules

import "errors"

var (
	// ErrInvalidModuleID indicates a malformed module specifier. Resolution
	// treats it as a miss, never as a fatal condition.
	ErrInvalidModuleID = errors.New("invalid module id")

	// ErrInvalidURI indicates a module URI that can't be built or parsed.
	ErrInvalidURI = errors.New("invalid module uri")

	// ErrInvalidArgument indicates a construction-time misconfiguration,
	// e.g. a sub-path without a leading slash.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRepositoryIO indicates an underlying filesystem or archive access
	// failure. Fatal during repository construction, a miss during resolution.
	ErrRepositoryIO = errors.New("repository io failure")

	// ErrModuleNotFound is the terminal failure of a require/import call.
	ErrModuleNotFound = errors.New("module not found")
)
